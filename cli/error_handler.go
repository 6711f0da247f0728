package cli

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/grovetools/extcore/errors"
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates a new error handler writing to stderr
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		Out:     os.Stderr,
	}
}

// Handle provides user-friendly error messages based on error type
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}
	out := h.Out
	if out == nil {
		out = os.Stderr
	}

	var e *errors.Error
	stderrors.As(err, &e)

	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(out, "❌ Configuration not found. Create extcore.yml or pass --config.\n")

	case errors.ErrCodeConfigInvalid:
		fmt.Fprintf(out, "❌ %v\n", err)
		fmt.Fprintf(out, "Run 'extcore config schema' to see the accepted document.\n")

	case errors.ErrCodeListenerInvalid:
		if e != nil {
			fmt.Fprintf(out, "❌ Listener '%v' is misconfigured: %v\n", e.Details["listener"], err)
		} else {
			fmt.Fprintf(out, "❌ %v\n", err)
		}
		fmt.Fprintf(out, "Check the listeners section of extcore.yml.\n")

	case errors.ErrCodeInstallAggregate:
		var compound *errors.CompoundError
		if stderrors.As(err, &compound) {
			fmt.Fprintf(out, "❌ %d module(s) failed to install:\n", len(compound.Causes))
			for _, cause := range compound.Causes {
				fmt.Fprintf(out, "  - %v\n", cause)
			}
		} else {
			fmt.Fprintf(out, "❌ %v\n", err)
		}

	case errors.ErrCodeScanFailed:
		if e != nil {
			fmt.Fprintf(out, "❌ Could not scan %v: %v\n", e.Details["root"], err)
		} else {
			fmt.Fprintf(out, "❌ %v\n", err)
		}

	case errors.ErrCodeInvalidInput:
		fmt.Fprintf(out, "❌ %v\n", err)
		fmt.Fprintf(out, "Run 'extcore --help' for usage.\n")

	default:
		fmt.Fprintf(out, "❌ Error: %v\n", err)
	}

	if h.Verbose {
		if j, ok := err.(interface{ ToJSON() string }); ok {
			fmt.Fprintf(out, "\nError details:\n%s\n", j.ToJSON())
		}
	}
	return err
}
