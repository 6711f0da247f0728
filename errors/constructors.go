package errors

import (
	"fmt"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *Error {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *Error {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// ListenerInvalid creates the error returned when a listener descriptor cannot be
// registered. cause may be nil.
func ListenerInvalid(name, reason string, cause error) *Error {
	return Wrap(cause, ErrCodeListenerInvalid, fmt.Sprintf("listener '%s' is misconfigured: %s", name, reason)).
		WithDetail("listener", name)
}

// ListenerFailed creates a listener invocation failure error
func ListenerFailed(name, event string, err error) *Error {
	return Wrap(err, ErrCodeListenerFailed, fmt.Sprintf("listener '%s' failed handling '%s'", name, event)).
		WithDetail("listener", name).
		WithDetail("event", event)
}

// InstallFailed creates the error recorded for a module that could not be installed
func InstallFailed(path string, err error) *Error {
	return Wrap(err, ErrCodeInstallFailed, fmt.Sprintf("failed to install module %s", path)).
		WithDetail("path", path)
}

// ScanFailed creates a directory walk failure error
func ScanFailed(root string, err error) *Error {
	return Wrap(err, ErrCodeScanFailed, fmt.Sprintf("failed to scan %s", root)).
		WithDetail("root", root)
}

// NewCompound bundles causes under one code. It returns nil when causes is empty.
func NewCompound(code ErrorCode, message string, causes []error) *CompoundError {
	if len(causes) == 0 {
		return nil
	}
	return &CompoundError{
		Code:    code,
		Message: message,
		Causes:  append([]error(nil), causes...),
	}
}
