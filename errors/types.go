package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigNotFound ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  ErrorCode = "CONFIG_INVALID"

	// Listener errors
	ErrCodeListenerInvalid ErrorCode = "LISTENER_INVALID"
	ErrCodeListenerFailed  ErrorCode = "LISTENER_FAILED"

	// Module errors
	ErrCodeInstallFailed    ErrorCode = "INSTALL_FAILED"
	ErrCodeInstallAggregate ErrorCode = "INSTALL_AGGREGATE"
	ErrCodeScanFailed       ErrorCode = "SCAN_FAILED"

	// General errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// coded is implemented by every error type in this package.
type coded interface {
	ErrorCode() ErrorCode
}

// Error represents a structured error with context
type Error struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *Error) Unwrap() error {
	return e.Cause
}

// ErrorCode returns the error's code.
func (e *Error) ErrorCode() ErrorCode {
	return e.Code
}

// WithDetail adds a detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *Error) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// CompoundError bundles several independent failures of one unit of work.
type CompoundError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Causes  []error   `json:"-"`
}

// Error lists every cause on its own line.
func (e *CompoundError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s (%d failures)", e.Code, e.Message, len(e.Causes))
	for _, cause := range e.Causes {
		b.WriteString("\n  - ")
		b.WriteString(cause.Error())
	}
	return b.String()
}

// Unwrap exposes the causes to errors.Is and errors.As.
func (e *CompoundError) Unwrap() []error {
	return e.Causes
}

// ErrorCode returns the error's code.
func (e *CompoundError) ErrorCode() ErrorCode {
	return e.Code
}

// ToJSON converts the error and its causes to JSON
func (e *CompoundError) ToJSON() string {
	causes := make([]interface{}, 0, len(e.Causes))
	for _, cause := range e.Causes {
		if ce, ok := cause.(*Error); ok {
			causes = append(causes, ce)
			continue
		}
		causes = append(causes, map[string]string{"message": cause.Error()})
	}
	data, _ := json.MarshalIndent(struct {
		Code    ErrorCode     `json:"code"`
		Message string        `json:"message"`
		Causes  []interface{} `json:"causes"`
	}{e.Code, e.Message, causes}, "", "  ")
	return string(data)
}

// New creates a new Error
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an Error
func Wrap(err error, code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error, or any error it wraps, carries the given code
func Is(err error, code ErrorCode) bool {
	found := false
	walk(err, func(e error) bool {
		if c, ok := e.(coded); ok && c.ErrorCode() == code {
			found = true
			return false
		}
		return true
	})
	return found
}

// GetCode extracts the outermost error code from an error
func GetCode(err error) ErrorCode {
	var code ErrorCode
	walk(err, func(e error) bool {
		if c, ok := e.(coded); ok {
			code = c.ErrorCode()
			return false
		}
		return true
	})
	return code
}

// walk visits err and its wrapped errors depth-first until visit returns false.
func walk(err error, visit func(error) bool) bool {
	if err == nil {
		return true
	}
	if !visit(err) {
		return false
	}
	switch u := err.(type) {
	case interface{ Unwrap() error }:
		return walk(u.Unwrap(), visit)
	case interface{ Unwrap() []error }:
		for _, inner := range u.Unwrap() {
			if !walk(inner, visit) {
				return false
			}
		}
	}
	return true
}
