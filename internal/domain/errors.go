// Package domain provides the interview types and the canonical error taxonomy.
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind represents the category of a failure.
type ErrorKind string

const (
	// ErrorKindValidation indicates a malformed or incomplete request.
	ErrorKindValidation ErrorKind = "validation"

	// ErrorKindNotFound indicates the addressed session or interview does not exist.
	ErrorKindNotFound ErrorKind = "not_found"

	// ErrorKindIO indicates a filesystem failure in the task bridge.
	ErrorKindIO ErrorKind = "io"

	// ErrorKindGeneration indicates the external task generator failed.
	ErrorKindGeneration ErrorKind = "generation"

	// ErrorKindParse indicates a JSON document could not be parsed.
	ErrorKindParse ErrorKind = "parse"

	// ErrorKindTimeout indicates an external collaborator exceeded its deadline.
	ErrorKindTimeout ErrorKind = "timeout"

	// ErrorKindServer indicates an unclassified internal failure.
	ErrorKindServer ErrorKind = "server"
)

// Error is the canonical error returned by the interview components.
// Handlers translate it to an HTTP status with HTTPStatusCode.
type Error struct {
	// Kind is the category of error
	Kind ErrorKind `json:"type"`

	// Message is the human-readable error message
	Message string `json:"message"`

	// Field names the request field that caused the error (if applicable)
	Field string `json:"param,omitempty"`

	// StatusCode overrides the status derived from Kind
	StatusCode int `json:"-"`

	// Cause is the underlying error, if any
	Cause error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatusCode returns the appropriate HTTP status code for this error.
func (e *Error) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}

	switch e.Kind {
	case ErrorKindValidation, ErrorKindParse:
		return http.StatusBadRequest
	case ErrorKindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// NewError creates a new error of the given kind.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WithField records the offending request field.
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// WithStatusCode sets a specific HTTP status code.
func (e *Error) WithStatusCode(code int) *Error {
	e.StatusCode = code
	return e
}

// WithCause attaches the underlying error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// ErrValidation creates a validation error.
func ErrValidation(message string) *Error {
	return NewError(ErrorKindValidation, message)
}

// ErrNotFound creates a not found error.
func ErrNotFound(message string) *Error {
	return NewError(ErrorKindNotFound, message)
}

// ErrIO creates a filesystem error.
func ErrIO(message string, cause error) *Error {
	return NewError(ErrorKindIO, message).WithCause(cause)
}

// ErrGeneration creates a generator failure error.
func ErrGeneration(message string, cause error) *Error {
	return NewError(ErrorKindGeneration, message).WithCause(cause)
}

// ErrParse creates a parse error.
func ErrParse(message string, cause error) *Error {
	return NewError(ErrorKindParse, message).WithCause(cause)
}

// ErrTimeout creates a timeout error.
func ErrTimeout(message string, cause error) *Error {
	return NewError(ErrorKindTimeout, message).WithCause(cause)
}

// AsError extracts a *Error from err. Anything else is wrapped as a server error.
func AsError(err error) *Error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return NewError(ErrorKindServer, err.Error()).WithCause(err)
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var de *Error
	return errors.As(err, &de) && de.Kind == kind
}
