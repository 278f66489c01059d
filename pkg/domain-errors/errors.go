// Package derrors provides coded domain errors. Services wrap store and
// collaborator failures into coded errors; the transport layer translates
// codes to HTTP statuses in exactly one place.
package derrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error for transport mapping and callers that
// need to branch on failure kind without string matching.
type Code string

const (
	// CodeValidation covers malformed or missing caller input.
	CodeValidation Code = "validation"
	// CodeNotFound covers absent templates, documents, and serial bindings.
	CodeNotFound Code = "not_found"
	// CodeConflict covers uniqueness violations, including an attempt to
	// issue a second live document for the same source record.
	CodeConflict Code = "conflict"
	// CodeInvariantViolation covers illegal state transitions.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeExhausted covers bounded-retry exhaustion during sequence
	// allocation or verification-code generation.
	CodeExhausted Code = "exhausted"
	// CodeRender covers template rendering failures.
	CodeRender Code = "render"
	// CodeUnauthorized covers missing or invalid credentials.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden covers authenticated but disallowed actions.
	CodeForbidden Code = "forbidden"
	// CodeInternal covers unexpected infrastructure failures.
	CodeInternal Code = "internal"
)

// Error is a coded domain error. It optionally wraps an underlying cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error without a cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a coded error wrapping an underlying cause.
// A nil cause behaves like New.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// CodeOf extracts the code from an error chain.
// Unknown errors report CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf extracts the client-safe message from an error chain.
// Unknown errors yield a generic message.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}
