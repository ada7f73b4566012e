// Package domainerrors provides code-carrying errors shared across modules.
//
// Services wrap infrastructure failures with a stable code so transport layers
// can map them to HTTP statuses without inspecting error strings. Codes are
// part of the module contract; messages are for humans and logs.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for transport mapping and programmatic handling.
type Code string

const (
	CodeInvalidInput       Code = "invalid_input"
	CodeBadRequest         Code = "bad_request"
	CodeUnauthorized       Code = "unauthorized"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeInvariantViolation Code = "invariant_violation"
	CodeUnavailable        Code = "unavailable"
	CodeInternal           Code = "internal_error"
)

// Error is a domain error with a stable code. The wrapped cause (if any) is
// reachable through errors.Unwrap for logging; it is never exposed to clients.
type Error struct {
	code    Code
	message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *Error) Unwrap() error { return e.cause }

// Code returns the classification of this error.
func (e *Error) Code() Code { return e.code }

// Message returns the human-readable message without the wrapped cause.
func (e *Error) Message() string { return e.message }

// New creates a domain error with the given code and message.
func New(code Code, message string) error {
	return &Error{code: code, message: message}
}

// Wrap attaches a code and message to an underlying error. A nil err returns
// nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{code: code, message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for errors
// that did not originate in a domain package.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.code
	}
	return CodeInternal
}
