// Package dErrors provides code-carrying domain errors.
//
// Stores return sentinel errors (pkg/platform/sentinel) for infrastructure
// facts; services translate those into coded domain errors so transport
// layers can map them to responses without string matching.
package dErrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error. Codes are stable API; messages are not.
type Code string

const (
	// Business-rule violations surfaced synchronously to callers.
	CodeValidation        Code = "validation"
	CodeSelfTransfer      Code = "self_transfer"
	CodeDuplicatePending  Code = "duplicate_pending"
	CodeOwnershipMismatch Code = "ownership_mismatch"
	CodeNotFound          Code = "not_found"
	CodeExpired           Code = "expired"
	CodeRecipientMismatch Code = "recipient_mismatch"
	CodeUnauthorized      Code = "unauthorized"

	// CodeConflict signals a premise invalidated by a concurrent change
	// (e.g. ownership moved between request creation and acceptance).
	CodeConflict Code = "conflict"

	// Transport and infrastructure codes.
	CodeBadRequest   Code = "bad_request"
	CodeInvalidInput Code = "invalid_input"
	CodeTimeout      Code = "timeout"
	CodeInternal     Code = "internal"
)

// Error is a domain error with a stable code and human-readable message.
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

// Is makes errors.Is match two domain errors by code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// New creates a domain error with the given code.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error, preserving the
// chain for errors.Is / errors.As.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for
// non-domain errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
