package model

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes errors surfaced to callers.
type ErrorKind string

const (
	// KindConflict covers idempotency key/route/payload mismatch, concurrent
	// in-progress duplicates and stale plans. Never retried by the core.
	KindConflict ErrorKind = "CONFLICT"

	// KindNotFound indicates a referenced application or plan is absent.
	KindNotFound ErrorKind = "NOT_FOUND"

	// KindValidation indicates malformed or missing input fields.
	KindValidation ErrorKind = "VALIDATION"

	// KindExecution indicates a workflow step failed.
	KindExecution ErrorKind = "EXECUTION"

	// KindInternal is everything else (store failures, bugs).
	KindInternal ErrorKind = "INTERNAL"
)

// Error is the typed error returned across package boundaries.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorKind implements kinded.
func (e *Error) ErrorKind() ErrorKind {
	return e.Kind
}

// kinded is implemented by any error that knows its category.
// workflow.StepError implements it too.
type kinded interface {
	error
	ErrorKind() ErrorKind
}

// Conflict creates a KindConflict error.
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a KindNotFound error.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a KindValidation error.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps err as a KindInternal error.
func Internal(err error, format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the category of err, KindInternal when it has none.
// Uses errors.As to handle wrapped errors.
func KindOf(err error) ErrorKind {
	var k kinded
	if errors.As(err, &k) {
		return k.ErrorKind()
	}
	return KindInternal
}

// IsConflict reports whether err is a conflict.
func IsConflict(err error) bool { return err != nil && KindOf(err) == KindConflict }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return err != nil && KindOf(err) == KindNotFound }

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return err != nil && KindOf(err) == KindValidation }
