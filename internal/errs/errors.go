// Package errs provides the unified error type used across bucketfs.
//
// Every storage driver wraps its native SDK errors into *errs.Error before
// returning them. The filesystem adapter and the HTTP layer then branch on
// the error kind through the Is* predicates, never on SDK types.
//
// Usage:
//
//	// In a driver — tag native errors:
//	return errs.Wrap(errs.ErrKindNotFound, "failed to stat object", sdkErr)
//
//	// In a caller — check error kind:
//	if errs.IsNotFound(err) {
//	    return false, nil
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing backend-specific codes.
// MinIO and S3 drivers map their native errors to one of these kinds.
type ErrKind int

const (
	ErrKindUnknown       ErrKind = iota
	ErrKindNotFound              // missing object or bucket
	ErrKindBackend               // any other transport / storage failure
	ErrKindConfiguration         // invalid settings at construction time
	ErrKindInvalidInput          // bad arguments from the caller
	ErrKindAlreadyExists         // conditional write refused
	ErrKindCanceled              // context deadline / cancellation
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindBackend:
		return "backend_error"
	case ErrKindConfiguration:
		return "configuration_error"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindAlreadyExists:
		return "already_exists"
	case ErrKindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by bucketfs subsystems.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // native SDK error, preserved for logging and errors.As
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to reach the native cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with a formatted message.
func Newf(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// --- Predicates ---

// IsNotFound reports whether err represents a missing object or bucket.
func IsNotFound(err error) bool {
	return KindOf(err) == ErrKindNotFound
}

// IsBackend reports whether err is a storage failure other than not-found.
func IsBackend(err error) bool {
	return KindOf(err) == ErrKindBackend
}

// IsConfiguration reports whether err came from validating settings.
func IsConfiguration(err error) bool {
	return KindOf(err) == ErrKindConfiguration
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrKindInvalidInput
}

// IsAlreadyExists reports whether a write was refused because the key exists.
func IsAlreadyExists(err error) bool {
	return KindOf(err) == ErrKindAlreadyExists
}

// IsCanceled reports whether err was caused by a deadline or context cancellation.
func IsCanceled(err error) bool {
	return KindOf(err) == ErrKindCanceled
}

// KindOf extracts the ErrKind from the first *Error in the chain.
// Errors that never passed through a driver report ErrKindUnknown.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}
