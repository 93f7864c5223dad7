// Package domainerrors provides coded errors for the vaccination subsystem.
//
// Services return these so callers (HTTP layer, retry loops, tests) can react
// to the kind of failure without string matching. Stores return
// pkg/platform/sentinel errors instead and services translate them here.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies the kind of a domain error. The HTTP layer maps each code
// to a stable response; the workflow layer uses codes to decide retries.
type Code string

const (
	// CodeNotFound covers missing or soft-deleted patients, vaccines,
	// operators, and batches.
	CodeNotFound Code = "not_found"

	// CodeInvalidState covers inactive vaccines, terminal batch statuses,
	// and date-ordering violations such as an expiry that is not in the future.
	CodeInvalidState Code = "invalid_state"

	// CodeInventoryExhausted means no eligible batch exists for allocation.
	CodeInventoryExhausted Code = "inventory_exhausted"

	// CodeInsufficientStock means a manual deduction asked for more than the
	// batch holds.
	CodeInsufficientStock Code = "insufficient_stock"

	// CodeConcurrentConflict means the allocate-then-decrement race was lost.
	// Retryable: the workflow re-runs the allocator a bounded number of times.
	CodeConcurrentConflict Code = "concurrent_allocation_conflict"

	// CodeDuplicate means a uniqueness invariant was violated on creation,
	// e.g. batch number per vaccine or dose number per patient+vaccine.
	CodeDuplicate Code = "duplicate_resource"

	// CodeInvalidInput covers malformed identifiers and field validation at
	// trust boundaries.
	CodeInvalidInput Code = "invalid_input"

	// CodeBadRequest covers structurally invalid requests.
	CodeBadRequest Code = "bad_request"

	// CodeUnauthorized covers missing or invalid operator credentials.
	CodeUnauthorized Code = "unauthorized"

	// CodeTimeout covers cancelled or deadline-exceeded work.
	CodeTimeout Code = "timeout"

	// CodeInternal covers unexpected infrastructure failures. The HTTP layer
	// never exposes the message for this code.
	CodeInternal Code = "internal_error"
)

// Error carries a code, a human-readable message, and an optional cause.
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

func (e *Error) Unwrap() error {
	return e.cause
}

// New builds a domain error with no underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error, keeping the cause
// reachable through errors.Is / errors.As.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err or anything it wraps carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		if err == nil {
			return false
		}
	}
	return false
}

// CodeOf returns the outermost code of err, or CodeInternal when err carries
// no domain code at all.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Retryable reports whether the caller may retry the failed operation.
func Retryable(err error) bool {
	return HasCode(err, CodeConcurrentConflict)
}
