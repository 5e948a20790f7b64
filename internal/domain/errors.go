package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
// Implementing this interface enables extensible error handling at the
// handler boundary.
type HTTPError interface {
	error
	StatusCode() int
}

// Domain error types implementing HTTPError interface
type (
	// NotFoundError indicates a resource was not found
	NotFoundError struct {
		Message string
	}

	// ValidationError indicates invalid input
	ValidationError struct {
		Message string
	}

	// UnauthorizedError indicates authentication failure
	UnauthorizedError struct {
		Message string
	}

	// UnavailableError indicates the record exists but has been released:
	// its payload is cleared and it can no longer serve as a rollback target.
	UnavailableError struct {
		Message string
	}
)

// Error implementations
func (e *NotFoundError) Error() string     { return e.Message }
func (e *ValidationError) Error() string   { return e.Message }
func (e *UnauthorizedError) Error() string { return e.Message }
func (e *UnavailableError) Error() string  { return e.Message }

// StatusCode implementations (HTTPError interface)
func (e *NotFoundError) StatusCode() int     { return http.StatusNotFound }
func (e *ValidationError) StatusCode() int   { return http.StatusBadRequest }
func (e *UnauthorizedError) StatusCode() int { return http.StatusUnauthorized }
func (e *UnavailableError) StatusCode() int  { return http.StatusConflict }

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("record released")
	ErrPinLimit     = errors.New("pinned limit exceeded")
	ErrSequencing   = errors.New("sequence allocation failed")
	ErrTxAborted    = errors.New("transaction aborted")
)

// Is allows errors.Is() to match against ErrUnavailable
func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

// PinLimitError is returned when pinning would exceed the per-parent cap.
// It carries the currently pinned record ids so the caller can render a
// disambiguation prompt ("unpin one of these first").
type PinLimitError struct {
	Limit         int
	CurrentPinned []string
}

// Error implements the error interface
func (e *PinLimitError) Error() string {
	return fmt.Sprintf("pinned limit of %d reached (%d currently pinned)", e.Limit, len(e.CurrentPinned))
}

// StatusCode implements the HTTPError interface
func (e *PinLimitError) StatusCode() int {
	return http.StatusConflict
}

// Is allows errors.Is() to match against ErrPinLimit
func (e *PinLimitError) Is(target error) bool {
	return target == ErrPinLimit
}

// SequencingError is returned when a version number could not be allocated
// within the retry budget. Safe to retry: numbers are never double-assigned.
type SequencingError struct {
	Lineage  string
	ParentID string
	Attempts int
	Err      error
}

// Error implements the error interface
func (e *SequencingError) Error() string {
	return fmt.Sprintf("allocate %s sequence for %s: gave up after %d attempts: %v",
		e.Lineage, e.ParentID, e.Attempts, e.Err)
}

// StatusCode implements the HTTPError interface
func (e *SequencingError) StatusCode() int {
	return http.StatusInternalServerError
}

// Is allows errors.Is() to match against ErrSequencing
func (e *SequencingError) Is(target error) bool {
	return target == ErrSequencing
}

// Unwrap exposes the underlying store error
func (e *SequencingError) Unwrap() error {
	return e.Err
}
