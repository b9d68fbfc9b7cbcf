// Package core provides the agent memory engine: Store, Query and Timeline over a
// pluggable storage backend.
package core

import (
	"errors"
	"fmt"

	"github.com/oceanbase/agentmem-go/pkg/storage"
)

// Predefined errors for common failure scenarios.
var (
	// ErrValidation indicates empty content or an option value that cannot be coerced.
	ErrValidation = errors.New("validation failed")

	// ErrEmptyContent indicates the content was empty after trimming.
	ErrEmptyContent = fmt.Errorf("%w: content is empty", ErrValidation)

	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrBackendUnavailable indicates the store could not be opened or reached.
	// Transient network cases may be retried by the caller.
	ErrBackendUnavailable = storage.ErrUnavailable

	// ErrAuthentication indicates the remote store rejected the credentials.
	// Retrying with the same configuration will not help.
	ErrAuthentication = storage.ErrAuthentication

	// ErrTimeout indicates the operation did not complete before its deadline.
	ErrTimeout = storage.ErrTimeout

	// ErrStorageOperation indicates any other storage failure.
	ErrStorageOperation = storage.ErrOperation

	// ErrNotFound is reserved for point lookups. Empty query and timeline
	// results are never reported as errors.
	ErrNotFound = errors.New("memory not found")
)

// MemoryError wraps errors with operation context.
//
// It provides additional context about which operation failed,
// making error messages more informative for debugging.
//
// Example:
//
//	err := &MemoryError{
//	    Op:  "Store",
//	    Err: ErrEmptyContent,
//	}
//	// Error() returns: "agentmem: Store: validation failed: content is empty"
type MemoryError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message.
//
// The format is: "agentmem: <Op>: <Err>"
func (e *MemoryError) Error() string {
	return fmt.Sprintf("agentmem: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
//
// This allows using errors.Is() and errors.As() with MemoryError.
func (e *MemoryError) Unwrap() error {
	return e.Err
}

// NewMemoryError creates a new MemoryError wrapping the given error.
//
// If err is nil, returns nil. This allows safe error wrapping:
//
//	if err != nil {
//	    return NewMemoryError("Store", err)
//	}
func NewMemoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &MemoryError{
		Op:  op,
		Err: err,
	}
}

// validationErrorf builds an ErrValidation-wrapping error.
func validationErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
