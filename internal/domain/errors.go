package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by repo and service functions when the requested
// resource does not exist in the database.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when input fails business rule validation
// (e.g. empty title, non-positive duration, day outside the trip).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrConflict is matched by every *ConflictError.
// Handlers should map this to HTTP 409 and return the ConflictResult body.
var ErrConflict = errors.New("schedule conflict")

// ErrPersistence is matched by every *PersistenceError.
// Handlers should map this to HTTP 503 so clients know the write may be retried.
var ErrPersistence = errors.New("persistence error")

// ConflictError carries a ConflictResult through an error return so callers
// can override, relocate, or abort.
type ConflictError struct {
	Result ConflictResult
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %d overlapping plan box(es)", ErrConflict, len(e.Result.Conflicting))
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// PersistenceError reports a failed read or write against the store.
// Local optimistic state is kept; the caller decides whether to retry.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrPersistence, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// Retryable is always true: persistence failures are never fatal to the schedule.
func (e *PersistenceError) Retryable() bool { return true }
