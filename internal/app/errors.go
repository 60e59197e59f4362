package service

import (
	"errors"
	"fmt"
)

// Error kinds returned by Service. Callers match them with errors.Is.
var (
	// ErrValidation marks user-correctable input problems.
	ErrValidation = errors.New("validation error")
	// ErrStorageUnavailable marks failures reaching the event or snapshot store.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrAggregation marks a failed post-append recompute. It is logged, never returned from Ingest.
	ErrAggregation = errors.New("aggregation failure")
	// ErrNotFound is returned when a requested snapshot does not exist.
	ErrNotFound = errors.New("snapshot not found")
)

// validationError carries a message fit for the client and matches
// ErrValidation.
type validationError struct{ msg string }

func (e *validationError) Error() string        { return e.msg }
func (e *validationError) Is(target error) bool { return target == ErrValidation }

func validationf(format string, args ...any) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}
