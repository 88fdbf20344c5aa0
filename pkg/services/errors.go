package services

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the record services. The API layer translates
// these into HTTP statuses; anything else surfaces as an internal error.
var (
	// ErrNotFound is returned when no record matches the given ID.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists is returned when a create would duplicate an
	// existing record (including an already-active scrub job).
	ErrAlreadyExists = errors.New("record already exists")

	// ErrNotCancellable is returned when cancelling a scrub job that has
	// already been claimed or finished.
	ErrNotCancellable = errors.New("scrub job is not cancellable")
)

// ValidationError reports a rejected request field, keeping bad input
// distinct from server faults so it can map to a 400.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
