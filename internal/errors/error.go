// Package errors provides the error taxonomy for catalog operations.
package errors

import (
	"errors"
	"strings"
)

var (
	// ErrProductNotFound is returned when the referenced product id does not exist.
	ErrProductNotFound = errors.New("product not found")

	// ErrNothingToUpdate is returned when an update request carries no fields.
	ErrNothingToUpdate = errors.New("no fields to update")
)

// ValidationError reports malformed or missing input. It is always raised
// before any storage or asset side effect.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return "validation failed"
	}
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

// NewValidationError builds a ValidationError from per-field problems.
func NewValidationError(problems ...string) *ValidationError {
	return &ValidationError{Problems: problems}
}
