// Package apperr defines the typed error taxonomy shared by the pipelines.
// Pipelines wrap these with step context; only the HTTP layer maps them to statuses.
package apperr

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed input, rejected before any side effect.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports that a referenced resource does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ProviderError reports an embedding provider failure (auth, rate limit,
// timeout, malformed response). Batch identifies which batch of a split
// request failed, counted from 0.
type ProviderError struct {
	Batch int
	Err   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embedding provider failed on batch %d: %v", e.Batch, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// PersistenceError reports a datastore call failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// DimensionMismatchError reports a vector whose length disagrees with the
// configured embedding dimensionality.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: expected %d, got %d", e.Want, e.Got)
}

// IsValidation reports whether any error in err's chain is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether any error in err's chain is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
