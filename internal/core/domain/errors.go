package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrSchemaIncompatible = errors.New("schema incompatible")
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrWriteRejected      = errors.New("write rejected")
	ErrDuplicateRequest   = errors.New("duplicate request")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrNotFound           = errors.New("not found")
)

// ValidationError is returned before any I/O when input cannot be accepted.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ColumnError is a write or read rejected because columns do not exist in the
// current schema of a collection.
type ColumnError struct {
	Collection string
	Columns    []string
	Err        error
}

func (e *ColumnError) Error() string {
	msg := fmt.Sprintf("%s: unknown column(s) %s", e.Collection, strings.Join(e.Columns, ", "))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ColumnError) Unwrap() error { return e.Err }

// Unavailable wraps a transport failure so callers can match ErrStoreUnavailable.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
