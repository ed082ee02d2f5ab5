package repository

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// UniqueViolationError reports a write rejected by a unique constraint.
type UniqueViolationError struct {
	Field string
	Err   error
}

func (e *UniqueViolationError) Error() string {
	return fmt.Sprintf("unique constraint violated on %s: %v", e.Field, e.Err)
}

func (e *UniqueViolationError) Unwrap() error {
	return e.Err
}
