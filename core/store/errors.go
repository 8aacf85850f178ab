package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a record lookup comes back empty.
var ErrNotFound = errors.New("record not found")

// ConstraintError reports a storage constraint violation, such as a unique
// index conflict or a not-null violation. The HTTP layer maps it to a
// validation response carrying the structured detail.
type ConstraintError struct {
	// Kind names the violated constraint class, e.g. "unique_violation".
	Kind string
	// Fields lists the offending columns or constraint names.
	Fields []string
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("constraint violation %s on %v", e.Kind, e.Fields)
}

// StorageError wraps any other storage failure. The HTTP layer logs it with
// full detail and returns a generic message to the caller.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error in %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
