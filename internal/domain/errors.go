package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is matched by every ValidationError
	ErrInvalidInput = errors.New("invalid input")

	// ErrStorage is matched by every StorageError
	ErrStorage = errors.New("storage failure")
)

// ValidationError indicates caller-supplied data could not be accepted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// StorageError wraps connectivity, pool and store-side failures.
type StorageError struct {
	Op  string
	Err error
}

// NewStorageError wraps err unless it is nil or already a StorageError.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}
