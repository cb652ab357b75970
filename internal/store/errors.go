package store

import (
	"errors"
	"fmt"
)

var (
	ErrConflict            = errors.New("conflict")
	ErrNotFound            = errors.New("not found")
	ErrIdempotencyConflict = errors.New("idempotency key conflict")
	ErrDuplicate           = errors.New("duplicate")
	ErrIntegrity           = errors.New("integrity check failed")
)

// StorageError wraps a failure of the underlying database.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Wrap tags err with the failing operation. Sentinel errors of this package
// pass through unchanged so callers can keep using errors.Is on them.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{ErrConflict, ErrNotFound, ErrIdempotencyConflict, ErrDuplicate, ErrIntegrity} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	var sErr *StorageError
	if errors.As(err, &sErr) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
