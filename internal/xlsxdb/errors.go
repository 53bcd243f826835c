package xlsxdb

import (
	"errors"
	"fmt"
)

// ErrStorageUnavailable is matched by every error caused by the table file not being
// readable, creatable or writable.
var ErrStorageUnavailable = errors.New("storage unavailable")

// StorageError describes a failed file operation on the table.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrStorageUnavailable) true for any StorageError.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorageUnavailable
}

func storageErr(op, path string, err error) error {
	return &StorageError{Op: op, Path: path, Err: err}
}
