package checkpoint

import (
	"errors"
	"fmt"
)

var (
	// ErrPersistence matches every PersistenceError via errors.Is.
	ErrPersistence = errors.New("checkpoint persistence failed")

	// ErrNoSnapshot is returned by Snapshotter.Load when nothing has been
	// saved yet.
	ErrNoSnapshot = errors.New("no snapshot found")
)

// PersistenceError reports a failed checkpoint write or read.
// The crawl loop logs it and keeps running on in-memory state.
type PersistenceError struct {
	// Op is "save" or "load".
	Op string

	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("checkpoint %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is reports ErrPersistence as matching.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}
