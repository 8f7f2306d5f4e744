package store

import "errors"

var (
	// ErrUnknownPartition is returned when an operation names a partition
	// that does not exist.
	ErrUnknownPartition = errors.New("unknown partition")

	// ErrSchemaMerge would be returned by a strict-schema store when two
	// batches disagree on field types. ItemStore merges by field union and
	// never returns it.
	ErrSchemaMerge = errors.New("schema merge conflict")
)
