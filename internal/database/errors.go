package database

import "errors"

// ErrNotFound is returned by Open when the database file does not exist and
// Options.CreateIfNotExists is false.
var ErrNotFound = errors.New("database not found")
