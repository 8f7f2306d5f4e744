package crawler

import "errors"

var (
	// ErrAlreadyRun is returned when Run is called more than once on a Loop.
	ErrAlreadyRun = errors.New("crawl loop has already run")

	// ErrDetailMismatch is returned when a detail record names a different
	// item than the key it was fetched for.
	ErrDetailMismatch = errors.New("detail id does not match requested key")
)
