package fetch

import (
	"errors"
	"fmt"

	"github.com/nao1215/relcrawl/internal/model"
)

// ErrFetch matches every FetchError via errors.Is.
var ErrFetch = errors.New("fetch failed")

// Operations recorded in FetchError.Op.
const (
	OpOpen    = "open"
	OpDetail  = "detail"
	OpRelated = "related"
)

// FetchError reports a failed network, parse or authorization step for one item.
type FetchError struct {
	// Key is the item being fetched.
	Key model.ItemKey

	// Op is the failing operation: OpOpen, OpDetail or OpRelated.
	Op string

	// Err is the underlying cause.
	Err error
}

// NewFetchError wraps err for key and op. It returns nil if err is nil and
// returns err unchanged if it is already a FetchError.
func NewFetchError(key model.ItemKey, op string, err error) error {
	if err == nil {
		return nil
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &FetchError{Key: key, Op: op, Err: err}
}

// Error implements error.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s %s: %v", e.Op, e.Key, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is reports ErrFetch as matching.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetch
}
