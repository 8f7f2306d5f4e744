package fetch

import (
	"context"
	"iter"

	"github.com/nao1215/relcrawl/internal/model"
)

// Client retrieves items from the remote source.
type Client interface {
	// FetchDetail returns the full record of the item.
	FetchDetail(ctx context.Context, key model.ItemKey) (model.Item, error)

	// StreamRelated yields the items related to key. A non-nil error ends
	// the sequence; items already yielded remain valid.
	StreamRelated(ctx context.Context, key model.ItemKey) iter.Seq2[model.Item, error]
}

// Session is a Client with a scoped lifetime.
type Session interface {
	Client

	// Close releases the session. It is called on success and failure paths.
	Close() error
}

// Opener acquires a fresh Session for one item.
type Opener interface {
	Open(ctx context.Context) (Session, error)
}
