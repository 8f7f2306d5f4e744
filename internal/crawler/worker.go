package crawler

import (
	"context"
	"fmt"

	"github.com/nao1215/relcrawl/internal/fetch"
	"github.com/nao1215/relcrawl/internal/model"
)

// work fetches key, retrying per policy, and always ends with a done event.
func (l *Loop) work(ctx context.Context, key model.ItemKey, events chan<- event) {
	attempts := l.retry.Attempts()

	var err error
	n := 0
	for n < attempts {
		n++
		if err = l.retry.Wait(ctx, n); err != nil {
			break
		}

		var detail model.Item
		var sent int
		detail, sent, err = l.attempt(ctx, key, events)
		if err == nil {
			events <- event{key: key, done: true, detail: detail, attempts: n}
			return
		}
		if sent > 0 || ctx.Err() != nil {
			break
		}
		if n < attempts {
			l.logger.Debug("retrying fetch", "key", key.String(), "attempt", n, "error", err)
		}
	}

	events <- event{key: key, done: true, err: err, attempts: max(n, 1)}
}

// attempt runs one session for key. It returns the detail and the number of
// related items already handed to the loop.
func (l *Loop) attempt(ctx context.Context, key model.ItemKey, events chan<- event) (model.Item, int, error) {
	sess, err := l.opener.Open(ctx)
	if err != nil {
		return nil, 0, fetch.NewFetchError(key, fetch.OpOpen, err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			l.logger.Warn("failed to close fetch session", "key", key.String(), "error", cerr)
		}
	}()

	detail, err := sess.FetchDetail(ctx, key)
	if err != nil {
		return nil, 0, fetch.NewFetchError(key, fetch.OpDetail, err)
	}
	detail, err = normalizeDetail(key, detail)
	if err != nil {
		return nil, 0, fetch.NewFetchError(key, fetch.OpDetail, err)
	}

	sent := 0
	for it, err := range sess.StreamRelated(ctx, key) {
		if err != nil {
			return nil, sent, fetch.NewFetchError(key, fetch.OpRelated, err)
		}
		if it == nil {
			continue
		}
		events <- event{key: key, related: it}
		sent++
	}

	return detail, sent, nil
}

// normalizeDetail fills id and author_id from key when the record lacks
// them and rejects a record for a different item.
func normalizeDetail(key model.ItemKey, detail model.Item) (model.Item, error) {
	if detail == nil {
		detail = model.Item{}
	}
	switch id := detail.ID(); {
	case id == "":
		detail[model.FieldID] = key.ID
	case id != key.ID:
		return nil, fmt.Errorf("%w: got %q", ErrDetailMismatch, id)
	}
	if detail.AuthorID() == "" && key.AuthorID != "" {
		detail[model.FieldAuthorID] = key.AuthorID
	}
	return detail, nil
}
