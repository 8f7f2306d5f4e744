package crawler

import (
	"context"
	"errors"
	"iter"
	"sync"
	"time"

	"github.com/nao1215/relcrawl/internal/fetch"
	"github.com/nao1215/relcrawl/internal/model"
)

var (
	errTemporary = errors.New("temporary failure")
	errStream    = errors.New("stream broken")
	errNotFound  = errors.New("item not found")
)

// node is one item of a fake related graph.
type node struct {
	author  string
	desc    string
	related []string

	// detailErrs fails the first n detail calls.
	detailErrs int

	// streamFailAfter fails the related stream after n items; zero never fails.
	streamFailAfter int
}

// fakeGraph is an in-memory fetch.Opener over a set of nodes.
type fakeGraph struct {
	mu          sync.Mutex
	nodes       map[string]*node
	detailCalls map[string]int
	opens       int
	closes      int
	openErr     error
	active      int
	maxActive   int

	// delay is applied inside every detail fetch.
	delay time.Duration

	// onDetail runs at the start of every detail fetch.
	onDetail func(key model.ItemKey)
}

func newGraph(nodes map[string]*node) *fakeGraph {
	return &fakeGraph{nodes: nodes, detailCalls: make(map[string]int)}
}

func (g *fakeGraph) Open(context.Context) (fetch.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.openErr != nil {
		return nil, g.openErr
	}
	g.opens++
	return &fakeSession{g: g}, nil
}

func (g *fakeGraph) calls(id string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.detailCalls[id]
}

// listing returns the record a related stream or seed file carries for id.
func (g *fakeGraph) listing(id string) model.Item {
	n := g.nodes[id]
	if n == nil {
		return model.Item{"id": id}
	}
	return model.Item{
		"id":     id,
		"desc":   n.desc,
		"author": map[string]any{"uniqueId": n.author},
	}
}

type fakeSession struct {
	g *fakeGraph
}

func (s *fakeSession) Close() error {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	s.g.closes++
	return nil
}

func (s *fakeSession) FetchDetail(ctx context.Context, key model.ItemKey) (model.Item, error) {
	g := s.g
	g.mu.Lock()
	g.detailCalls[key.ID]++
	call := g.detailCalls[key.ID]
	n := g.nodes[key.ID]
	g.active++
	g.maxActive = max(g.maxActive, g.active)
	hook := g.onDetail
	delay := g.delay
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.active--
		g.mu.Unlock()
	}()

	if hook != nil {
		hook(key)
	}
	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n == nil {
		return nil, errNotFound
	}
	if call <= n.detailErrs {
		return nil, errTemporary
	}
	return model.Item{"id": key.ID, "author_id": n.author, "desc": n.desc, "detail": true}, nil
}

func (s *fakeSession) StreamRelated(ctx context.Context, key model.ItemKey) iter.Seq2[model.Item, error] {
	return func(yield func(model.Item, error) bool) {
		n := s.g.nodes[key.ID]
		if n == nil {
			return
		}
		for i, id := range n.related {
			if n.streamFailAfter > 0 && i == n.streamFailAfter {
				yield(nil, errStream)
				return
			}
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if !yield(s.g.listing(id), nil) {
				return
			}
		}
	}
}
