package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/relcrawl/internal/model"
)

// Snapshot is the durable state of both partitions at one point in time.
type Snapshot struct {
	Primary []model.Item
	Related []model.Item
	TakenAt time.Time
}

// Snapshotter persists snapshots.
type Snapshotter interface {
	// Save atomically replaces the stored snapshot.
	Save(ctx context.Context, snap Snapshot) error

	// Load returns the last saved snapshot, or ErrNoSnapshot.
	Load(ctx context.Context) (Snapshot, error)
}

// Source is the part of the item store a checkpoint reads.
type Source interface {
	Items(p model.Partition) []model.Item
}

// Sink is the part of the item store a restore writes.
type Sink interface {
	Merge(p model.Partition, items ...model.Item) (int, error)
	EvictPrimary() int
}

// Writer writes checkpoints from the live store.
type Writer struct {
	snapshotter Snapshotter
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a Writer.
type Option func(*Writer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Writer) {
		w.logger = logger
	}
}

// WithClock overrides the time source used for Snapshot.TakenAt.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) {
		w.now = now
	}
}

// NewWriter returns a Writer that saves through s.
func NewWriter(s Snapshotter, opts ...Option) *Writer {
	w := &Writer{
		snapshotter: s,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w
}

// Checkpoint snapshots src and saves it. Failures are returned as
// *PersistenceError; the in-memory store is never modified.
func (w *Writer) Checkpoint(ctx context.Context, src Source) error {
	snap := Snapshot{
		Primary: src.Items(model.Primary),
		Related: src.Items(model.Related),
		TakenAt: w.now().UTC(),
	}

	if err := w.snapshotter.Save(ctx, snap); err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}

	w.logger.Debug("checkpoint written",
		"primary", len(snap.Primary),
		"related", len(snap.Related),
	)
	return nil
}

// Restore loads the last snapshot from s into dst. A missing snapshot is an
// empty start and returns a zero Snapshot with no error. Any related id that
// is also primary is evicted, so the restored store satisfies the dedup
// invariant even if the snapshot did not.
func Restore(ctx context.Context, s Snapshotter, dst Sink) (Snapshot, error) {
	snap, err := s.Load(ctx)
	if errors.Is(err, ErrNoSnapshot) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, &PersistenceError{Op: "load", Err: err}
	}

	if _, err := dst.Merge(model.Primary, snap.Primary...); err != nil {
		return Snapshot{}, fmt.Errorf("failed to restore primary items: %w", err)
	}
	if _, err := dst.Merge(model.Related, snap.Related...); err != nil {
		return Snapshot{}, fmt.Errorf("failed to restore related items: %w", err)
	}
	dst.EvictPrimary()

	return snap, nil
}
