package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/relcrawl/internal/checkpoint"
	"github.com/nao1215/relcrawl/internal/fetch"
	"github.com/nao1215/relcrawl/internal/frontier"
	"github.com/nao1215/relcrawl/internal/model"
	"github.com/nao1215/relcrawl/internal/store"
)

// defaultFinalCheckpointTimeout bounds the checkpoint written after the
// run context is done.
const defaultFinalCheckpointTimeout = 30 * time.Second

// Checkpointer writes durable snapshots of the store.
// *checkpoint.Writer implements it.
type Checkpointer interface {
	Checkpoint(ctx context.Context, src checkpoint.Source) error
}

// Loop is the crawl state machine. Create it with New and call Run once.
type Loop struct {
	opener       fetch.Opener
	store        *store.ItemStore
	keep         frontier.Predicate
	frontier     *frontier.Frontier
	checkpointer Checkpointer

	workers         int
	retry           fetch.RetryPolicy
	checkpointEvery int
	maxCycles       int
	finalCheckpoint bool
	finalTimeout    time.Duration
	logger          *slog.Logger
	now             func() time.Time

	// dropped holds ids whose fetch failed; they are never enqueued again.
	dropped map[string]struct{}

	// inflight holds ids handed to a worker and not yet finished.
	inflight map[string]struct{}

	// mu guards state and stats, which Stats may read from other goroutines.
	mu    sync.Mutex
	state State
	stats Stats
	ran   bool
}

// Option configures a Loop.
type Option func(*Loop)

// WithWorkers sets the number of concurrent fetch workers. Values below 1
// mean 1.
func WithWorkers(n int) Option {
	return func(l *Loop) {
		l.workers = max(n, 1)
	}
}

// WithRetry sets the retry policy for failed fetches.
func WithRetry(p fetch.RetryPolicy) Option {
	return func(l *Loop) {
		l.retry = p
	}
}

// WithCheckpointer sets where checkpoints are written. Without one the loop
// keeps state in memory only.
func WithCheckpointer(c Checkpointer) Option {
	return func(l *Loop) {
		l.checkpointer = c
	}
}

// WithCheckpointEvery checkpoints after every n-th successful cycle.
func WithCheckpointEvery(n int) Option {
	return func(l *Loop) {
		l.checkpointEvery = n
	}
}

// WithMaxCycles stops dispatching after n successful cycles. Zero means no limit.
func WithMaxCycles(n int) Option {
	return func(l *Loop) {
		l.maxCycles = n
	}
}

// WithFinalCheckpoint controls whether a checkpoint is written when the loop
// finishes. It is on by default.
func WithFinalCheckpoint(enabled bool) Option {
	return func(l *Loop) {
		l.finalCheckpoint = enabled
	}
}

// WithFinalCheckpointTimeout bounds the final checkpoint.
func WithFinalCheckpointTimeout(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.finalTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

// WithClock overrides the time source used for scrape_date and run times.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) {
		l.now = now
	}
}

// New returns a Loop over st. keep is the relevance predicate applied to
// the related partition.
func New(opener fetch.Opener, st *store.ItemStore, keep frontier.Predicate, opts ...Option) *Loop {
	l := &Loop{
		opener:          opener,
		store:           st,
		keep:            keep,
		frontier:        frontier.New(),
		workers:         1,
		retry:           fetch.NoRetry,
		checkpointEvery: 1,
		finalCheckpoint: true,
		finalTimeout:    defaultFinalCheckpointTimeout,
		now:             time.Now,
		dropped:         make(map[string]struct{}),
		inflight:        make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// Seed merges items into the related partition, skipping ids that are
// already primary. It returns the number merged. Call it before Run.
func (l *Loop) Seed(items []model.Item) (int, error) {
	fresh := make([]model.Item, 0, len(items))
	for _, it := range items {
		if l.store.Contains(model.Primary, it.ID()) {
			continue
		}
		fresh = append(fresh, it)
	}
	n, err := l.store.Merge(model.Related, fresh...)
	if err != nil {
		return 0, fmt.Errorf("failed to merge seeds: %w", err)
	}
	return n, nil
}

// Frontier returns the keys currently queued.
func (l *Loop) Frontier() []model.ItemKey {
	return l.frontier.Keys()
}

// Stats returns a copy of the current counters.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.stats
	s.State = l.state
	return s
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

func (l *Loop) update(fn func(s *Stats)) {
	l.mu.Lock()
	fn(&l.stats)
	l.mu.Unlock()
}

// event is sent from a worker to the loop goroutine.
type event struct {
	key model.ItemKey

	// related is set for a streamed related item.
	related model.Item

	// done marks the end of the key's fetch; detail is set on success and
	// err on failure.
	done     bool
	detail   model.Item
	err      error
	attempts int
}

// Run drives the loop until the frontier drains, the cycle budget is
// reached, or ctx is cancelled. It returns the final counters; the error is
// ctx.Err() for a cancelled run and nil otherwise.
func (l *Loop) Run(ctx context.Context) (Stats, error) {
	l.mu.Lock()
	if l.ran {
		l.mu.Unlock()
		return l.Stats(), ErrAlreadyRun
	}
	l.ran = true
	l.stats.StartedAt = l.now().UTC()
	l.mu.Unlock()

	pruned, err := l.store.Retain(model.Related, l.keep.Keep)
	if err != nil {
		return l.Stats(), fmt.Errorf("failed to filter related items: %w", err)
	}
	evicted := l.store.EvictPrimary()
	l.rebuild()
	l.logger.Info("crawl starting",
		"primary", l.store.Len(model.Primary),
		"related", l.store.Len(model.Related),
		"frontier", l.frontier.Len(),
		"pruned", pruned,
		"evicted", evicted,
		"workers", l.workers,
	)

	jobs := make(chan model.ItemKey)
	events := make(chan event, l.workers)

	var g errgroup.Group
	for range l.workers {
		g.Go(func() error {
			for key := range jobs {
				l.work(ctx, key, events)
			}
			return nil
		})
	}

	final := l.drive(ctx, jobs, events)

	close(jobs)
	_ = g.Wait() //nolint:errcheck // workers never return an error

	l.finish(ctx, final)

	stats := l.Stats()
	l.logger.Info("crawl finished",
		"state", stats.State.String(),
		"succeeded", stats.Successes,
		"failed", stats.Failures,
		"primary", stats.Primary,
		"related", stats.Related,
		"frontier", stats.Frontier,
	)
	if final == StateCancelled {
		return stats, ctx.Err()
	}
	return stats, nil
}

// drive dispatches keys and applies events until the loop reaches a
// terminal state. It returns that state with nothing left in flight.
func (l *Loop) drive(ctx context.Context, jobs chan<- model.ItemKey, events <-chan event) State {
	done := ctx.Done()
	var final State
	stopping := false

	for {
		if !stopping {
			if ctx.Err() != nil {
				stopping, final = true, StateCancelled
			} else if l.budgetSpent() {
				stopping, final = true, StateStopped
			}
		}

		for !stopping && len(l.inflight) < l.workers {
			key, ok := l.frontier.Pop()
			if !ok {
				break
			}
			l.inflight[key.ID] = struct{}{}
			l.setState(StateFetching)
			jobs <- key
		}

		if len(l.inflight) == 0 {
			if stopping {
				return final
			}
			if l.frontier.Len() == 0 {
				return StateDrained
			}
			continue
		}

		select {
		case ev := <-events:
			l.apply(ctx, ev)
		case <-done:
			done = nil
		}
	}
}

// budgetSpent reports whether the cycle budget is exhausted.
func (l *Loop) budgetSpent() bool {
	if l.maxCycles <= 0 {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats.Successes >= l.maxCycles
}

// apply commits one worker event. It runs on the loop goroutine only.
func (l *Loop) apply(ctx context.Context, ev event) {
	if !ev.done {
		l.mergeRelated(ctx, ev.key, ev.related)
		return
	}

	l.setState(StateMerging)
	delete(l.inflight, ev.key.ID)

	success := false
	switch {
	case ev.err == nil:
		ev.detail.Stamp(l.now())
		if _, err := l.store.Merge(model.Primary, ev.detail); err != nil {
			l.logger.Error("failed to merge detail", "key", ev.key.String(), "error", err)
			l.drop(ev.key, err)
			break
		}
		success = true
		l.update(func(s *Stats) {
			s.Successes++
			s.Retries += ev.attempts - 1
		})
	case ctx.Err() != nil && errors.Is(ev.err, ctx.Err()):
		// Interrupted by cancellation; the key stays in related for the next run.
		l.logger.Debug("fetch interrupted", "key", ev.key.String())
	default:
		l.logger.Warn("fetch failed, dropping key",
			"key", ev.key.String(),
			"attempts", ev.attempts,
			"error", ev.err,
		)
		l.drop(ev.key, ev.err)
		l.update(func(s *Stats) {
			s.Retries += ev.attempts - 1
		})
	}

	evicted := l.store.EvictPrimary()
	l.rebuild()
	l.update(func(s *Stats) {
		s.Evicted += evicted
	})

	l.logger.Info("progress",
		"primary", l.store.Len(model.Primary),
		"related", l.store.Len(model.Related),
		"frontier", l.frontier.Len(),
	)

	if success && l.dueForCheckpoint() {
		l.checkpoint(ctx)
	}
	l.setState(StateIdle)
}

// reasoner is a Predicate that can name the rules an item satisfies.
// *filter.Relevance implements it.
type reasoner interface {
	Reasons(it model.Item) []string
}

// mergeRelated commits one streamed related item.
func (l *Loop) mergeRelated(ctx context.Context, parent model.ItemKey, it model.Item) {
	id := it.ID()
	if id == "" || id == parent.ID || l.store.Contains(model.Primary, id) {
		l.update(func(s *Stats) { s.Skipped++ })
		return
	}
	if !l.keep.Keep(it) {
		l.logger.Debug("related item filtered", "parent", parent.String(), "id", id)
		l.update(func(s *Stats) { s.Filtered++ })
		return
	}

	it.Stamp(l.now())
	if _, err := l.store.Merge(model.Related, it); err != nil {
		l.logger.Error("failed to merge related item", "id", id, "error", err)
		return
	}
	if r, ok := l.keep.(reasoner); ok && l.logger.Enabled(ctx, slog.LevelDebug) {
		l.logger.Debug("related item kept", "parent", parent.String(), "id", id, "rules", r.Reasons(it))
	}
	l.update(func(s *Stats) { s.RelatedMerged++ })
}

func (l *Loop) drop(key model.ItemKey, err error) {
	l.dropped[key.ID] = struct{}{}
	l.update(func(s *Stats) {
		s.Failures++
		s.Dropped = len(l.dropped)
		s.LastError = err.Error()
	})
}

func (l *Loop) rebuild() {
	l.frontier.Rebuild(l.store, l.keep, l.excluded)
	l.update(func(s *Stats) {
		s.Primary = l.store.Len(model.Primary)
		s.Related = l.store.Len(model.Related)
		s.Frontier = l.frontier.Len()
	})
}

// excluded reports whether id is dropped or in flight.
func (l *Loop) excluded(id string) bool {
	if _, ok := l.dropped[id]; ok {
		return true
	}
	_, ok := l.inflight[id]
	return ok
}

func (l *Loop) dueForCheckpoint() bool {
	if l.checkpointer == nil || l.checkpointEvery <= 0 {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats.Successes%l.checkpointEvery == 0
}

// checkpoint writes a snapshot. Failures are logged and counted; the loop
// continues on in-memory state.
func (l *Loop) checkpoint(ctx context.Context) {
	l.setState(StateCheckpointing)
	if err := l.checkpointer.Checkpoint(ctx, l.store); err != nil {
		l.logger.Error("checkpoint failed", "error", err)
		l.update(func(s *Stats) { s.CheckpointFailures++ })
		return
	}
	l.update(func(s *Stats) {
		s.Checkpoints++
		s.LastCheckpoint = l.now().UTC()
	})
}

// finish records the terminal state and writes the final checkpoint.
func (l *Loop) finish(ctx context.Context, final State) {
	if l.checkpointer != nil && l.finalCheckpoint {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.finalTimeout)
		l.checkpoint(cctx)
		cancel()
	}

	l.rebuild()
	l.mu.Lock()
	l.state = final
	l.stats.FinishedAt = l.now().UTC()
	l.mu.Unlock()
}
