package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/relcrawl/internal/checkpoint"
	"github.com/nao1215/relcrawl/internal/database"
	"github.com/nao1215/relcrawl/internal/model"
	"github.com/nao1215/relcrawl/internal/seed"
)

// Step names used in logs and Session.PerformedSteps.
const (
	StepRestore      = "restore"
	StepSeed         = "seed"
	StepRecordStart  = "record-start"
	StepCrawl        = "crawl"
	StepRecordFinish = "record-finish"
)

// RunStateFailed is recorded for a run that ended on a step error.
const RunStateFailed = "failed"

// RunRecorder stores run history. database.CrawlDB implements it.
type RunRecorder interface {
	StartRun(ctx context.Context, startedAt time.Time) (string, error)
	FinishRun(ctx context.Context, run database.Run) error
}

var _ RunRecorder = (*database.CrawlDB)(nil)

// RestoreStep loads the last checkpoint into the session store.
//
// Design decision: a missing checkpoint is a fresh start, not an error.
// Only an unreadable checkpoint stops the pipeline, because crawling on an
// empty store would refetch everything and then overwrite the good data.
type RestoreStep struct {
	snapshotter checkpoint.Snapshotter
	logger      *slog.Logger
}

// RestoreStepOption configures a RestoreStep.
type RestoreStepOption func(*RestoreStep)

// WithRestoreLogger sets the logger for the restore step.
func WithRestoreLogger(logger *slog.Logger) RestoreStepOption {
	return func(s *RestoreStep) {
		s.logger = logger
	}
}

// NewRestoreStep creates a RestoreStep reading from snapshotter.
func NewRestoreStep(snapshotter checkpoint.Snapshotter, opts ...RestoreStepOption) *RestoreStep {
	s := &RestoreStep{
		snapshotter: snapshotter,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *RestoreStep) Name() string {
	return StepRestore
}

// Do restores the checkpoint.
func (s *RestoreStep) Do(ctx context.Context, sess *Session) error {
	snap, err := checkpoint.Restore(ctx, s.snapshotter, sess.Store)
	if err != nil {
		return err
	}

	sess.RestoredPrimary = sess.Store.Len(model.Primary)
	sess.RestoredRelated = sess.Store.Len(model.Related)

	if snap.TakenAt.IsZero() && len(snap.Primary)+len(snap.Related) == 0 {
		s.logger.Info("no checkpoint found, starting fresh")
		return nil
	}
	s.logger.Info("checkpoint restored",
		"primary", sess.RestoredPrimary,
		"related", sess.RestoredRelated,
		"taken_at", snap.TakenAt,
	)
	return nil
}

// SeedStep merges seed files into the related partition.
type SeedStep struct {
	dir    string
	prefix string
	logger *slog.Logger
}

// SeedStepOption configures a SeedStep.
type SeedStepOption func(*SeedStep)

// WithSeedLogger sets the logger for the seed step.
func WithSeedLogger(logger *slog.Logger) SeedStepOption {
	return func(s *SeedStep) {
		s.logger = logger
	}
}

// NewSeedStep creates a SeedStep reading dir. An empty dir makes the step a no-op.
func NewSeedStep(dir, prefix string, opts ...SeedStepOption) *SeedStep {
	s := &SeedStep{
		dir:    dir,
		prefix: prefix,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *SeedStep) Name() string {
	return StepSeed
}

// Do loads the seed files and hands them to the loop, which skips any
// seed that is already primary.
func (s *SeedStep) Do(_ context.Context, sess *Session) error {
	if s.dir == "" {
		s.logger.Debug("no seed directory configured")
		return nil
	}

	items, err := seed.Load(s.dir, s.prefix)
	if err != nil {
		return fmt.Errorf("failed to load seeds: %w", err)
	}
	sess.SeedsRead = len(items)

	added, err := sess.Loop.Seed(items)
	if err != nil {
		return fmt.Errorf("failed to merge seeds: %w", err)
	}
	sess.SeedsAdded = added

	s.logger.Info("seeds merged",
		"dir", s.dir,
		"read", sess.SeedsRead,
		"added", added,
	)
	return nil
}

// RecordStartStep opens a row in the run history.
type RecordStartStep struct {
	recorder RunRecorder
	now      func() time.Time
}

// NewRecordStartStep creates a RecordStartStep.
func NewRecordStartStep(recorder RunRecorder) *RecordStartStep {
	return &RecordStartStep{recorder: recorder, now: time.Now}
}

// Name returns the step name.
func (s *RecordStartStep) Name() string {
	return StepRecordStart
}

// Do records the run start and stores the run id in the session.
func (s *RecordStartStep) Do(ctx context.Context, sess *Session) error {
	id, err := s.recorder.StartRun(ctx, s.now())
	if err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}
	sess.RunID = id
	return nil
}

// CrawlStep runs the crawl loop.
//
// Design decision: cancellation is not a step failure. The loop writes a
// final checkpoint before returning, so an interrupted run is a normal,
// resumable outcome and the session carries its counters either way.
type CrawlStep struct {
	logger *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithCrawlLogger sets the logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a CrawlStep.
func NewCrawlStep(opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return StepCrawl
}

// Do runs the loop until it drains, stops or is cancelled.
func (s *CrawlStep) Do(ctx context.Context, sess *Session) error {
	stats, err := sess.Loop.Run(ctx)
	sess.Stats = stats

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		s.logger.Info("crawl cancelled",
			"successes", stats.Successes,
			"frontier", stats.Frontier,
		)
		return nil
	}
	if err != nil {
		return err
	}

	s.logger.Info("crawl completed",
		"state", stats.State.String(),
		"successes", stats.Successes,
		"failures", stats.Failures,
		"primary", stats.Primary,
		"related", stats.Related,
	)
	return nil
}

// RecordFinishStep closes the run history row opened by RecordStartStep.
// Add it with AddFinalStep so it runs after a failure too.
type RecordFinishStep struct {
	recorder RunRecorder
	now      func() time.Time
}

// NewRecordFinishStep creates a RecordFinishStep.
func NewRecordFinishStep(recorder RunRecorder) *RecordFinishStep {
	return &RecordFinishStep{recorder: recorder, now: time.Now}
}

// Name returns the step name.
func (s *RecordFinishStep) Name() string {
	return StepRecordFinish
}

// Do records the run outcome. It does nothing when no run was started.
func (s *RecordFinishStep) Do(ctx context.Context, sess *Session) error {
	if sess.RunID == "" {
		return nil
	}

	st := sess.Stats
	state := st.State.String()
	if !st.State.Terminal() {
		state = RunStateFailed
	}
	finished := st.FinishedAt
	if finished.IsZero() {
		finished = s.now()
	}

	err := s.recorder.FinishRun(ctx, database.Run{
		ID:           sess.RunID,
		FinishedAt:   finished,
		State:        state,
		Cycles:       st.Cycles(),
		Successes:    st.Successes,
		Failures:     st.Failures,
		PrimaryCount: sess.Store.Len(model.Primary),
		RelatedCount: sess.Store.Len(model.Related),
	})
	if err != nil {
		return fmt.Errorf("failed to record run finish: %w", err)
	}
	return nil
}

// CrawlPipelineConfig holds what the crawl pipeline needs beyond the session.
type CrawlPipelineConfig struct {
	// Snapshotter is the checkpoint backend to restore from.
	Snapshotter checkpoint.Snapshotter

	// SeedDir and SeedPrefix locate the seed files. An empty SeedDir skips seeding.
	SeedDir    string
	SeedPrefix string

	// Recorder stores run history. Nil disables it.
	Recorder RunRecorder

	// Logger is passed to every step. Nil means slog.Default().
	Logger *slog.Logger
}

// CrawlPipeline creates the standard crawl session pipeline:
// restore, seed, record-start, crawl, then record-finish as a final step.
func CrawlPipeline(cfg CrawlPipelineConfig, pipelineOpts ...Option) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := New(append([]Option{WithLogger(logger)}, pipelineOpts...)...)

	p.AddSteps(
		NewRestoreStep(cfg.Snapshotter, WithRestoreLogger(logger)),
		NewSeedStep(cfg.SeedDir, cfg.SeedPrefix, WithSeedLogger(logger)),
	)
	if cfg.Recorder != nil {
		p.AddStep(NewRecordStartStep(cfg.Recorder))
	}
	p.AddStep(NewCrawlStep(WithCrawlLogger(logger)))
	if cfg.Recorder != nil {
		p.AddFinalStep(NewRecordFinishStep(cfg.Recorder))
	}

	return p
}
