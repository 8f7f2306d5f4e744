package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/relcrawl/internal/crawler"
	"github.com/nao1215/relcrawl/internal/store"
)

// Session is the state passed from step to step.
type Session struct {
	// Store holds both partitions. Steps merge into it before the loop runs.
	Store *store.ItemStore

	// Loop is the crawl loop over Store.
	Loop *crawler.Loop

	// RestoredPrimary and RestoredRelated are the checkpoint sizes at startup.
	RestoredPrimary int
	RestoredRelated int

	// SeedsRead counts records read from seed files; SeedsAdded counts those
	// merged into the related partition.
	SeedsRead  int
	SeedsAdded int

	// RunID identifies the run in the run history. Empty when not recorded.
	RunID string

	// Stats are the loop counters once the crawl step has finished.
	Stats crawler.Stats

	// PerformedSteps lists the steps that ran, in order.
	PerformedSteps []string

	// Err is the first step error, if any.
	Err error
}

// NewSession creates a Session over the given store and loop.
func NewSession(st *store.ItemStore, loop *crawler.Loop) *Session {
	return &Session{Store: st, Loop: loop}
}

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, with each step receiving the session
// modified by previous steps.
//
// Design decision: We use an interface rather than function types because:
// 1. It allows steps to carry configuration state
// 2. It provides a Name() method for logging and debugging
type Step interface {
	// Do executes the pipeline step.
	// Returns an error if the step fails critically.
	Do(ctx context.Context, s *Session) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
// It maintains a list of steps and executes them in order.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// finalSteps run after steps, even after an error or cancellation.
	finalSteps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails. If false, the pipeline stops on first error.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails. Failed steps are logged and the first error
// is recorded in the session, but subsequent steps still execute.
//
// Design decision: the default is to stop on error because an early
// failure (an unreadable checkpoint, a missing seed directory) means the
// crawl would run on the wrong state.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// AddFinalStep appends a step that runs after all regular steps.
func (p *Pipeline) AddFinalStep(step Step) {
	p.finalSteps = append(p.finalSteps, step)
}

// Execute runs all pipeline steps in sequence, then the final steps.
// It respects context cancellation between regular steps.
//
// Design decision: We check context.Done() before each step rather than
// during, because steps should handle their own cancellation. The crawl
// step in particular keeps its partial counters when cancelled.
//
// Returns the first error encountered if continueOnError is false,
// or nil if all steps complete. Final step errors are logged and returned
// only when no earlier error occurred.
func (p *Pipeline) Execute(ctx context.Context, s *Session) error {
	err := p.run(ctx, s)

	finalCtx := context.WithoutCancel(ctx)
	for _, step := range p.finalSteps {
		if ferr := p.do(finalCtx, step, s); ferr != nil && err == nil {
			err = ferr
		}
	}

	return err
}

// run executes the regular steps.
func (p *Pipeline) run(ctx context.Context, s *Session) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", ctx.Err(),
			)
			return ctx.Err()
		default:
		}

		if err := p.do(ctx, step, s); err != nil && !p.continueOnError {
			return err
		}
	}

	return nil
}

// do runs one step with logging and records its outcome in the session.
func (p *Pipeline) do(ctx context.Context, step Step, s *Session) error {
	p.logger.Debug("executing step", "step", step.Name())

	if err := step.Do(ctx, s); err != nil {
		p.logger.Error("step failed",
			"step", step.Name(),
			"error", err,
		)
		if s.Err == nil {
			s.Err = err
		}
		s.PerformedSteps = append(s.PerformedSteps, step.Name())
		return err
	}

	p.logger.Debug("step completed", "step", step.Name())
	s.PerformedSteps = append(s.PerformedSteps, step.Name())
	return nil
}

// StepCount returns the number of regular and final steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps) + len(p.finalSteps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, 0, p.StepCount())
	for _, step := range p.steps {
		names = append(names, step.Name())
	}
	for _, step := range p.finalSteps {
		names = append(names, step.Name())
	}
	return names
}
