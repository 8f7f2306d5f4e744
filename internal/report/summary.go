package report

import (
	"time"

	"github.com/nao1215/relcrawl/internal/crawler"
	"github.com/nao1215/relcrawl/internal/database"
	"github.com/nao1215/relcrawl/internal/model"
)

// DefaultFrontierHead is the number of frontier keys shown in a summary.
const DefaultFrontierHead = 10

// timeLayout is used for every timestamp in text and Markdown output.
const timeLayout = "2006-01-02 15:04:05 MST"

// Summary is everything a writer renders about one crawl or one status query.
type Summary struct {
	// Version is the relcrawl version that produced the summary.
	Version string

	// Backend and Location describe where the checkpoint lives.
	Backend  string
	Location string

	// Stats are the loop counters. A status query fills only the sizes.
	Stats crawler.Stats

	// FrontierHead holds the first keys that would be fetched next.
	FrontierHead []model.ItemKey

	// Runs is the run history, newest first. Only the sqlite backend has one.
	Runs []database.Run

	// GeneratedAt is when the summary was built.
	GeneratedAt time.Time
}

// SummaryOption configures a Summary.
type SummaryOption func(*Summary)

// WithVersion sets the version string.
func WithVersion(version string) SummaryOption {
	return func(s *Summary) {
		s.Version = version
	}
}

// WithStorage sets the backend name and its location.
func WithStorage(backend, location string) SummaryOption {
	return func(s *Summary) {
		s.Backend = backend
		s.Location = location
	}
}

// WithFrontier keeps at most limit keys of the frontier. A limit of zero
// or less uses DefaultFrontierHead.
func WithFrontier(keys []model.ItemKey, limit int) SummaryOption {
	return func(s *Summary) {
		if limit <= 0 {
			limit = DefaultFrontierHead
		}
		if len(keys) > limit {
			keys = keys[:limit]
		}
		s.FrontierHead = append([]model.ItemKey(nil), keys...)
	}
}

// WithRuns sets the run history.
func WithRuns(runs []database.Run) SummaryOption {
	return func(s *Summary) {
		s.Runs = runs
	}
}

// WithGeneratedAt overrides the generation time.
func WithGeneratedAt(t time.Time) SummaryOption {
	return func(s *Summary) {
		s.GeneratedAt = t
	}
}

// NewSummary builds a Summary from loop counters.
func NewSummary(stats crawler.Stats, opts ...SummaryOption) *Summary {
	s := &Summary{
		Stats:       stats,
		GeneratedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Finished reports whether the summary describes a completed run.
func (s *Summary) Finished() bool {
	return s.Stats.State.Terminal()
}

// statusText returns a one-line description of how the run ended.
func (s *Summary) statusText() string {
	switch s.Stats.State {
	case crawler.StateDrained:
		return "Drained (frontier empty)"
	case crawler.StateCancelled:
		return "Cancelled (resumable)"
	case crawler.StateStopped:
		return "Stopped (cycle budget reached)"
	default:
		return "Not running"
	}
}

// counter is one labelled loop counter.
type counter struct {
	Label string
	Value int
}

// counters returns the loop counters in display order.
func (s *Summary) counters() []counter {
	st := s.Stats
	return []counter{
		{"Cycles", st.Cycles()},
		{"Successes", st.Successes},
		{"Failures", st.Failures},
		{"Retries", st.Retries},
		{"Related merged", st.RelatedMerged},
		{"Filtered", st.Filtered},
		{"Skipped", st.Skipped},
		{"Evicted", st.Evicted},
		{"Dropped", st.Dropped},
		{"Checkpoints", st.Checkpoints},
		{"Checkpoint failures", st.CheckpointFailures},
	}
}

// formatTime formats t with timeLayout, or "-" for the zero time.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(timeLayout)
}
