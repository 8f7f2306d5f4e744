package report

import (
	"encoding/json"
	"io"
	"time"
)

// JSONWriter outputs summaries in JSON format.
// This format is designed for tool integration and programmatic processing.
//
// Design decision: We use standard encoding/json rather than a third-party
// JSON library because the summary is a small, flat document and the item
// records elsewhere in relcrawl already use encoding/json.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
// This is a convenience wrapper for WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the summary in JSON format.
func (w *JSONWriter) Write(summary *Summary) (int, error) {
	return w.writeJSON(newJSONSummary(summary))
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}

// JSONSummary is the wire form of a Summary.
//
// Design decision: We convert to a dedicated struct rather than tagging
// crawler.Stats because the state is an integer enum inside the loop and
// durations read better as strings.
type JSONSummary struct {
	Version     string       `json:"version,omitempty"`
	Backend     string       `json:"backend,omitempty"`
	Location    string       `json:"location,omitempty"`
	GeneratedAt time.Time    `json:"generatedAt"`
	State       string       `json:"state"`
	Counters    JSONCounters `json:"counters"`
	Partitions  JSONSizes    `json:"partitions"`
	Frontier    []string     `json:"frontier"`
	LastError   string       `json:"lastError,omitempty"`

	StartedAt      *time.Time `json:"startedAt,omitempty"`
	FinishedAt     *time.Time `json:"finishedAt,omitempty"`
	LastCheckpoint *time.Time `json:"lastCheckpoint,omitempty"`
	Duration       string     `json:"duration,omitempty"`

	Runs []JSONRun `json:"runs,omitempty"`
}

// JSONCounters holds the loop counters.
type JSONCounters struct {
	Cycles             int `json:"cycles"`
	Successes          int `json:"successes"`
	Failures           int `json:"failures"`
	Retries            int `json:"retries"`
	RelatedMerged      int `json:"relatedMerged"`
	Filtered           int `json:"filtered"`
	Skipped            int `json:"skipped"`
	Evicted            int `json:"evicted"`
	Dropped            int `json:"dropped"`
	Checkpoints        int `json:"checkpoints"`
	CheckpointFailures int `json:"checkpointFailures"`
}

// JSONSizes holds partition and frontier sizes.
type JSONSizes struct {
	Primary  int `json:"primary"`
	Related  int `json:"related"`
	Frontier int `json:"frontier"`
}

// JSONRun is one row of run history.
type JSONRun struct {
	ID         string     `json:"id"`
	State      string     `json:"state"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Cycles     int        `json:"cycles"`
	Successes  int        `json:"successes"`
	Failures   int        `json:"failures"`
	Primary    int        `json:"primary"`
	Related    int        `json:"related"`
}

// newJSONSummary converts a Summary to its wire form.
func newJSONSummary(s *Summary) *JSONSummary {
	st := s.Stats
	out := &JSONSummary{
		Version:     s.Version,
		Backend:     s.Backend,
		Location:    s.Location,
		GeneratedAt: s.GeneratedAt.UTC(),
		State:       st.State.String(),
		Counters: JSONCounters{
			Cycles:             st.Cycles(),
			Successes:          st.Successes,
			Failures:           st.Failures,
			Retries:            st.Retries,
			RelatedMerged:      st.RelatedMerged,
			Filtered:           st.Filtered,
			Skipped:            st.Skipped,
			Evicted:            st.Evicted,
			Dropped:            st.Dropped,
			Checkpoints:        st.Checkpoints,
			CheckpointFailures: st.CheckpointFailures,
		},
		Partitions: JSONSizes{
			Primary:  st.Primary,
			Related:  st.Related,
			Frontier: st.Frontier,
		},
		Frontier:       make([]string, 0, len(s.FrontierHead)),
		LastError:      st.LastError,
		StartedAt:      timePtr(st.StartedAt),
		FinishedAt:     timePtr(st.FinishedAt),
		LastCheckpoint: timePtr(st.LastCheckpoint),
	}
	if d := st.Duration(); d > 0 {
		out.Duration = d.String()
	}
	for _, k := range s.FrontierHead {
		out.Frontier = append(out.Frontier, k.String())
	}
	for _, r := range s.Runs {
		out.Runs = append(out.Runs, JSONRun{
			ID:         r.ID,
			State:      r.State,
			StartedAt:  r.StartedAt.UTC(),
			FinishedAt: timePtr(r.FinishedAt),
			Cycles:     r.Cycles,
			Successes:  r.Successes,
			Failures:   r.Failures,
			Primary:    r.PrimaryCount,
			Related:    r.RelatedCount,
		})
	}
	return out
}

// timePtr returns nil for the zero time so that omitempty drops it.
func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
