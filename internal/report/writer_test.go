package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/relcrawl/internal/crawler"
	"github.com/nao1215/relcrawl/internal/database"
	"github.com/nao1215/relcrawl/internal/model"
)

var testStart = time.Date(2024, 11, 20, 9, 0, 0, 0, time.UTC)

// createTestSummary creates a summary of a drained run for testing.
func createTestSummary() *Summary {
	stats := crawler.Stats{
		State:          crawler.StateDrained,
		Successes:      12,
		Failures:       2,
		Retries:        1,
		RelatedMerged:  40,
		Filtered:       25,
		Skipped:        3,
		Evicted:        9,
		Dropped:        2,
		Checkpoints:    3,
		Primary:        12,
		Related:        18,
		Frontier:       0,
		LastError:      "fetch related alice/7: stream reset",
		LastCheckpoint: testStart.Add(9 * time.Minute),
		StartedAt:      testStart,
		FinishedAt:     testStart.Add(10 * time.Minute),
	}
	runs := []database.Run{
		{
			ID:           "0b7e1c9a-3f7d-4b5e-9d1a-2c3e4f5a6b7c",
			StartedAt:    testStart,
			FinishedAt:   testStart.Add(10 * time.Minute),
			State:        "drained",
			Cycles:       14,
			Successes:    12,
			Failures:     2,
			PrimaryCount: 12,
			RelatedCount: 18,
		},
	}
	return NewSummary(stats,
		WithVersion("v1.2.3"),
		WithStorage("sqlite", "/data/relcrawl.db"),
		WithRuns(runs),
		WithGeneratedAt(testStart.Add(11*time.Minute)),
	)
}

// createStatusSummary creates a summary of a checkpoint that still has work.
func createStatusSummary() *Summary {
	keys := make([]model.ItemKey, 15)
	for i := range keys {
		keys[i] = model.ItemKey{AuthorID: "bob", ID: string(rune('a' + i))}
	}
	stats := crawler.Stats{Primary: 4, Related: 20, Frontier: len(keys)}
	return NewSummary(stats,
		WithStorage("file", "/data"),
		WithFrontier(keys, 0),
	)
}

// TestNewSummary tests summary construction.
func TestNewSummary(t *testing.T) {
	t.Parallel()

	t.Run("frontier head is capped at the default", func(t *testing.T) {
		t.Parallel()

		s := createStatusSummary()
		if len(s.FrontierHead) != DefaultFrontierHead {
			t.Errorf("expected %d keys, got %d", DefaultFrontierHead, len(s.FrontierHead))
		}
		if s.FrontierHead[0].String() != "bob/a" {
			t.Errorf("expected head bob/a, got %s", s.FrontierHead[0])
		}
	})

	t.Run("explicit limit and short frontier", func(t *testing.T) {
		t.Parallel()

		keys := []model.ItemKey{{AuthorID: "a", ID: "1"}, {AuthorID: "a", ID: "2"}}
		s := NewSummary(crawler.Stats{}, WithFrontier(keys, 1))
		if len(s.FrontierHead) != 1 {
			t.Errorf("expected 1 key, got %d", len(s.FrontierHead))
		}

		s = NewSummary(crawler.Stats{}, WithFrontier(keys, 5))
		if len(s.FrontierHead) != 2 {
			t.Errorf("expected 2 keys, got %d", len(s.FrontierHead))
		}
		keys[0].ID = "changed"
		if s.FrontierHead[0].ID != "1" {
			t.Error("expected summary to copy the frontier keys")
		}
	})

	t.Run("finished follows terminal state", func(t *testing.T) {
		t.Parallel()

		if !createTestSummary().Finished() {
			t.Error("expected drained summary to be finished")
		}
		if createStatusSummary().Finished() {
			t.Error("expected status summary not to be finished")
		}
	})

	t.Run("generated time defaults to now", func(t *testing.T) {
		t.Parallel()

		before := time.Now()
		s := NewSummary(crawler.Stats{})
		if s.GeneratedAt.Before(before) {
			t.Errorf("expected GeneratedAt after %v, got %v", before, s.GeneratedAt)
		}
	})
}

// TestSimpleWriter tests the human-readable summary writer.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes summary header", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf)

		if _, err := w.Write(createTestSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"RELCRAWL SUMMARY",
			"Drained (frontier empty)",
			"sqlite (/data/relcrawl.db)",
			"Duration:        10m0s",
			"stream reset",
			"relcrawl v1.2.3",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q:\n%s", want, output)
			}
		}
	})

	t.Run("writes short counters by default", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf)

		if _, err := w.Write(createTestSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "Cycles:") || !strings.Contains(output, "14") {
			t.Errorf("expected cycle count in output:\n%s", output)
		}
		if strings.Contains(output, "Related merged:") {
			t.Error("expected detailed counters to be hidden without verbose")
		}
	})

	t.Run("verbose writes all counters and full run ids", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf, WithVerbose(true))

		if _, err := w.Write(createTestSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "Related merged:") {
			t.Error("expected detailed counters in verbose output")
		}
		if !strings.Contains(output, "0b7e1c9a-3f7d-4b5e-9d1a-2c3e4f5a6b7c") {
			t.Error("expected full run id in verbose output")
		}
	})

	t.Run("writes partitions", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf)

		if _, err := w.Write(createStatusSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "PRIMARY:  4") || !strings.Contains(output, "RELATED:  20") {
			t.Errorf("expected partition sizes in output:\n%s", output)
		}
	})

	t.Run("writes frontier head and remainder", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf)

		if _, err := w.Write(createStatusSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "[>] bob/a") {
			t.Error("expected first frontier key in output")
		}
		if !strings.Contains(output, "... and 5 more") {
			t.Errorf("expected frontier remainder in output:\n%s", output)
		}
		if strings.Contains(output, "COUNTERS") {
			t.Error("expected counters to be hidden for an unfinished summary")
		}
	})

	t.Run("hides empty sections by default", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf)

		if _, err := w.Write(NewSummary(crawler.Stats{})); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if strings.Contains(output, "FRONTIER\n") || strings.Contains(output, "RUN HISTORY") {
			t.Errorf("expected empty sections to be hidden:\n%s", output)
		}
	})

	t.Run("shows empty sections when requested", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf, WithShowEmpty(true))

		if _, err := w.Write(NewSummary(crawler.Stats{})); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "Frontier is empty") {
			t.Error("expected empty frontier message")
		}
		if !strings.Contains(output, "No runs recorded") {
			t.Error("expected empty run history message")
		}
	})
}

// TestSimpleWriterStates tests the status line for each terminal state.
func TestSimpleWriterStates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state crawler.State
		want  string
	}{
		{crawler.StateDrained, "Drained"},
		{crawler.StateCancelled, "Cancelled (resumable)"},
		{crawler.StateStopped, "Stopped (cycle budget reached)"},
		{crawler.StateIdle, "Not running"},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			w := NewSimpleWriter(&buf)
			if _, err := w.Write(NewSummary(crawler.Stats{State: tt.state})); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("expected %q in output:\n%s", tt.want, buf.String())
			}
		})
	}
}

// TestJSONWriter tests the JSON summary writer.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes valid JSON", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf)

		if _, err := w.Write(createTestSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var result JSONSummary
		if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
			t.Fatalf("invalid JSON output: %v", err)
		}

		if result.State != "drained" {
			t.Errorf("expected state drained, got %q", result.State)
		}
		if result.Counters.Cycles != 14 || result.Counters.RelatedMerged != 40 {
			t.Errorf("unexpected counters: %+v", result.Counters)
		}
		if result.Partitions.Primary != 12 || result.Partitions.Related != 18 {
			t.Errorf("unexpected partitions: %+v", result.Partitions)
		}
		if result.Duration != "10m0s" {
			t.Errorf("expected duration 10m0s, got %q", result.Duration)
		}
		if result.StartedAt == nil || !result.StartedAt.Equal(testStart) {
			t.Errorf("expected startedAt %v, got %v", testStart, result.StartedAt)
		}
		if len(result.Runs) != 1 || result.Runs[0].Related != 18 {
			t.Errorf("unexpected runs: %+v", result.Runs)
		}
	})

	t.Run("omits unset times and keeps empty frontier as array", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf)

		if _, err := w.Write(NewSummary(crawler.Stats{})); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if strings.Contains(output, "startedAt") || strings.Contains(output, "finishedAt") {
			t.Errorf("expected zero times to be omitted: %s", output)
		}
		if !strings.Contains(output, `"frontier":[]`) {
			t.Errorf("expected empty frontier array: %s", output)
		}
	})

	t.Run("writes frontier keys as author/id", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf)

		if _, err := w.Write(createStatusSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var result JSONSummary
		if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
			t.Fatalf("invalid JSON output: %v", err)
		}
		if len(result.Frontier) != DefaultFrontierHead || result.Frontier[0] != "bob/a" {
			t.Errorf("unexpected frontier: %v", result.Frontier)
		}
	})

	t.Run("compact output has a single line", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf)

		if _, err := w.Write(createTestSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 1 {
			t.Errorf("expected compact JSON on one line, got %d lines", len(lines))
		}
	})
}

// TestWithIndent tests custom JSON indentation.
func TestWithIndent(t *testing.T) {
	t.Parallel()

	t.Run("custom indent", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf, WithIndent("", "\t"))

		if _, err := w.Write(createTestSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n\t\"state\"") {
			t.Error("expected tab indentation")
		}
	})

	t.Run("pretty print", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf, WithPrettyPrint())

		if _, err := w.Write(createTestSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"state\"") {
			t.Error("expected two-space indentation")
		}
	})
}

// failingWriter is a Writer that always fails.
type failingWriter struct{}

func (failingWriter) Write(*Summary) (int, error) {
	return 0, errors.New("disk full")
}

// TestMultiWriter tests writing to multiple outputs.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to all writers", func(t *testing.T) {
		t.Parallel()

		var text, js bytes.Buffer
		w := NewMultiWriter(NewSimpleWriter(&text), NewJSONWriter(&js))

		n, err := w.Write(createTestSummary())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != text.Len()+js.Len() {
			t.Errorf("expected %d bytes, got %d", text.Len()+js.Len(), n)
		}
		if text.Len() == 0 || js.Len() == 0 {
			t.Error("expected both outputs to be written")
		}
	})

	t.Run("stops at first error", func(t *testing.T) {
		t.Parallel()

		var after bytes.Buffer
		w := NewMultiWriter(failingWriter{}, NewSimpleWriter(&after))

		if _, err := w.Write(createTestSummary()); err == nil {
			t.Fatal("expected error")
		}
		if after.Len() != 0 {
			t.Error("expected later writers to be skipped")
		}
	})
}

// TestMarkdownWriter tests the Markdown summary writer.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header table", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewMarkdownWriter(&buf)

		if _, err := w.Write(createTestSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "# relcrawl Summary") {
			t.Error("expected H1 header")
		}
		if !strings.Contains(output, "Property") {
			t.Error("expected property table")
		}
		if !strings.Contains(output, "/data/relcrawl.db") {
			t.Error("expected location")
		}
		if !strings.Contains(output, "Drained") {
			t.Error("expected drained status")
		}
	})

	t.Run("writes counters and pie chart", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewMarkdownWriter(&buf)

		if _, err := w.Write(createTestSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "## Counters") {
			t.Error("expected counters section")
		}
		if !strings.Contains(output, "```mermaid") {
			t.Error("expected mermaid block")
		}
		if !strings.Contains(output, "Cycle Outcomes") {
			t.Error("expected chart title")
		}
	})

	t.Run("writes failure alert", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewMarkdownWriter(&buf)

		if _, err := w.Write(createTestSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "[!IMPORTANT]") {
			t.Errorf("expected IMPORTANT alert for dropped keys:\n%s", output)
		}
	})

	t.Run("writes run history with short ids", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewMarkdownWriter(&buf)

		if _, err := w.Write(createTestSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "## Run History") {
			t.Error("expected run history section")
		}
		if !strings.Contains(output, "0b7e1...") {
			t.Errorf("expected truncated run id:\n%s", output)
		}
	})

	t.Run("writes frontier list", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewMarkdownWriter(&buf)

		if _, err := w.Write(createStatusSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "`bob/a`") {
			t.Error("expected frontier key as code")
		}
		if !strings.Contains(output, "...and 5 more.") {
			t.Error("expected frontier remainder")
		}
		if strings.Contains(output, "## Counters") {
			t.Error("expected no counters for an unfinished summary")
		}
		if strings.Contains(output, "## Run History") {
			t.Error("expected no run history without runs")
		}
	})

	t.Run("writes empty frontier message", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewMarkdownWriter(&buf)

		if _, err := w.Write(NewSummary(crawler.Stats{State: crawler.StateDrained})); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "The frontier is empty.") {
			t.Error("expected empty frontier message")
		}
		if !strings.Contains(output, "[!TIP]") {
			t.Error("expected TIP alert for a clean drain")
		}
		if strings.Contains(output, "```mermaid") {
			t.Error("expected no chart without cycles")
		}
	})

	t.Run("returns byte count", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewMarkdownWriter(&buf)

		n, err := w.Write(createTestSummary())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n == 0 {
			t.Error("expected non-zero byte count")
		}
	})
}

// TestMarkdownWriterAlerts tests alert selection.
func TestMarkdownWriterAlerts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		stats crawler.Stats
		want  string
	}{
		{
			name:  "checkpoint failure is a caution",
			stats: crawler.Stats{State: crawler.StateDrained, Successes: 2, CheckpointFailures: 1},
			want:  "[!CAUTION]",
		},
		{
			name:  "cancellation is a warning",
			stats: crawler.Stats{State: crawler.StateCancelled, Successes: 2, Frontier: 3},
			want:  "[!WARNING]",
		},
		{
			name:  "budget stop is a note",
			stats: crawler.Stats{State: crawler.StateStopped, Successes: 5},
			want:  "[!NOTE]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			w := NewMarkdownWriter(&buf)
			if _, err := w.Write(NewSummary(tt.stats)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("expected %s alert:\n%s", tt.want, buf.String())
			}
		})
	}
}

// TestTruncateString tests the string truncation helper.
func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"short string unchanged", "abc", 8, "abc"},
		{"exact length unchanged", "abcdefgh", 8, "abcdefgh"},
		{"long string gets ellipsis", "abcdefghij", 8, "abcde..."},
		{"tiny limit cuts without ellipsis", "abcdef", 2, "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := truncateString(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("truncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}
