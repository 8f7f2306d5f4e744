package report

import (
	"fmt"
	"io"
	"strings"
)

// SimpleWriter outputs human-readable text summaries.
// This format is designed for terminal display with clear section formatting.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with nothing to show are printed.
	showEmpty bool

	// verbose enables additional detail in the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with the full counter list and run ids.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the summary in human-readable format.
func (w *SimpleWriter) Write(s *Summary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, s)
	w.writeCounters(&sb, s)
	w.writePartitions(&sb, s)
	w.writeFrontier(&sb, s)
	w.writeRuns(&sb, s)
	w.writeFooter(&sb, s)

	return w.output.Write([]byte(sb.String()))
}

// writeSection writes a section title between two rules.
func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// writeHeader writes the summary header with run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, s *Summary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         RELCRAWL SUMMARY\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Status:          %s\n", s.statusText()))
	if s.Backend != "" {
		sb.WriteString(fmt.Sprintf("Backend:         %s (%s)\n", s.Backend, s.Location))
	}
	if s.Finished() {
		sb.WriteString(fmt.Sprintf("Started:         %s\n", formatTime(s.Stats.StartedAt)))
		sb.WriteString(fmt.Sprintf("Finished:        %s\n", formatTime(s.Stats.FinishedAt)))
		if d := s.Stats.Duration(); d > 0 {
			sb.WriteString(fmt.Sprintf("Duration:        %s\n", d))
		}
	}
	sb.WriteString(fmt.Sprintf("Last checkpoint: %s\n", formatTime(s.Stats.LastCheckpoint)))
	if s.Stats.LastError != "" {
		sb.WriteString(fmt.Sprintf("Last error:      %s\n", s.Stats.LastError))
	}

	sb.WriteString("\n")
}

// writeCounters writes the loop counters of a finished run.
// Without verbose output only the cycle outcome counters are shown.
func (w *SimpleWriter) writeCounters(sb *strings.Builder, s *Summary) {
	if !s.Finished() && !w.showEmpty {
		return
	}

	writeSection(sb, "COUNTERS")

	counters := s.counters()
	if !w.verbose {
		counters = counters[:3]
	}
	for _, c := range counters {
		sb.WriteString(fmt.Sprintf("  %-20s %d\n", c.Label+":", c.Value))
	}
	sb.WriteString("\n")
}

// writePartitions writes partition and frontier sizes.
func (w *SimpleWriter) writePartitions(sb *strings.Builder, s *Summary) {
	writeSection(sb, "PARTITIONS")

	sb.WriteString(fmt.Sprintf("  PRIMARY:  %d\n", s.Stats.Primary))
	sb.WriteString(fmt.Sprintf("  RELATED:  %d\n", s.Stats.Related))
	sb.WriteString(fmt.Sprintf("  FRONTIER: %d\n", s.Stats.Frontier))
	sb.WriteString("\n")
}

// writeFrontier writes the next keys to be fetched.
func (w *SimpleWriter) writeFrontier(sb *strings.Builder, s *Summary) {
	if len(s.FrontierHead) == 0 && !w.showEmpty {
		return
	}

	writeSection(sb, "FRONTIER")

	if len(s.FrontierHead) == 0 {
		sb.WriteString("  Frontier is empty\n\n")
		return
	}
	for _, k := range s.FrontierHead {
		sb.WriteString(fmt.Sprintf("  [>] %s\n", k))
	}
	if rest := s.Stats.Frontier - len(s.FrontierHead); rest > 0 {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", rest))
	}
	sb.WriteString("\n")
}

// writeRuns writes the run history.
func (w *SimpleWriter) writeRuns(sb *strings.Builder, s *Summary) {
	if len(s.Runs) == 0 && !w.showEmpty {
		return
	}

	writeSection(sb, "RUN HISTORY")

	if len(s.Runs) == 0 {
		sb.WriteString("  No runs recorded\n\n")
		return
	}
	for _, r := range s.Runs {
		id := truncateString(r.ID, 8)
		if w.verbose {
			id = r.ID
		}
		sb.WriteString(fmt.Sprintf("  %s  %s  %-9s cycles=%d failures=%d primary=%d related=%d\n",
			id, formatTime(r.StartedAt), r.State, r.Cycles, r.Failures, r.PrimaryCount, r.RelatedCount))
	}
	sb.WriteString("\n")
}

// writeFooter writes the summary footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder, s *Summary) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	if s.Version != "" {
		sb.WriteString(fmt.Sprintf("Summary generated by relcrawl %s\n", s.Version))
	} else {
		sb.WriteString("Summary generated by relcrawl\n")
	}
	sb.WriteString("https://github.com/nao1215/relcrawl\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
