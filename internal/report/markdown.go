package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/relcrawl/internal/crawler"
)

// MarkdownWriter outputs summaries in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(summary *Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeCounters(md, summary)
	w.writePartitions(md, summary)
	w.writeFrontier(md, summary)
	w.writeRuns(md, summary)
	w.writeFooter(md, summary)

	return len(md.String()), md.Build()
}

// writeHeader writes the summary header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *Summary) {
	md.H1("relcrawl Summary")
	md.PlainText("")

	rows := [][]string{
		{"Status", w.getStatusText(s)},
		{"Backend", valueOrDash(s.Backend)},
		{"Location", codeOrDash(s.Location)},
		{"Started", formatTime(s.Stats.StartedAt)},
		{"Finished", formatTime(s.Stats.FinishedAt)},
		{"Last Checkpoint", formatTime(s.Stats.LastCheckpoint)},
	}
	if d := s.Stats.Duration(); d > 0 {
		rows = append(rows, []string{"Duration", d.String()})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writeAlert(md, s)
}

// getStatusText returns the status text with an indicator.
func (w *MarkdownWriter) getStatusText(s *Summary) string {
	switch s.Stats.State {
	case crawler.StateDrained:
		return "✅ " + s.statusText()
	case crawler.StateCancelled:
		return "⚠️ " + s.statusText()
	case crawler.StateStopped:
		return "⏸️ " + s.statusText()
	default:
		return s.statusText()
	}
}

// writeAlert writes an alert describing anything the reader should act on.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s *Summary) {
	st := s.Stats
	switch {
	case st.CheckpointFailures > 0:
		md.Cautionf(
			"%d checkpoint(s) failed. Progress since the last successful checkpoint is not durable.",
			st.CheckpointFailures,
		)
	case st.State == crawler.StateCancelled:
		md.Warningf(
			"The run was cancelled with %d key(s) left in the frontier. Run crawl again to resume.",
			st.Frontier,
		)
	case st.Failures > 0:
		md.Importantf(
			"%d key(s) failed and were dropped for this run. Last error: %s",
			st.Failures, valueOrDash(st.LastError),
		)
	case st.State == crawler.StateStopped:
		md.Note("The cycle budget was reached. Run crawl again to continue.")
	case st.State == crawler.StateDrained:
		md.Tip("Every reachable relevant item has been fetched.")
	}
	md.PlainText("")
}

// writeCounters writes the loop counters and the cycle outcome chart.
func (w *MarkdownWriter) writeCounters(md *markdown.Markdown, s *Summary) {
	if !s.Finished() {
		return
	}

	md.H2("Counters")
	md.PlainText("")

	counters := s.counters()
	rows := make([][]string, 0, len(counters))
	for _, c := range counters {
		rows = append(rows, []string{c.Label, strconv.Itoa(c.Value)})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Counter", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	if s.Stats.Cycles() > 0 {
		w.writePieChart(md, s)
	}
}

// writePieChart writes a mermaid pie chart of cycle outcomes.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s *Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Cycle Outcomes"),
		piechart.WithShowData(true),
	)

	if s.Stats.Successes > 0 {
		chart.LabelAndIntValue("Succeeded", uint64(s.Stats.Successes)) //nolint:gosec // counters are never negative
	}
	if s.Stats.Failures > 0 {
		chart.LabelAndIntValue("Failed", uint64(s.Stats.Failures)) //nolint:gosec // counters are never negative
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writePartitions writes partition and frontier sizes.
func (w *MarkdownWriter) writePartitions(md *markdown.Markdown, s *Summary) {
	md.H2("Partitions")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Partition", "Items"},
		Rows: [][]string{
			{"primary", strconv.Itoa(s.Stats.Primary)},
			{"related", strconv.Itoa(s.Stats.Related)},
			{"frontier", strconv.Itoa(s.Stats.Frontier)},
		},
	})
	md.PlainText("")
}

// writeFrontier writes the next keys to be fetched.
func (w *MarkdownWriter) writeFrontier(md *markdown.Markdown, s *Summary) {
	md.H2("Frontier")
	md.PlainText("")

	if len(s.FrontierHead) == 0 {
		md.PlainText("The frontier is empty.")
		md.PlainText("")
		return
	}

	keys := make([]string, len(s.FrontierHead))
	for i, k := range s.FrontierHead {
		keys[i] = "`" + k.String() + "`"
	}
	md.BulletList(keys...)
	if rest := s.Stats.Frontier - len(s.FrontierHead); rest > 0 {
		md.PlainText("")
		md.PlainTextf("...and %d more.", rest)
	}
	md.PlainText("")
}

// writeRuns writes the run history table.
func (w *MarkdownWriter) writeRuns(md *markdown.Markdown, s *Summary) {
	if len(s.Runs) == 0 {
		return
	}

	md.H2("Run History")
	md.PlainText("")

	rows := make([][]string, len(s.Runs))
	for i, r := range s.Runs {
		rows[i] = []string{
			"`" + truncateString(r.ID, 8) + "`",
			formatTime(r.StartedAt),
			formatTime(r.FinishedAt),
			r.State,
			strconv.Itoa(r.Cycles),
			strconv.Itoa(r.Failures),
			strconv.Itoa(r.PrimaryCount),
			strconv.Itoa(r.RelatedCount),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Run", "Started", "Finished", "State", "Cycles", "Failures", "Primary", "Related"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the summary footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown, s *Summary) {
	md.HorizontalRule()
	md.PlainText("")
	if s.Version != "" {
		md.PlainTextf("*Summary generated by [relcrawl %s](https://github.com/nao1215/relcrawl)*", s.Version)
		return
	}
	md.PlainTextf("*Summary generated by [relcrawl](https://github.com/nao1215/relcrawl)*")
}

// valueOrDash returns "-" for an empty string.
func valueOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// codeOrDash wraps s in backticks, or returns "-" when empty.
func codeOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return "`" + s + "`"
}

// truncateString truncates a string to maxLen characters with ellipsis.
// Strings of maxLen or less are returned unchanged.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
