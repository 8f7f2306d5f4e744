package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nao1215/relcrawl/internal/checkpoint"
	"github.com/nao1215/relcrawl/internal/config"
	"github.com/nao1215/relcrawl/internal/crawler"
	"github.com/nao1215/relcrawl/internal/filter"
	"github.com/nao1215/relcrawl/internal/frontier"
	"github.com/nao1215/relcrawl/internal/model"
	"github.com/nao1215/relcrawl/internal/report"
	"github.com/nao1215/relcrawl/internal/store"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the checkpointed crawl state",
		Long: `Status loads the last checkpoint and prints the partition sizes, the head of
the frontier the next crawl would start with, and the recent run history
(sqlite backend only). Nothing is fetched and nothing is written.

The frontier is computed with the same relevance filter as crawl. Without
any filter flag or configuration, every related item that is not primary
is listed.

Examples:
  # Show the state of the default sqlite checkpoint
  relcrawl status

  # Show the first 25 frontier keys of a file checkpoint as JSON
  relcrawl status --backend file --data-dir ./state --limit 25 --report-json`,
		Args: cobra.NoArgs,
		RunE: runStatusCmd,
	}

	addStorageFlags(cmd)
	addFilterFlags(cmd)
	addReportFlags(cmd)

	cmd.Flags().IntP("limit", "l", report.DefaultFrontierHead,
		"Number of frontier keys to show")
	cmd.Flags().Int("runs", defaultRunHistory,
		"Number of recent runs to show")

	return cmd
}

// runStatusCmd executes the status command.
func runStatusCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateStorage(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if cfg.JSONReport && cfg.MarkdownReport {
		return fmt.Errorf("configuration error: %w", config.ErrConflictingReportFormats)
	}

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	runLimit, err := cmd.Flags().GetInt("runs")
	if err != nil {
		return err
	}

	return runStatus(cmd.Context(), cfg, limit, runLimit, cmd.OutOrStdout())
}

// runStatus restores the checkpoint into a scratch store and writes the summary.
func runStatus(ctx context.Context, cfg *config.Config, limit, runLimit int, stdout io.Writer) error {
	b, err := openBackend(cfg, true)
	if err != nil {
		return err
	}
	defer b.Close()

	st := store.New()
	var snap checkpoint.Snapshot
	if b.snapshotter != nil {
		snap, err = checkpoint.Restore(ctx, b.snapshotter, st)
		if err != nil {
			return err
		}
	}

	f := frontier.New()
	f.Rebuild(st, statusPredicate(cfg), nil)

	runs, err := b.runs(ctx, runLimit)
	if err != nil {
		return err
	}

	stats := crawler.Stats{
		Primary:        st.Len(model.Primary),
		Related:        st.Len(model.Related),
		Frontier:       f.Len(),
		LastCheckpoint: snap.TakenAt,
	}
	summary := report.NewSummary(stats,
		report.WithVersion(getVersion()),
		report.WithStorage(b.name, b.location),
		report.WithFrontier(f.Keys(), limit),
		report.WithRuns(runs),
	)
	return writeSummary(cfg, summary, stdout)
}

// statusPredicate returns the relevance filter of cfg, or a predicate that
// keeps everything when cfg enables no rule.
func statusPredicate(cfg *config.Config) frontier.Predicate {
	if !cfg.HasFilterRule() {
		return keepAll{}
	}
	return filter.New(cfg.FilterOptions())
}

// keepAll accepts every item.
type keepAll struct{}

// Keep implements frontier.Predicate.
func (keepAll) Keep(model.Item) bool { return true }
