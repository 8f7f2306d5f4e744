package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for relcrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relcrawl",
		Short: "Incremental, restart-safe crawler for related-item graphs",
		Long: `relcrawl expands a seed set of items by following each item's related
items, keeping only those that match a relevance filter (keywords, text
language or subtitle language).

Fetched items are stored in the primary partition and discovered items in
the related partition. Both are checkpointed periodically, so a crawl that
is interrupted resumes from the last checkpoint without refetching.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	// Add subcommands
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
