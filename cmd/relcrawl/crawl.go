package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/net/proxy"

	"github.com/nao1215/relcrawl/internal/checkpoint"
	"github.com/nao1215/relcrawl/internal/config"
	"github.com/nao1215/relcrawl/internal/crawler"
	"github.com/nao1215/relcrawl/internal/fetch/httpapi"
	"github.com/nao1215/relcrawl/internal/filter"
	"github.com/nao1215/relcrawl/internal/pipeline"
	"github.com/nao1215/relcrawl/internal/report"
	"github.com/nao1215/relcrawl/internal/seed"
	"github.com/nao1215/relcrawl/internal/store"
	"github.com/nao1215/relcrawl/internal/tor"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl the related-item graph from the last checkpoint",
		Long: `Crawl restores the last checkpoint, merges the seed files into the related
partition and then fetches relevant related items one by one until none
are left.

For every fetched item the detail record is stored as primary and its
related items are stored as related when they pass the relevance filter.
Progress is checkpointed every --checkpoint-every successful fetches and
once more when the crawl ends. Ctrl+C stops the crawl after the items in
flight are merged; the next run resumes from there.

Examples:
  # Crawl from hashtag dumps, keeping items that mention a keyword
  relcrawl crawl --base-url https://api.example.com --seed-dir ./seeds -k georgescu

  # Keep Romanian items, fetch 4 at a time, and write checkpoints as files
  relcrawl crawl --target-language ro --subtitle-language ron-RO -w 4 --backend file

  # Route requests through an existing Tor SOCKS proxy
  relcrawl crawl --proxy 127.0.0.1:9050 -k georgescu

  # Stop after 100 fetches and write a Markdown summary
  relcrawl crawl --max-cycles 100 --report-markdown -o summary.md

Configuration file (.relcrawl) example:
  keywords: [georgescu, calin]
  checkpointEvery: 10
  fetch:
    baseURL: https://api.example.com
    cookie: "msToken=abc123"
  seed:
    dir: ./seeds`,
		Args: cobra.NoArgs,
		RunE: runCrawlCmd,
	}

	addStorageFlags(cmd)
	addFilterFlags(cmd)
	addReportFlags(cmd)

	// Crawl loop flags
	cmd.Flags().Int("checkpoint-every", config.DefaultCheckpointEvery,
		"Number of successful fetches between checkpoints")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of items fetched concurrently")
	cmd.Flags().Int("max-cycles", 0,
		"Stop after this many fetches (0 means until the frontier is empty)")
	cmd.Flags().Int("max-attempts", config.DefaultMaxAttempts,
		"Total attempts per item before it is dropped for the run")
	cmd.Flags().Duration("backoff", config.DefaultBackoff,
		"Wait before the second attempt; doubles for later attempts")

	// Seed flags
	cmd.Flags().String("seed-dir", "",
		"Directory with seed files merged into the related partition")
	cmd.Flags().String("seed-prefix", seed.DefaultPrefix,
		"File name prefix of seed files")

	// Fetch client flags
	cmd.Flags().StringP("base-url", "u", "",
		"Base URL of the item API")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().Duration("rate", config.DefaultRateLimit,
		"Minimum interval between requests (0 disables the limit)")
	cmd.Flags().StringP("proxy", "e", "",
		"Route requests through a SOCKS5 proxy (e.g., 127.0.0.1:9050)")
	cmd.Flags().Bool("embedded-tor", false,
		"Start an embedded Tor daemon and route requests through it")
	cmd.Flags().DurationP("tor-timeout", "T", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().String("cookie", "",
		"Cookie sent with every request (e.g., \"msToken=abc\")")
	cmd.Flags().StringArray("header", nil,
		"Header sent with every request as \"Name: value\" (repeatable)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, finishing items in flight...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runCrawl(ctx, cfg, logger, cmd.OutOrStdout())
}

// runCrawl executes one crawl session and writes its summary to stdout
// or the report file.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout io.Writer) error {
	b, err := openBackend(cfg, false)
	if err != nil {
		return err
	}
	defer b.Close()

	dialer, stopProxy, err := setupProxy(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stopProxy()

	opener, err := newOpener(cfg, dialer, logger)
	if err != nil {
		return err
	}

	st := store.New()
	relevance := filter.New(cfg.FilterOptions())
	loop := crawler.New(opener, st, relevance,
		crawler.WithWorkers(cfg.Workers),
		crawler.WithRetry(cfg.RetryPolicy()),
		crawler.WithCheckpointer(checkpoint.NewWriter(b.snapshotter, checkpoint.WithLogger(logger))),
		crawler.WithCheckpointEvery(cfg.CheckpointEvery),
		crawler.WithMaxCycles(cfg.MaxCycles),
		crawler.WithLogger(logger),
	)

	p := pipeline.CrawlPipeline(pipeline.CrawlPipelineConfig{
		Snapshotter: b.snapshotter,
		SeedDir:     cfg.Seed.Dir,
		SeedPrefix:  cfg.Seed.Prefix,
		Recorder:    b.recorder(),
		Logger:      logger,
	})

	logger.Info("starting crawl",
		"backend", b.name,
		"location", b.location,
		"workers", cfg.Workers,
		"checkpointEvery", cfg.CheckpointEvery,
		"keywords", relevance.Keywords(),
		"proxy", cfg.Fetch.Proxy,
	)

	sess := pipeline.NewSession(st, loop)
	execErr := p.Execute(ctx, sess)

	// The summary is written for failed and cancelled runs too.
	runs, err := b.runs(context.WithoutCancel(ctx), defaultRunHistory)
	if err != nil {
		logger.Warn("failed to read run history", "error", err)
	}
	summary := report.NewSummary(loop.Stats(),
		report.WithVersion(getVersion()),
		report.WithStorage(b.name, b.location),
		report.WithFrontier(loop.Frontier(), report.DefaultFrontierHead),
		report.WithRuns(runs),
	)
	if err := writeSummary(cfg, summary, stdout); err != nil {
		logger.Error("failed to write summary", "error", err)
		if execErr == nil {
			execErr = err
		}
	}

	if execErr != nil {
		return fmt.Errorf("crawl failed: %w", execErr)
	}
	return nil
}

// newOpener builds the HTTP fetch client from cfg.
func newOpener(cfg *config.Config, dialer proxy.ContextDialer, logger *slog.Logger) (*httpapi.Opener, error) {
	opts := []httpapi.Option{
		httpapi.WithTimeout(cfg.Fetch.Timeout),
		httpapi.WithRateLimit(cfg.Fetch.RateLimit),
		httpapi.WithUserAgent(cfg.Fetch.UserAgent),
		httpapi.WithLogger(logger),
	}
	if len(cfg.Fetch.Headers) > 0 {
		opts = append(opts, httpapi.WithHeaders(cfg.Fetch.Headers))
	}
	if cfg.Fetch.Cookie != "" {
		opts = append(opts, httpapi.WithCookie(cfg.Fetch.Cookie))
	}
	if dialer != nil {
		opts = append(opts, httpapi.WithDialer(dialer))
	}

	opener, err := httpapi.New(cfg.Fetch.BaseURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch client: %w", err)
	}
	return opener, nil
}

// setupProxy returns the SOCKS5 dialer for the fetch client, or nil for a
// direct connection. The returned stop function is never nil.
func setupProxy(ctx context.Context, cfg *config.Config, logger *slog.Logger) (proxy.ContextDialer, func(), error) {
	noop := func() {}

	switch {
	case cfg.Fetch.EmbeddedTor:
		return startEmbeddedTor(ctx, cfg, logger)
	case cfg.Fetch.Proxy != "":
		p, err := tor.ParseProxy(cfg.Fetch.Proxy)
		if err != nil {
			return nil, noop, err
		}
		if err := p.Check(ctx).Error(); err != nil {
			return nil, noop, fmt.Errorf("proxy check failed for %s: %w", p, err)
		}
		logger.Info("proxy connection verified", "proxy", p.String())
		return p, noop, nil
	default:
		return nil, noop, nil
	}
}

// startEmbeddedTor starts an embedded Tor daemon using tornago and returns
// a dialer through its SOCKS port.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, logger *slog.Logger) (proxy.ContextDialer, func(), error) {
	logger.Info("starting embedded Tor daemon, this may take 1-3 minutes",
		"timeout", cfg.Fetch.TorStartupTimeout,
	)

	daemon := tor.NewDaemon(tor.WithStartupTimeout(cfg.Fetch.TorStartupTimeout))
	if err := daemon.Start(ctx); err != nil {
		return nil, func() {}, fmt.Errorf("failed to start embedded Tor: %w", err)
	}

	stop := func() {
		logger.Info("stopping embedded Tor daemon...")
		if err := daemon.Stop(); err != nil {
			logger.Error("failed to stop embedded Tor", "error", err)
		}
	}

	p, err := daemon.Proxy()
	if err != nil {
		stop()
		return nil, func() {}, err
	}
	if err := p.Check(ctx).Error(); err != nil {
		stop()
		return nil, func() {}, fmt.Errorf("embedded Tor proxy check failed: %w", err)
	}

	logger.Info("embedded Tor daemon started", "socksAddr", daemon.SocksAddr())
	return p, stop, nil
}

// writeSummary renders summary in the format selected by cfg.
func writeSummary(cfg *config.Config, summary *report.Summary, stdout io.Writer) (err error) {
	out, closeOut, err := openReportOutput(cfg, stdout)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeOut(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	var w report.Writer
	switch {
	case cfg.JSONReport:
		w = report.NewJSONWriter(out, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		w = report.NewMarkdownWriter(out)
	default:
		w = report.NewSimpleWriter(out, report.WithVerbose(cfg.Verbose))
	}

	_, err = w.Write(summary)
	return err
}
