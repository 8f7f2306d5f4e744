package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/relcrawl/internal/config"
	"github.com/nao1215/relcrawl/internal/log"
)

// errInvalidHeader is returned for a --header value without a colon.
var errInvalidHeader = errors.New(`invalid header: expected "Name: value"`)

// addStorageFlags registers the flags shared by every command that reads
// the checkpoint.
func addStorageFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .relcrawl in current or home directory)")
	cmd.Flags().String("backend", config.BackendSQLite,
		"Checkpoint backend: sqlite or file")
	cmd.Flags().String("data-dir", config.XDGDataDir(),
		"Directory holding the checkpoint")
}

// addFilterFlags registers the relevance filter flags.
func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceP("keyword", "k", nil,
		"Keyword matched against item descriptions (repeatable)")
	cmd.Flags().String("target-language", "",
		"Keep items whose textLanguage equals this value (e.g. ro)")
	cmd.Flags().String("subtitle-language", "",
		"Keep items with a subtitle in this language (e.g. ron-RO)")
	cmd.Flags().Int("max-subtitle-languages", config.DefaultMaxSubtitleLanguages,
		"Ignore the subtitle rule for items with this many subtitle tracks or more")
}

// addReportFlags registers the summary output flags.
func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("report-json", false,
		"Output the summary as JSON (mutually exclusive with --report-markdown)")
	cmd.Flags().Bool("report-markdown", false,
		"Output the summary as Markdown (mutually exclusive with --report-json)")
	cmd.Flags().StringP("output", "o", "",
		"Write the summary to the specified file path (creates directories if needed)")
}

// buildConfig creates a Config from defaults, the configuration file and
// the flags of cmd, in that order of precedence.
//
// Design decision: only flags the user actually set override the file.
// Applying every flag would reset file values to the flag defaults.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg.ConfigFilePath = configFile

	// If the user explicitly specified a config file path, error if not found.
	// Without a path, a missing file simply leaves the defaults in place.
	if path := config.FindConfigFile(configFile); path != "" {
		if err := config.LoadConfigFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	} else if configFile != "" {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, configFile)
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags copies the changed flags of cmd into cfg. Flags a command
// does not define are never reported as changed.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	var err error

	set := func(name string, apply func() error) {
		if err != nil || !f.Changed(name) {
			return
		}
		err = apply()
	}

	// Storage
	set("backend", func() (e error) { cfg.Storage.Backend, e = f.GetString("backend"); return })
	set("data-dir", func() (e error) { cfg.Storage.Dir, e = f.GetString("data-dir"); return })

	// Filter
	set("keyword", func() (e error) { cfg.Keywords, e = f.GetStringSlice("keyword"); return })
	set("target-language", func() (e error) { cfg.TargetLanguage, e = f.GetString("target-language"); return })
	set("subtitle-language", func() (e error) { cfg.SubtitleLanguage, e = f.GetString("subtitle-language"); return })
	set("max-subtitle-languages", func() (e error) {
		cfg.MaxSubtitleLanguages, e = f.GetInt("max-subtitle-languages")
		return
	})

	// Crawl loop
	set("checkpoint-every", func() (e error) { cfg.CheckpointEvery, e = f.GetInt("checkpoint-every"); return })
	set("workers", func() (e error) { cfg.Workers, e = f.GetInt("workers"); return })
	set("max-cycles", func() (e error) { cfg.MaxCycles, e = f.GetInt("max-cycles"); return })
	set("max-attempts", func() (e error) { cfg.Retry.MaxAttempts, e = f.GetInt("max-attempts"); return })
	set("backoff", func() (e error) { cfg.Retry.Backoff, e = f.GetDuration("backoff"); return })

	// Seeds
	set("seed-dir", func() (e error) { cfg.Seed.Dir, e = f.GetString("seed-dir"); return })
	set("seed-prefix", func() (e error) { cfg.Seed.Prefix, e = f.GetString("seed-prefix"); return })

	// Fetch client
	set("base-url", func() (e error) { cfg.Fetch.BaseURL, e = f.GetString("base-url"); return })
	set("timeout", func() (e error) { cfg.Fetch.Timeout, e = f.GetDuration("timeout"); return })
	set("rate", func() (e error) { cfg.Fetch.RateLimit, e = f.GetDuration("rate"); return })
	set("proxy", func() (e error) { cfg.Fetch.Proxy, e = f.GetString("proxy"); return })
	set("embedded-tor", func() (e error) { cfg.Fetch.EmbeddedTor, e = f.GetBool("embedded-tor"); return })
	set("tor-timeout", func() (e error) { cfg.Fetch.TorStartupTimeout, e = f.GetDuration("tor-timeout"); return })
	set("user-agent", func() (e error) { cfg.Fetch.UserAgent, e = f.GetString("user-agent"); return })
	set("cookie", func() (e error) { cfg.Fetch.Cookie, e = f.GetString("cookie"); return })
	set("header", func() error {
		values, e := f.GetStringArray("header")
		if e != nil {
			return e
		}
		headers, e := parseHeaders(values)
		if e != nil {
			return e
		}
		cfg.Fetch = cfg.Fetch.Merge(config.FetchConfig{Headers: headers})
		return nil
	})

	// Report
	set("report-json", func() (e error) { cfg.JSONReport, e = f.GetBool("report-json"); return })
	set("report-markdown", func() (e error) { cfg.MarkdownReport, e = f.GetBool("report-markdown"); return })
	set("output", func() (e error) { cfg.ReportFile, e = f.GetString("output"); return })

	if err != nil {
		return err
	}

	if verbose := getBoolFlag(cmd, "verbose"); verbose {
		cfg.Verbose = true
	}
	if logJSON := getBoolFlag(cmd, "log-json"); logJSON {
		cfg.LogJSON = true
	}
	return nil
}

// parseHeaders parses "Name: value" pairs.
func parseHeaders(values []string) (map[string]string, error) {
	headers := make(map[string]string, len(values))
	for _, v := range values {
		name, value, ok := strings.Cut(v, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: %q", errInvalidHeader, v)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

// getBoolFlag retrieves a boolean flag from the command or its root.
func getBoolFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return v
}

// setupLogger creates the secure structured logger for cfg.
func setupLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	if cfg.LogJSON {
		return log.NewSecureJSONLogger(w, cfg.Verbose)
	}
	return log.NewSecureLogger(w, cfg.Verbose)
}

// openReportOutput returns the summary destination: the report file when
// one is configured, stdout otherwise. The returned close function is
// never nil.
func openReportOutput(cfg *config.Config, stdout io.Writer) (io.Writer, func() error, error) {
	if cfg.ReportFile == "" {
		return stdout, func() error { return nil }, nil
	}

	dir := filepath.Dir(cfg.ReportFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// The summary lists item keys, so it is readable by the owner only.
	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}
