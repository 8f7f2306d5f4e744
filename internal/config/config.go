package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/relcrawl/internal/fetch"
	"github.com/nao1215/relcrawl/internal/filter"
	"github.com/nao1215/relcrawl/internal/seed"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "relcrawl"

	// DefaultCheckpointEvery is the number of successful cycles between
	// durable writes. Each checkpoint rewrites both partitions, so a small
	// value trades write cost for a smaller loss window.
	DefaultCheckpointEvery = 10

	// DefaultMaxSubtitleLanguages is the subtitle track count at which an
	// item stops counting as content in the subtitle language.
	DefaultMaxSubtitleLanguages = 5

	// DefaultWorkers of 1 keeps requests strictly sequential, which is the
	// politest setting for a source that rate-limits aggressively.
	DefaultWorkers = 1

	// DefaultMaxAttempts of 1 drops a key after its first failure.
	DefaultMaxAttempts = 1

	// DefaultBackoff is the wait before the second attempt when retries are enabled.
	DefaultBackoff = 5 * time.Second

	// DefaultTimeout is the per-request timeout for the fetch client.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the minimum interval between two requests.
	DefaultRateLimit = 1 * time.Second

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultUserAgent identifies relcrawl in HTTP requests.
	DefaultUserAgent = "relcrawl/1.0 (+https://github.com/nao1215/relcrawl)"

	// BackendSQLite stores snapshots and run history in a SQLite database.
	BackendSQLite = "sqlite"

	// BackendFile stores snapshots as compressed JSON Lines files.
	BackendFile = "file"
)

// Config holds all configuration options for relcrawl.
// It is populated from NewConfig defaults, then the YAML file, then CLI flags.
//
// Design decision: Keys that belong to one collaborator (retry, fetch,
// storage, seed) are grouped in sub-structs so that the YAML file reads
// the same way as the dotted names used in documentation and errors.
type Config struct {
	// Keywords are matched case-insensitively against each item's description.
	Keywords []string `yaml:"keywords,omitempty"`

	// TargetLanguage is compared with the item's textLanguage field.
	// Empty disables the rule.
	TargetLanguage string `yaml:"targetLanguage,omitempty"`

	// SubtitleLanguage must appear among the item's subtitle languages.
	// Empty disables the rule.
	SubtitleLanguage string `yaml:"subtitleLanguage,omitempty"`

	// MaxSubtitleLanguages caps the subtitle rule. Zero or negative removes the cap.
	MaxSubtitleLanguages int `yaml:"maxSubtitleLanguages,omitempty"`

	// CheckpointEvery is the number of successful cycles between checkpoints.
	CheckpointEvery int `yaml:"checkpointEvery,omitempty"`

	// Workers is the number of keys fetched concurrently.
	Workers int `yaml:"workers,omitempty"`

	// MaxCycles stops the run after this many completed cycles. Zero means unlimited.
	MaxCycles int `yaml:"maxCycles,omitempty"`

	// Retry controls repeated attempts for a failed key.
	Retry RetryConfig `yaml:"retry,omitempty"`

	// Fetch configures the HTTP client used to reach the remote source.
	Fetch FetchConfig `yaml:"fetch,omitempty"`

	// Storage selects where checkpoints are written.
	Storage StorageConfig `yaml:"storage,omitempty"`

	// Seed locates the seed files merged into the related partition at startup.
	Seed SeedConfig `yaml:"seed,omitempty"`

	// Verbose enables detailed log output using slog.LevelDebug.
	Verbose bool `yaml:"verbose,omitempty"`

	// LogJSON switches the log output to JSON.
	LogJSON bool `yaml:"logJSON,omitempty"`

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .relcrawl in the current directory
	// and then in the user's home directory.
	ConfigFilePath string `yaml:"-"`

	// JSONReport enables JSON summary output. Mutually exclusive with MarkdownReport.
	JSONReport bool `yaml:"-"`

	// MarkdownReport enables Markdown summary output. Mutually exclusive with JSONReport.
	MarkdownReport bool `yaml:"-"`

	// ReportFile is the output file path for the summary.
	// When set, the summary is written to this file instead of stdout.
	ReportFile string `yaml:"-"`
}

// RetryConfig holds the retry policy settings.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts per key.
	MaxAttempts int `yaml:"maxAttempts,omitempty"`

	// Backoff is the wait before the second attempt; it doubles afterwards.
	Backoff time.Duration `yaml:"backoff,omitempty"`
}

// StorageConfig selects the checkpoint backend.
type StorageConfig struct {
	// Backend is BackendSQLite or BackendFile.
	Backend string `yaml:"backend,omitempty"`

	// Dir is the directory holding the database or snapshot files.
	// Defaults to the XDG data directory (~/.local/share/relcrawl on Linux).
	Dir string `yaml:"dir,omitempty"`
}

// SeedConfig locates seed files.
type SeedConfig struct {
	// Dir is the directory scanned for seed files. Empty means no seeds.
	Dir string `yaml:"dir,omitempty"`

	// Prefix is the file name prefix of seed files.
	Prefix string `yaml:"prefix,omitempty"`
}

// NewConfig creates a new Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (e.g., checkpointEvery,
// timeouts). This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		MaxSubtitleLanguages: DefaultMaxSubtitleLanguages,
		CheckpointEvery:      DefaultCheckpointEvery,
		Workers:              DefaultWorkers,
		Retry: RetryConfig{
			MaxAttempts: DefaultMaxAttempts,
			Backoff:     DefaultBackoff,
		},
		Fetch: FetchConfig{
			Timeout:           DefaultTimeout,
			RateLimit:         DefaultRateLimit,
			TorStartupTimeout: DefaultTorStartupTimeout,
			UserAgent:         DefaultUserAgent,
		},
		Storage: StorageConfig{
			Backend: BackendSQLite,
			Dir:     XDGDataDir(),
		},
		Seed: SeedConfig{
			Prefix: seed.DefaultPrefix,
		},
	}
}

// XDGDataDir returns the XDG data directory for relcrawl.
// On Linux: ~/.local/share/relcrawl
// On macOS: ~/Library/Application Support/relcrawl
// On Windows: %LOCALAPPDATA%\relcrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for relcrawl.
// On Linux: ~/.config/relcrawl
// On macOS: ~/Library/Application Support/relcrawl
// On Windows: %APPDATA%\relcrawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// FilterOptions returns the relevance filter settings.
func (c *Config) FilterOptions() filter.Options {
	return filter.Options{
		Keywords:             c.Keywords,
		TargetLanguage:       c.TargetLanguage,
		SubtitleLanguage:     c.SubtitleLanguage,
		MaxSubtitleLanguages: c.MaxSubtitleLanguages,
	}
}

// RetryPolicy returns the retry policy for the crawl loop.
func (c *Config) RetryPolicy() fetch.RetryPolicy {
	return fetch.RetryPolicy{
		MaxAttempts: c.Retry.MaxAttempts,
		Backoff:     c.Retry.Backoff,
	}
}

// HasFilterRule reports whether at least one relevance rule is enabled.
func (c *Config) HasFilterRule() bool {
	for _, k := range c.Keywords {
		if strings.TrimSpace(k) != "" {
			return true
		}
	}
	return c.TargetLanguage != "" || c.SubtitleLanguage != ""
}

// Validate checks that the configuration can drive a crawl.
// It returns the first sentinel error found.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// This is called once after flags are applied, before any fetching begins.
func (c *Config) Validate() error {
	if err := c.ValidateStorage(); err != nil {
		return err
	}

	if !c.HasFilterRule() {
		return ErrNoFilterRule
	}

	if c.CheckpointEvery <= 0 {
		return ErrInvalidCheckpointEvery
	}

	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}

	if c.MaxCycles < 0 {
		return ErrInvalidMaxCycles
	}

	if c.Retry.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}

	if c.Retry.Backoff < 0 {
		return ErrInvalidBackoff
	}

	if err := c.Fetch.validate(); err != nil {
		return err
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	return nil
}

// ValidateStorage checks only the storage settings. Commands that read a
// checkpoint without crawling use it instead of Validate.
func (c *Config) ValidateStorage() error {
	switch c.Storage.Backend {
	case BackendSQLite, BackendFile:
	default:
		return ErrUnknownBackend
	}

	if c.Storage.Dir == "" {
		return ErrNoStorageDir
	}

	return nil
}
