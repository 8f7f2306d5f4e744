package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrNoFilterRule is returned when no relevance rule is enabled.
	// Without a rule every related item fails the filter and the crawl
	// would drain immediately after merging the seeds.
	ErrNoFilterRule = errors.New("no relevance rule: set keywords, targetLanguage or subtitleLanguage")

	// ErrInvalidCheckpointEvery is returned when checkpointEvery is not positive.
	ErrInvalidCheckpointEvery = errors.New("invalid checkpointEvery: must be positive")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid workers: must be positive")

	// ErrInvalidMaxAttempts is returned when retry.maxAttempts is below 1.
	ErrInvalidMaxAttempts = errors.New("invalid retry.maxAttempts: must be at least 1")

	// ErrInvalidBackoff is returned when retry.backoff is negative.
	ErrInvalidBackoff = errors.New("invalid retry.backoff: must be non-negative")

	// ErrInvalidMaxCycles is returned when maxCycles is negative.
	// Zero means unlimited.
	ErrInvalidMaxCycles = errors.New("invalid maxCycles: must be non-negative")

	// ErrNoBaseURL is returned when fetch.baseURL is empty.
	ErrNoBaseURL = errors.New("no fetch.baseURL specified")

	// ErrInvalidTimeout is returned when fetch.timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid fetch.timeout: must be positive")

	// ErrInvalidRateLimit is returned when fetch.rateLimit is negative.
	// Zero disables the limiter.
	ErrInvalidRateLimit = errors.New("invalid fetch.rateLimit: must be non-negative")

	// ErrConflictingProxy is returned when both an external proxy and the
	// embedded Tor daemon are requested.
	ErrConflictingProxy = errors.New("conflicting proxy settings: fetch.proxy and fetch.embeddedTor cannot be used together")

	// ErrUnknownBackend is returned when storage.backend is neither sqlite nor file.
	ErrUnknownBackend = errors.New("unknown storage.backend: must be sqlite or file")

	// ErrNoStorageDir is returned when storage.dir is empty.
	ErrNoStorageDir = errors.New("no storage.dir specified")

	// ErrConflictingReportFormats is returned when both --report-json and
	// --report-markdown are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --report-json and --report-markdown cannot be used together")
)
