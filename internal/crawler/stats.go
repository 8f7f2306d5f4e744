package crawler

import "time"

// Stats are the loop's counters.
type Stats struct {
	State State

	// Successes and Failures count finished cycles.
	Successes int
	Failures  int

	// Retries counts extra attempts across all keys.
	Retries int

	// RelatedMerged counts related items committed to the store.
	RelatedMerged int

	// Filtered counts related items rejected by the relevance filter.
	Filtered int

	// Skipped counts related items that were already primary, had no id, or
	// pointed back at the item being fetched.
	Skipped int

	// Evicted counts related items removed because they became primary.
	Evicted int

	// Dropped is the size of the dropped key set.
	Dropped int

	Checkpoints        int
	CheckpointFailures int

	// Sizes at the last rebuild.
	Primary  int
	Related  int
	Frontier int

	LastError      string
	LastCheckpoint time.Time
	StartedAt      time.Time
	FinishedAt     time.Time
}

// Cycles returns the number of finished cycles.
func (s Stats) Cycles() int {
	return s.Successes + s.Failures
}

// Duration returns the run time, or zero before the run finished.
func (s Stats) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
