package fetch

import (
	"context"
	"time"
)

// RetryPolicy controls repeated attempts for one popped key.
//
// The default makes a single attempt: a failed key is dropped, which avoids
// hammering a rate-limiting source. An attempt is only repeated when nothing
// from it has been committed to the store; once a related item has been
// merged the stream cannot be resumed, so the failure is final.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts. Values below 1 mean 1.
	MaxAttempts int

	// Backoff is the wait before the second attempt. It doubles for each
	// further attempt.
	Backoff time.Duration
}

// NoRetry is the default policy.
var NoRetry = RetryPolicy{MaxAttempts: 1}

// Attempts returns the effective number of attempts.
func (p RetryPolicy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Delay returns the wait before attempt n (1-based). The first attempt has
// no delay.
func (p RetryPolicy) Delay(n int) time.Duration {
	if n <= 1 || p.Backoff <= 0 {
		return 0
	}
	d := p.Backoff
	for i := 2; i < n; i++ {
		d *= 2
	}
	return d
}

// Wait sleeps for the delay before attempt n or until ctx is done.
func (p RetryPolicy) Wait(ctx context.Context, n int) error {
	d := p.Delay(n)
	if d == 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
