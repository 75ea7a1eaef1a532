package genai

import (
	"context"
	"time"
)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

type retryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	sleep      Sleeper
}

func newRetryPolicy(maxRetries int, baseDelay time.Duration, sleep Sleeper) retryPolicy {
	switch {
	case maxRetries == 0:
		maxRetries = defaultMaxRetries
	case maxRetries < 0:
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}
	if sleep == nil {
		sleep = sleepContext
	}
	return retryPolicy{maxRetries: maxRetries, baseDelay: baseDelay, sleep: sleep}
}

// delay returns the wait before retry number attempt (zero based):
// base, 2*base, 4*base, ...
func (p retryPolicy) delay(attempt int) time.Duration {
	return p.baseDelay << uint(attempt)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
