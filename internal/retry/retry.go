// Package retry centralizes the engine's bounded retry loops. Call sites
// hold a named Policy instead of hand-rolled loops with inline backoff
// constants.
package retry

import (
	"context"
	"time"
)

// Policy describes one bounded retry loop: how many attempts, how long to
// wait between them, and which errors are worth retrying.
type Policy struct {
	Name        string
	MaxAttempts int
	// Backoff returns the delay after a failed attempt (1-based).
	Backoff func(attempt int) time.Duration
	// Retryable reports whether the error should be retried. Nil means
	// every error is retryable.
	Retryable func(err error) bool
}

// Linear returns a backoff growing by step per attempt: step, 2*step, ...
func Linear(step time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		return step * time.Duration(attempt)
	}
}

// Do runs op until it succeeds, attempts are exhausted, the error is not
// retryable, or the context is done. The last error is returned. The attempt
// number passed to op is 1-based.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context, attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = op(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}
		if p.Backoff != nil {
			delay := p.Backoff(attempt)
			if delay > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(delay):
				}
			}
		}
	}
	return lastErr
}
