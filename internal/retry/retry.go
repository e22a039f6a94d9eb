// Package retry drives bounded retry of broker-facing operations. The loop is
// an explicit attempt counter rather than nested control flow so the bounded
// contract stays auditable: at most MaxAttempts attempts, a fixed backoff
// between them, and a refresh hook before each resubmission.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy is the retry budget. Both values come from configuration.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultPolicy matches the documented defaults: 3 attempts, 500ms apart.
var DefaultPolicy = Policy{MaxAttempts: 3, Backoff: 500 * time.Millisecond}

// Result reports how an operation concluded.
type Result struct {
	Attempts int
	Err      error // nil on success
}

// Do runs attempt up to policy.MaxAttempts times. After a failure that
// recoverable reports true, it sleeps the backoff, calls refresh (stale
// prices are a primary rejection cause, so callers re-fetch bid/ask there)
// and tries again. A failure classified unrecoverable, a refresh error, or
// context cancellation stops the loop immediately.
func Do(
	ctx context.Context,
	policy Policy,
	recoverable func(error) bool,
	refresh func(context.Context) error,
	attempt func(context.Context) error,
) Result {
	attempts := 0
	var lastErr error
	for attempts < policy.MaxAttempts {
		if err := ctx.Err(); err != nil {
			return Result{Attempts: attempts, Err: err}
		}
		attempts++
		lastErr = attempt(ctx)
		if lastErr == nil {
			return Result{Attempts: attempts}
		}
		if !recoverable(lastErr) || attempts >= policy.MaxAttempts {
			break
		}
		select {
		case <-time.After(policy.Backoff):
		case <-ctx.Done():
			return Result{Attempts: attempts, Err: ctx.Err()}
		}
		if refresh != nil {
			if err := refresh(ctx); err != nil {
				return Result{
					Attempts: attempts,
					Err:      fmt.Errorf("refresh before retry: %w", err),
				}
			}
		}
	}
	return Result{Attempts: attempts, Err: lastErr}
}
