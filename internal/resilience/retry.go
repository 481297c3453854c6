package resilience

import (
	"context"
	"time"

	"github.com/idkny/sale-sofia/internal/util"
)

// RetryPolicy retries fn up to maxAttempts times with exponential backoff
// and jitter, honouring a caller-supplied Retry-After override ahead of
// the computed backoff for that attempt.
type RetryPolicy struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64
}

// Attempt is one try's outcome, passed back to fn so it can report a
// server-supplied Retry-After to use instead of the computed backoff.
type Attempt struct {
	Err        error
	RetryAfter time.Duration
}

// Do runs fn until it succeeds (returns no error), retries are exhausted,
// or ctx is cancelled. fn's own error is returned unwrapped on final
// failure.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) Attempt) error {
	var last error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		result := fn(ctx, attempt)
		if result.Err == nil {
			return nil
		}
		last = result.Err

		if attempt == p.MaxAttempts {
			break
		}

		delay := result.RetryAfter
		if delay <= 0 {
			delay = util.CalculateExponentialBackoff(attempt, p.BaseDelay, p.MaxDelay, p.JitterFactor)
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return last
}
