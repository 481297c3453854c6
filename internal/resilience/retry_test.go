package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_SucceedsThenStops(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context, attempt int) Attempt {
		calls++
		if attempt == 2 {
			return Attempt{}
		}
		return Attempt{Err: errors.New("not yet")}
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls, "Do must stop immediately on the first successful attempt")
}

func TestRetryPolicy_ExhaustsAttemptsAndReturnsLastError(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	calls := 0
	wantErr := errors.New("attempt 3 failed")
	err := policy.Do(context.Background(), func(ctx context.Context, attempt int) Attempt {
		calls++
		if attempt == 3 {
			return Attempt{Err: wantErr}
		}
		return Attempt{Err: errors.New("earlier failure")}
	})

	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, wantErr)
}

func TestRetryPolicy_AbortsOnContextCancelDuringBackoffSleep(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 10, BaseDelay: 200 * time.Millisecond, MaxDelay: time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	calls := 0
	err := policy.Do(ctx, func(ctx context.Context, attempt int) Attempt {
		calls++
		return Attempt{Err: errors.New("keeps failing")}
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls, "ctx should expire during the first backoff sleep, before a second attempt runs")
}

func TestRetryPolicy_HonoursRetryAfterOverride(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 2, BaseDelay: time.Second, MaxDelay: time.Second}

	start := time.Now()
	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context, attempt int) Attempt {
		calls++
		if attempt == 1 {
			return Attempt{Err: errors.New("rate limited"), RetryAfter: 5 * time.Millisecond}
		}
		return Attempt{}
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Less(t, time.Since(start), 500*time.Millisecond, "RetryAfter override should be used instead of the 1s base backoff")
}
