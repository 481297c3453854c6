package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_AcquireConsumesTokensThenBlocksNonBlocking(t *testing.T) {
	rl := NewRateLimiter(60, nil) // 1 token/sec refill, bucket starts full at 60
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		assert.True(t, rl.Acquire(ctx, "site.bg", false), "token %d should be available from the initial full bucket", i)
	}
	assert.False(t, rl.Acquire(ctx, "site.bg", false), "bucket should be exhausted after draining the initial capacity")
}

func TestRateLimiter_PerSiteOverrideAppliesIndependently(t *testing.T) {
	rl := NewRateLimiter(60, map[string]int{"slow.bg": 1})
	ctx := context.Background()

	assert.True(t, rl.Acquire(ctx, "slow.bg", false))
	assert.False(t, rl.Acquire(ctx, "slow.bg", false), "slow.bg has a 1/min override and should exhaust after one token")
	assert.True(t, rl.Acquire(ctx, "fast.bg", false), "a different site must use the default rate, unaffected by slow.bg's override")
}

func TestRateLimiter_RefillsOverTime(t *testing.T) {
	rl := NewRateLimiter(600, nil) // 10 tokens/sec
	ctx := context.Background()

	for i := 0; i < 600; i++ {
		require := rl.Acquire(ctx, "site.bg", false)
		assert.True(t, require)
	}
	assert.False(t, rl.Acquire(ctx, "site.bg", false))

	time.Sleep(150 * time.Millisecond)
	assert.True(t, rl.Acquire(ctx, "site.bg", false), "bucket should have refilled at least one token after ~150ms at 10/sec")
}

func TestRateLimiter_BlockingAcquireWaitsForRefill(t *testing.T) {
	rl := NewRateLimiter(600, nil) // 10 tokens/sec
	ctx := context.Background()
	for i := 0; i < 600; i++ {
		rl.Acquire(ctx, "site.bg", false)
	}

	start := time.Now()
	ok := rl.Acquire(ctx, "site.bg", true)
	assert.True(t, ok)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRateLimiter_BlockingAcquireAbortsOnContextCancel(t *testing.T) {
	rl := NewRateLimiter(1, nil)
	ctx := context.Background()
	rl.Acquire(ctx, "site.bg", false) // drain the single token

	cancelCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	ok := rl.Acquire(cancelCtx, "site.bg", true)
	assert.False(t, ok, "blocking Acquire must give up once ctx is done instead of waiting forever")
}
