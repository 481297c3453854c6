package resilience

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	refillPerSec float64
	lastRefill   time.Time
}

func newBucket(ratePerMinute int) *bucket {
	rate := float64(ratePerMinute) / 60.0
	return &bucket{
		tokens:       float64(ratePerMinute),
		capacity:     float64(ratePerMinute),
		refillPerSec: rate,
		lastRefill:   time.Now(),
	}
}

func (b *bucket) refill() {
	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.lastRefill = now
	b.tokens += elapsed * b.refillPerSec
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
}

func (b *bucket) tryTake() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// RateLimiter is a per-domain token-bucket limiter: each site gets its
// own bucket sized and refilled at its configured requests-per-minute,
// lazily created on first use and defaulting to defaultRate.
type RateLimiter struct {
	mu          sync.Mutex
	buckets     map[string]*bucket
	defaultRate int
	siteRates   map[string]int
}

func NewRateLimiter(defaultRatePerMinute int, siteRates map[string]int) *RateLimiter {
	return &RateLimiter{
		buckets:     make(map[string]*bucket),
		defaultRate: defaultRatePerMinute,
		siteRates:   siteRates,
	}
}

func (rl *RateLimiter) bucketFor(site string) *bucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	b, ok := rl.buckets[site]
	if !ok {
		rate := rl.defaultRate
		if r, ok := rl.siteRates[site]; ok {
			rate = r
		}
		b = newBucket(rate)
		rl.buckets[site] = b
	}
	return b
}

// Acquire reports whether a token for site is available. When blocking is
// true it polls until a token frees up or ctx is done, returning false
// only if ctx expired first.
func (rl *RateLimiter) Acquire(ctx context.Context, site string, blocking bool) bool {
	b := rl.bucketFor(site)

	if b.tryTake() {
		return true
	}
	if !blocking {
		return false
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if b.tryTake() {
				return true
			}
		}
	}
}
