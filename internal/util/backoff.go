package util

import (
	"math"
	"math/rand"
	"time"
)

// CalculateExponentialBackoff computes exponential backoff with optional
// jitter. Formula: baseDelay * 2^(attempt-1), capped at maxDelay, plus a
// uniform jitter in [0, delay*jitterFactor).
func CalculateExponentialBackoff(attempt int, baseDelay, maxDelay time.Duration, jitterFactor float64) time.Duration {
	if attempt <= 0 {
		return 0
	}

	backoff := float64(baseDelay) * math.Pow(2, float64(attempt-1))
	if backoff > float64(maxDelay) {
		backoff = float64(maxDelay)
	}

	if jitterFactor > 0 {
		backoff += backoff * jitterFactor * rand.Float64()
	}

	return time.Duration(backoff)
}
