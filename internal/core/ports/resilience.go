package ports

import (
	"context"

	"github.com/idkny/sale-sofia/internal/core/domain"
)

// CircuitBreaker is the per-domain breaker contract (spec.md §4.4.1). The
// string parameter is the site domain (e.g. "imot.bg"), not a Go package.
type CircuitBreaker interface {
	CanRequest(site string) bool
	RecordSuccess(site string)
	RecordFailure(site string, kind domain.BlockKind)
	State(site string) domain.CircuitStateName
}

// RateLimiter is the per-domain token-bucket contract (spec.md §4.4.2).
type RateLimiter interface {
	// Acquire blocks until a token is available when blocking is true,
	// otherwise returns immediately false if none is available. The
	// blocking case returns false only when ctx is done before a token
	// frees up.
	Acquire(ctx context.Context, site string, blocking bool) bool
}
