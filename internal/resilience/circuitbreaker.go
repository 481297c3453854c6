// Package resilience implements the per-domain circuit breaker, token
// bucket rate limiter, retry/backoff policy, error classifier,
// soft-block detector and checkpoint writer described in spec.md §4.4.
//
// The breaker is grounded on the teacher's internal/adapter/health
// circuit breaker: an atomic per-key state machine stored in a sync.Map,
// generalised from a two-state (open/closed) breaker to the three-state
// CLOSED/OPEN/HALF_OPEN machine the spec calls for, with a bounded number
// of concurrent half-open probes instead of a single one.
package resilience

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/idkny/sale-sofia/internal/core/domain"
	"github.com/idkny/sale-sofia/internal/logger"
)

type breakerState struct {
	consecutiveFailures atomic.Int64
	openedAt            atomic.Int64 // unix nano, 0 = not open
	halfOpenProbes      atomic.Int64
	lastBlockKind       atomic.Value // domain.BlockKind
}

func newBreakerState() *breakerState {
	s := &breakerState{}
	s.lastBlockKind.Store(domain.BlockUnknown)
	return s
}

// CircuitBreaker is a per-domain three-state breaker: CLOSED while
// requests flow, OPEN once consecutive failures reach failMax (requests
// are rejected), and HALF_OPEN after resetTimeout elapses, letting
// up to halfOpenMax probes through before deciding whether to close or
// re-open.
type CircuitBreaker struct {
	sites sync.Map // string -> *breakerState

	failMax      int
	resetTimeout time.Duration
	halfOpenMax  int

	logger *logger.StyledLogger
}

func NewCircuitBreaker(failMax int, resetTimeout time.Duration, halfOpenMax int, log *logger.StyledLogger) *CircuitBreaker {
	return &CircuitBreaker{
		failMax:      failMax,
		resetTimeout: resetTimeout,
		halfOpenMax:  halfOpenMax,
		logger:       log,
	}
}

func (cb *CircuitBreaker) stateFor(site string) *breakerState {
	actual, _ := cb.sites.LoadOrStore(site, newBreakerState())
	return actual.(*breakerState)
}

// CanRequest reports whether a request to site may proceed.
func (cb *CircuitBreaker) CanRequest(site string) bool {
	state, ok := cb.sites.Load(site)
	if !ok {
		return true
	}
	s := state.(*breakerState)

	openedAt := s.openedAt.Load()
	if openedAt == 0 {
		return true
	}

	if time.Unix(0, openedAt).Add(cb.resetTimeout).After(time.Now()) {
		return false // still OPEN
	}

	// Past the reset timeout: HALF_OPEN, admit up to halfOpenMax probes.
	probes := s.halfOpenProbes.Add(1)
	if probes <= int64(cb.halfOpenMax) {
		return true
	}
	s.halfOpenProbes.Add(-1)
	return false
}

// RecordSuccess resets the breaker to CLOSED.
func (cb *CircuitBreaker) RecordSuccess(site string) {
	s := cb.stateFor(site)
	s.consecutiveFailures.Store(0)
	s.openedAt.Store(0)
	s.halfOpenProbes.Store(0)
}

// RecordFailure increments the failure count and opens the breaker once
// failMax is reached, or immediately re-opens a HALF_OPEN breaker that
// just failed its probe.
func (cb *CircuitBreaker) RecordFailure(site string, kind domain.BlockKind) {
	s := cb.stateFor(site)
	s.lastBlockKind.Store(kind)

	if s.openedAt.Load() != 0 {
		// A half-open probe failed: re-open immediately.
		s.openedAt.Store(time.Now().UnixNano())
		s.halfOpenProbes.Store(0)
		return
	}

	failures := s.consecutiveFailures.Add(1)
	if failures >= int64(cb.failMax) {
		s.openedAt.Store(time.Now().UnixNano())
		if cb.logger != nil {
			cb.logger.WarnWithProxy("circuit breaker opened", site, "consecutive_failures", failures, "block_kind", kind.String())
		}
	}
}

// State reports the breaker's current state for site.
func (cb *CircuitBreaker) State(site string) domain.CircuitStateName {
	state, ok := cb.sites.Load(site)
	if !ok {
		return domain.CircuitClosed
	}
	s := state.(*breakerState)

	openedAt := s.openedAt.Load()
	if openedAt == 0 {
		return domain.CircuitClosed
	}
	if time.Unix(0, openedAt).Add(cb.resetTimeout).After(time.Now()) {
		return domain.CircuitOpen
	}
	return domain.CircuitHalfOpen
}
