package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/idkny/sale-sofia/internal/core/domain"
)

func TestCircuitBreaker_ClosedByDefault(t *testing.T) {
	cb := NewCircuitBreaker(3, 50*time.Millisecond, 1, nil)
	assert.True(t, cb.CanRequest("site.bg"))
	assert.Equal(t, domain.CircuitClosed, cb.State("site.bg"))
}

func TestCircuitBreaker_OpensAfterFailMaxConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute, 1, nil)
	cb.RecordFailure("site.bg", domain.BlockUnknown)
	cb.RecordFailure("site.bg", domain.BlockUnknown)
	assert.Equal(t, domain.CircuitClosed, cb.State("site.bg"))

	cb.RecordFailure("site.bg", domain.BlockUnknown)
	assert.Equal(t, domain.CircuitOpen, cb.State("site.bg"))
	assert.False(t, cb.CanRequest("site.bg"))
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute, 1, nil)
	cb.RecordFailure("site.bg", domain.BlockUnknown)
	cb.RecordFailure("site.bg", domain.BlockUnknown)
	cb.RecordSuccess("site.bg")
	cb.RecordFailure("site.bg", domain.BlockUnknown)

	assert.Equal(t, domain.CircuitClosed, cb.State("site.bg"), "a success must reset the consecutive-failure streak")
}

func TestCircuitBreaker_TransitionsToHalfOpenAfterResetTimeout(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond, 1, nil)
	cb.RecordFailure("site.bg", domain.BlockUnknown)
	assert.Equal(t, domain.CircuitOpen, cb.State("site.bg"))

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, domain.CircuitHalfOpen, cb.State("site.bg"))
	assert.True(t, cb.CanRequest("site.bg"), "half-open state must admit at least one probe")
}

func TestCircuitBreaker_HalfOpenCapsConcurrentProbes(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond, 1, nil)
	cb.RecordFailure("site.bg", domain.BlockUnknown)
	time.Sleep(20 * time.Millisecond)

	assert.True(t, cb.CanRequest("site.bg"), "first half-open probe should be admitted")
	assert.False(t, cb.CanRequest("site.bg"), "a second concurrent probe must be rejected once halfOpenMax is reached")
}

func TestCircuitBreaker_HalfOpenFailureReopensImmediately(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond, 2, nil)
	cb.RecordFailure("site.bg", domain.BlockUnknown)
	time.Sleep(20 * time.Millisecond)
	require := assert.New(t)
	require.Equal(domain.CircuitHalfOpen, cb.State("site.bg"))

	cb.RecordFailure("site.bg", domain.BlockCloudflare)
	require.Equal(domain.CircuitOpen, cb.State("site.bg"))
	require.False(cb.CanRequest("site.bg"))
}
