package taskrunner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idkny/sale-sofia/internal/core/ports"
)

func TestSubmit_WaitReturnsValue(t *testing.T) {
	r := New(4, nil)
	h, err := r.Submit(context.Background(), "q", ports.TaskLimits{}, func(ctx context.Context) (any, error) {
		return 42, nil
	})
	require.NoError(t, err)

	value, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, value)
}

func TestSubmit_HardLimitCancelsTaskCtx(t *testing.T) {
	r := New(4, nil)
	h, err := r.Submit(context.Background(), "q", ports.TaskLimits{Hard: 10 * time.Millisecond}, func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	require.NoError(t, err)

	_, err = h.Wait(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestChain_PassesPrevResultAndShortCircuits(t *testing.T) {
	r := New(4, nil)

	result, err := r.Chain(context.Background(), "q", ports.TaskLimits{},
		func(ctx context.Context) (any, error) { return 1, nil },
		func(ctx context.Context) (any, error) { return ChainPrev(ctx).(int) + 1, nil },
	)
	require.NoError(t, err)
	assert.Equal(t, 2, result)

	var ranThird atomic.Bool
	_, err = r.Chain(context.Background(), "q", ports.TaskLimits{},
		func(ctx context.Context) (any, error) { return nil, errors.New("stage failed") },
		func(ctx context.Context) (any, error) { ranThird.Store(true); return nil, nil },
	)
	assert.Error(t, err)
	assert.False(t, ranThird.Load())
}

func TestGroup_CollectsEveryMemberResult(t *testing.T) {
	r := New(4, nil)
	results := r.Group(context.Background(), "q", ports.TaskLimits{},
		func(ctx context.Context) (any, error) { return 1, nil },
		func(ctx context.Context) (any, error) { return nil, errors.New("boom") },
		func(ctx context.Context) (any, error) { return 3, nil },
	)

	require.Len(t, results, 3)
	assert.Equal(t, 1, results[0].Value)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.Equal(t, 3, results[2].Value)
}

// TestChord_RoundTrip submits a chord and verifies the callback sees every
// member's outcome exactly once, with the aggregated value surfaced through
// the returned handle.
func TestChord_RoundTrip(t *testing.T) {
	r := New(4, nil)

	fns := []ports.TaskFunc{
		func(ctx context.Context) (any, error) { return 1, nil },
		func(ctx context.Context) (any, error) { return 2, nil },
		func(ctx context.Context) (any, error) { return 3, nil },
	}
	callback := func(ctx context.Context, results []ports.GroupResult) (any, error) {
		sum := 0
		for _, res := range results {
			if res.Err != nil {
				return nil, res.Err
			}
			sum += res.Value.(int)
		}
		return sum, nil
	}

	handle, err := r.Chord(context.Background(), "q", ports.TaskLimits{}, fns, callback)
	require.NoError(t, err)
	assert.NotEmpty(t, handle.ID())

	value, err := handle.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, value)

	select {
	case <-handle.Done():
	case <-time.After(time.Second):
		t.Fatal("chord handle never reported done")
	}
}

// TestChord_OutlivesDispatchingStageCancellation is the regression test for
// the fire-and-forget bug: a chord launched from inside a Submit-run task
// must keep running to completion even though Submit cancels that task's own
// context the instant the dispatching function returns.
func TestChord_OutlivesDispatchingStageCancellation(t *testing.T) {
	r := New(4, nil)

	var callbackCtxErr error
	var sum int
	done := make(chan struct{})

	dispatch := func(ctx context.Context) (any, error) {
		fns := []ports.TaskFunc{
			func(ctx context.Context) (any, error) {
				time.Sleep(30 * time.Millisecond)
				return 1, ctx.Err()
			},
			func(ctx context.Context) (any, error) {
				time.Sleep(30 * time.Millisecond)
				return 2, ctx.Err()
			},
		}
		_, err := r.Chord(ctx, "q", ports.TaskLimits{}, fns, func(cbCtx context.Context, results []ports.GroupResult) (any, error) {
			defer close(done)
			callbackCtxErr = cbCtx.Err()
			for _, res := range results {
				if res.Err != nil {
					return nil, res.Err
				}
				sum += res.Value.(int)
			}
			return sum, nil
		})
		// Dispatch returns immediately after fanning the chord out, exactly
		// as internal/refresh and internal/scrape's Dispatch functions do.
		return nil, err
	}

	// limits.Hard>0 makes Submit cancel taskCtx the instant dispatch returns,
	// which is the exact condition that used to cancel the chord mid-flight.
	h, err := r.Submit(context.Background(), "q", ports.TaskLimits{Hard: 5 * time.Millisecond}, dispatch)
	require.NoError(t, err)
	_, err = h.Wait(context.Background())
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("chord callback never ran; it was cancelled along with the dispatching stage")
	}

	assert.NoError(t, callbackCtxErr, "chord callback context must not be cancelled by the dispatching stage's own deadline")
	assert.Equal(t, 3, sum, "chord tasks must complete successfully instead of failing with context canceled")
}
