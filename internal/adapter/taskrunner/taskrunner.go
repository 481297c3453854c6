// Package taskrunner implements ports.TaskRuntime in-process: a
// semaphore-bounded worker pool offering the Submit/Chain/Group/Chord
// composition primitives spec.md §2 asks of the external task queue,
// grounded on the same worker-pool shape the pkg/eventbus worker pool
// uses (bounded goroutines draining a channel under a context).
package taskrunner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/idkny/sale-sofia/internal/core/ports"
	"github.com/idkny/sale-sofia/internal/logger"
)

type chainPrevKey struct{}

// Runtime is an in-process ports.TaskRuntime.
type Runtime struct {
	sem    *semaphore.Weighted
	logger *logger.StyledLogger
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
}

// New creates a Runtime that runs at most concurrency tasks at once.
func New(concurrency int, log *logger.StyledLogger) *Runtime {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Runtime{
		sem:    semaphore.NewWeighted(int64(concurrency)),
		logger: log,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = true
	return nil
}

// Stop waits for in-flight tasks to drain, bounded by ctx.
func (r *Runtime) Stop(ctx context.Context) error {
	r.mu.Lock()
	r.started = false
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("taskrunner: stop timed out waiting for %w", ctx.Err())
	}
}

// PingControlPlane reports liveness; the in-process runtime is always up
// once started.
func (r *Runtime) PingControlPlane(ctx context.Context) error {
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if !started {
		return fmt.Errorf("taskrunner: not started")
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

type taskResult struct {
	value any
	err   error
}

type handle struct {
	id     string
	result chan taskResult
}

func (h *handle) ID() string { return h.id }

func (h *handle) Wait(ctx context.Context) (any, error) {
	select {
	case r, ok := <-h.result:
		if !ok {
			return nil, fmt.Errorf("taskrunner: task %s result channel closed without value", h.id)
		}
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Submit runs fn on a pool worker, bounded by limits.Hard and warning on
// limits.Soft, and returns a handle the caller waits on.
func (r *Runtime) Submit(ctx context.Context, queue string, limits ports.TaskLimits, fn ports.TaskFunc) (ports.TaskHandle, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("taskrunner: acquire slot for queue %s: %w", queue, err)
	}

	h := &handle{id: uuid.NewString(), result: make(chan taskResult, 1)}
	r.wg.Add(1)

	go func() {
		defer r.sem.Release(1)
		defer r.wg.Done()
		defer close(h.result)

		taskCtx := ctx
		var cancel context.CancelFunc
		if limits.Hard > 0 {
			taskCtx, cancel = context.WithTimeout(ctx, limits.Hard)
			defer cancel()
		}

		var softTimer *time.Timer
		if limits.Soft > 0 {
			softTimer = time.AfterFunc(limits.Soft, func() {
				r.logger.Warn("task exceeded soft limit", "queue", queue, "task_id", h.id, "soft_limit", limits.Soft)
			})
		}

		value, err := fn(taskCtx)
		if softTimer != nil {
			softTimer.Stop()
		}

		h.result <- taskResult{value: value, err: err}
	}()

	return h, nil
}

// Chain runs fns sequentially, short-circuiting on the first error and
// passing each stage's result to the next via context value chainPrevKey.
func (r *Runtime) Chain(ctx context.Context, queue string, limits ports.TaskLimits, fns ...ports.TaskFunc) (any, error) {
	var prev any
	for i, fn := range fns {
		stageCtx := context.WithValue(ctx, chainPrevKey{}, prev)
		h, err := r.Submit(stageCtx, queue, limits, fn)
		if err != nil {
			return nil, fmt.Errorf("chain stage %d: %w", i, err)
		}
		value, err := h.Wait(ctx)
		if err != nil {
			return nil, fmt.Errorf("chain stage %d: %w", i, err)
		}
		prev = value
	}
	return prev, nil
}

// ChainPrev extracts the previous stage's result inside a Chain task.
func ChainPrev(ctx context.Context) any {
	return ctx.Value(chainPrevKey{})
}

// Group runs fns concurrently and returns every member's outcome once all
// have settled.
func (r *Runtime) Group(ctx context.Context, queue string, limits ports.TaskLimits, fns ...ports.TaskFunc) []ports.GroupResult {
	handles := make([]ports.TaskHandle, len(fns))
	submitErrs := make([]error, len(fns))

	for i, fn := range fns {
		h, err := r.Submit(ctx, queue, limits, fn)
		handles[i] = h
		submitErrs[i] = err
	}

	results := make([]ports.GroupResult, len(fns))
	for i, h := range handles {
		if submitErrs[i] != nil {
			results[i] = ports.GroupResult{Err: submitErrs[i]}
			continue
		}
		value, err := h.Wait(ctx)
		results[i] = ports.GroupResult{Value: value, Err: err}
	}
	return results
}

type chordHandle struct {
	id     string
	result chan taskResult
	done   chan struct{}
}

func (c *chordHandle) ID() string          { return c.id }
func (c *chordHandle) Done() <-chan struct{} { return c.done }

func (c *chordHandle) Wait(ctx context.Context) (any, error) {
	select {
	case r, ok := <-c.result:
		if !ok {
			return nil, fmt.Errorf("taskrunner: chord %s result channel closed without value", c.id)
		}
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Chord runs a Group to completion and invokes callback exactly once with
// the aggregated results, surfacing the callback's own outcome through the
// returned ChordHandle. The chord is handed off to run in the background
// (spec.md §4.2.3/§4.5.3's "fan out and return immediately" shape), so it
// must not inherit the dispatching stage's own context: Submit cancels a
// task's context the instant its function returns, and a chord is always
// spawned from inside such a function. bgCtx strips that cancellation
// (keeping any carried values) so the chord outlives its caller.
func (r *Runtime) Chord(ctx context.Context, queue string, limits ports.TaskLimits, fns []ports.TaskFunc, callback func(ctx context.Context, results []ports.GroupResult) (any, error)) (ports.ChordHandle, error) {
	ch := &chordHandle{id: uuid.NewString(), result: make(chan taskResult, 1), done: make(chan struct{})}
	bgCtx := context.WithoutCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(ch.result)
		defer close(ch.done)

		results := r.Group(bgCtx, queue, limits, fns...)
		value, err := callback(bgCtx, results)
		ch.result <- taskResult{value: value, err: err}
	}()

	return ch, nil
}

var _ ports.TaskRuntime = (*Runtime)(nil)
