// Package chordutil holds the one piece of control flow the refresh
// pipeline (internal/refresh) and the scraping dispatcher (internal/scrape)
// share: fan a group of chunk tasks out and run a single callback once
// every member has settled.
package chordutil

import (
	"context"

	"github.com/idkny/sale-sofia/internal/core/ports"
)

// RunChunked fans tasks out as a chord with callback and returns its
// handle without waiting: both pipelines dispatch a chord and return job
// metadata to their caller immediately, resolving completion later
// through their own wait routine (refresh.WaitForRefresh, scrape's
// equivalent), not by blocking inside Dispatch.
func RunChunked(ctx context.Context, runtime ports.TaskRuntime, queue string, limits ports.TaskLimits, tasks []ports.TaskFunc, callback func(ctx context.Context, results []ports.GroupResult) (any, error)) (ports.ChordHandle, error) {
	return runtime.Chord(ctx, queue, limits, tasks, callback)
}
