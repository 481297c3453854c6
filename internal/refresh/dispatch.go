package refresh

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/idkny/sale-sofia/internal/adapter/taskrunner"
	"github.com/idkny/sale-sofia/internal/chordutil"
	"github.com/idkny/sale-sofia/internal/core/constants"
	"github.com/idkny/sale-sofia/internal/core/domain"
	"github.com/idkny/sale-sofia/internal/core/ports"
)

// DispatchResult is what trigger_refresh returns to its caller.
type DispatchResult struct {
	JobID       string
	ChordID     string
	TotalChunks int
}

func jobKey(jobID, field string) string {
	return fmt.Sprintf("proxy_refresh:%s:%s", jobID, field)
}

// Dispatch is the chain's second stage (spec.md §4.2.2): it reads the
// candidates file Scrape produced via the chain's carried-forward result,
// splits into fixed-size chunks, allocates a fresh job_id, writes initial
// job state to the broker and fans a chord of CheckChunk tasks out with
// Aggregate as the callback.
func (p *Pipeline) Dispatch(ctx context.Context) (any, error) {
	candidatesPath, ok := taskrunner.ChainPrev(ctx).(string)
	if !ok {
		return nil, fmt.Errorf("refresh: dispatch: no candidates path from scrape stage")
	}

	raw, err := os.ReadFile(candidatesPath)
	if err != nil {
		return nil, fmt.Errorf("refresh: dispatch: read candidates: %w", err)
	}
	var candidates []domain.Proxy
	if err := json.Unmarshal(raw, &candidates); err != nil {
		return nil, fmt.Errorf("refresh: dispatch: decode candidates: %w", err)
	}

	chunks := chunkProxies(candidates, p.chunkSize)
	jobID := uuid.NewString()

	if err := p.writeJobState(ctx, jobID, len(chunks)); err != nil {
		return nil, err
	}

	tasks := make([]ports.TaskFunc, len(chunks))
	for i, chunk := range chunks {
		chunk := chunk
		tasks[i] = func(ctx context.Context) (any, error) {
			return p.CheckChunk(ctx, jobID, chunk)
		}
	}

	limits := ports.TaskLimits{Soft: p.checkSoft, Hard: p.checkHard}
	handle, err := chordutil.RunChunked(ctx, p.runtime, "proxy_refresh", limits, tasks, func(ctx context.Context, results []ports.GroupResult) (any, error) {
		return p.Aggregate(ctx, jobID, results)
	})
	if err != nil {
		return nil, fmt.Errorf("refresh: dispatch: %w", err)
	}

	p.logger.InfoJobStatus("refresh dispatched", jobID, domain.JobDispatched, "total_chunks", len(chunks))

	return DispatchResult{JobID: jobID, ChordID: handle.ID(), TotalChunks: len(chunks)}, nil
}

func chunkProxies(candidates []domain.Proxy, size int) [][]domain.Proxy {
	if size <= 0 {
		size = constants.RefreshChunkSize
	}
	n := int(math.Ceil(float64(len(candidates)) / float64(size)))
	chunks := make([][]domain.Proxy, 0, n)
	for i := 0; i < len(candidates); i += size {
		end := i + size
		if end > len(candidates) {
			end = len(candidates)
		}
		chunks = append(chunks, candidates[i:end])
	}
	return chunks
}

func (p *Pipeline) writeJobState(ctx context.Context, jobID string, totalChunks int) error {
	// completed_chunks lives as its own atomically-incremented broker key
	// (see finishChunk), not a field of this hash.
	fields := map[string]string{
		"status":       string(domain.JobDispatched),
		"total_chunks": fmt.Sprintf("%d", totalChunks),
		"started_at":   time.Now().UTC().Format(time.RFC3339),
	}
	for field, value := range fields {
		if err := p.broker.HSet(ctx, jobKey(jobID, "state"), field, []byte(value), constants.RefreshJobTTL); err != nil {
			return fmt.Errorf("refresh: dispatch: write job state: %w", err)
		}
	}
	return nil
}
