package scrape

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/idkny/sale-sofia/internal/adapter/taskrunner"
	"github.com/idkny/sale-sofia/internal/chordutil"
	"github.com/idkny/sale-sofia/internal/core/constants"
	"github.com/idkny/sale-sofia/internal/core/domain"
	"github.com/idkny/sale-sofia/internal/core/ports"
)

// DispatchResult is what start_site_scrape returns to its caller.
type DispatchResult struct {
	JobID       string
	ChordID     string
	Site        string
	TotalChunks int
	TotalURLs   int
}

func siteJobKey(jobID, field string) string {
	return fmt.Sprintf("scraping:%s:%s", jobID, field)
}

// Dispatch is the chain's second stage (spec.md §4.5.2, mirroring §4.2.2):
// it reads the URL list Collect produced via the chain's carried-forward
// result, splits into fixed-size chunks, allocates a fresh job_id, writes
// initial job state to the broker and fans a chord of ScrapeChunk tasks
// out with AggregateSite as the callback.
func (p *Pipeline) Dispatch(ctx context.Context, site string, extractor ports.Extractor) (any, error) {
	urls, ok := taskrunner.ChainPrev(ctx).([]string)
	if !ok {
		return nil, fmt.Errorf("scrape: dispatch: no urls from collect stage")
	}

	chunks := chunkURLs(urls, p.cfg.ChunkSize)
	jobID := uuid.NewString()

	if err := p.writeJobState(ctx, jobID, site, len(chunks), len(urls)); err != nil {
		return nil, err
	}

	tasks := make([]ports.TaskFunc, len(chunks))
	for i, chunk := range chunks {
		chunk := chunk
		tasks[i] = func(ctx context.Context) (any, error) {
			return p.ScrapeChunk(ctx, jobID, site, chunk, extractor)
		}
	}

	limits := ports.TaskLimits{Soft: p.cfg.ChunkSoft, Hard: p.cfg.ChunkHard}
	handle, err := chordutil.RunChunked(ctx, p.runtime, "site_scrape:"+site, limits, tasks, func(ctx context.Context, results []ports.GroupResult) (any, error) {
		return p.AggregateSite(ctx, jobID, site, results)
	})
	if err != nil {
		return nil, fmt.Errorf("scrape: dispatch: %w", err)
	}

	p.logger.InfoJobStatus("scrape dispatched", jobID, domain.JobDispatched, "site", site, "total_chunks", len(chunks), "total_urls", len(urls))

	return DispatchResult{JobID: jobID, ChordID: handle.ID(), Site: site, TotalChunks: len(chunks), TotalURLs: len(urls)}, nil
}

func chunkURLs(urls []string, size int) [][]string {
	if size <= 0 {
		size = constants.ScrapeChunkSize
	}
	n := int(math.Ceil(float64(len(urls)) / float64(size)))
	chunks := make([][]string, 0, n)
	for i := 0; i < len(urls); i += size {
		end := i + size
		if end > len(urls) {
			end = len(urls)
		}
		chunks = append(chunks, urls[i:end])
	}
	return chunks
}

func (p *Pipeline) writeJobState(ctx context.Context, jobID, site string, totalChunks, totalURLs int) error {
	// completed_chunks lives as its own atomically-incremented broker key
	// (see ScrapeChunk's progress increment), not a field of this hash.
	fields := map[string]string{
		"status":       string(domain.JobDispatched),
		"site":         site,
		"total_chunks": fmt.Sprintf("%d", totalChunks),
		"total_urls":   fmt.Sprintf("%d", totalURLs),
		"started_at":   time.Now().UTC().Format(time.RFC3339),
	}
	for field, value := range fields {
		if err := p.broker.HSet(ctx, siteJobKey(jobID, "state"), field, []byte(value), constants.ScrapeJobTTL); err != nil {
			return fmt.Errorf("scrape: dispatch: write job state: %w", err)
		}
	}
	return nil
}
