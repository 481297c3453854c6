package refresh

import (
	"context"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/idkny/sale-sofia/internal/core/constants"
	"github.com/idkny/sale-sofia/internal/core/domain"
	"github.com/idkny/sale-sofia/internal/core/ports"
)

// waitBuffer is the safety margin applied on top of the computed
// rounds * time_per_chunk estimate before falling back to broker polling.
const waitBuffer = 1.5

// WaitForRefresh implements the three-stage progress-wait fallback of
// spec.md §4.2.5: it prefers the chord's own completion signal, falls
// back to broker polling of job state every RefreshPollInterval, and
// finally falls back to watching the published file's modification time.
// It returns true iff the job reached COMPLETE and the published pool
// holds at least minCount entries.
func (p *Pipeline) WaitForRefresh(ctx context.Context, jobID string, chord ports.ChordHandle, totalChunks, workerConcurrency, minCount int, timePerChunk time.Duration) (bool, error) {
	if workerConcurrency <= 0 {
		workerConcurrency = 1
	}
	rounds := math.Ceil(float64(totalChunks) / float64(workerConcurrency))
	timeout := time.Duration(rounds * waitBuffer * float64(timePerChunk))

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if chord != nil {
		select {
		case <-chord.Done():
			return p.checkCompletion(ctx, jobID, minCount)
		case <-waitCtx.Done():
			p.logger.Warn("refresh: chord completion wait timed out, falling back to broker polling", "job_id", jobID)
		}
	}

	if ok, settled := p.pollBroker(ctx, jobID, minCount); settled {
		return ok, nil
	}

	p.logger.Warn("refresh: broker polling unavailable, falling back to file-modification polling", "job_id", jobID)
	return p.pollFile(ctx, minCount)
}

func (p *Pipeline) checkCompletion(ctx context.Context, jobID string, minCount int) (bool, error) {
	status, count, err := p.jobStatus(ctx, jobID)
	if err != nil {
		return false, err
	}
	return status == domain.JobComplete && count >= minCount, nil
}

func (p *Pipeline) jobStatus(ctx context.Context, jobID string) (domain.JobStatus, int, error) {
	fields, err := p.broker.HGetAll(ctx, jobKey(jobID, "state"))
	if err != nil {
		return "", 0, err
	}
	status := domain.JobStatus(string(fields["status"]))
	count, _ := strconv.Atoi(string(fields["result_count"]))
	return status, count, nil
}

// pollBroker polls the job's broker state every RefreshPollInterval until
// it reaches a terminal status. settled is false when the broker's job
// state cannot be read or ctx expires first; the broker is then treated
// as an unavailable progress signal and the caller falls through to file
// polling.
func (p *Pipeline) pollBroker(ctx context.Context, jobID string, minCount int) (ok bool, settled bool) {
	ticker := time.NewTicker(constants.RefreshPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			status, count, err := p.jobStatus(ctx, jobID)
			if err != nil {
				return false, false
			}
			switch status {
			case domain.JobComplete:
				return count >= minCount, true
			case domain.JobFailed:
				return false, true
			}
		case <-ctx.Done():
			return false, false
		}
	}
}

func (p *Pipeline) pollFile(ctx context.Context, minCount int) (bool, error) {
	ticker := time.NewTicker(constants.RefreshPollInterval)
	defer ticker.Stop()

	var lastMod time.Time
	if info, err := os.Stat(p.publishedFile); err == nil {
		lastMod = info.ModTime()
	}

	for {
		select {
		case <-ticker.C:
			info, err := os.Stat(p.publishedFile)
			if err != nil {
				continue
			}
			if info.ModTime().After(lastMod) {
				entries, err := p.readPublished()
				if err != nil {
					continue
				}
				return len(entries) >= minCount, nil
			}
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}
