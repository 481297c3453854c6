package scrape

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/idkny/sale-sofia/internal/core/constants"
	"github.com/idkny/sale-sofia/internal/core/domain"
	"github.com/idkny/sale-sofia/internal/core/ports"
	"github.com/idkny/sale-sofia/internal/resilience"
	"github.com/idkny/sale-sofia/internal/util"
)

// URLResult is one URL's outcome within a chunk.
type URLResult struct {
	URL    string
	Status string
	Record *domain.ListingRecord
	Err    error
}

const (
	statusOK      = "ok"
	statusSkipped = "skipped"
	statusError   = "error"
)

// ScrapeChunk is the chord's worker task (spec.md §4.5.3): for each URL in
// the chunk, bounded to a default concurrency of ConcurrentChunkCap,
// borrow a proxy, check the circuit breaker, acquire a rate-limit token,
// fetch with retry-with-backoff, run the soft-block detector, then hand
// (html, url) to the site-specific extractor. A single URL's failure
// never fails the chunk; completed_chunks is incremented once regardless
// of how many URLs inside succeeded.
func (p *Pipeline) ScrapeChunk(ctx context.Context, jobID, site string, chunk []string, extractor ports.Extractor) ([]URLResult, error) {
	sem := semaphore.NewWeighted(int64(p.concurrencyFor()))
	results := make([]URLResult, len(chunk))

	var wg sync.WaitGroup
	for i, target := range chunk {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = URLResult{URL: target, Status: statusSkipped, Err: err}
			continue
		}
		wg.Add(1)
		go func(i int, target string) {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = p.scrapeOne(ctx, site, target, extractor)
		}(i, target)
	}
	wg.Wait()

	if _, err := p.broker.Incr(ctx, siteJobKey(jobID, "completed_chunks"), 1, constants.ScrapeJobTTL); err != nil {
		p.logger.Warn("scrape: failed to record chunk progress", "job_id", jobID, "err", err)
	}
	return results, nil
}

// scrapeOne runs the per-URL sequence of §4.5.3 in order: circuit check,
// rate-limit acquire, fetch-with-retry, soft-block check, extract.
func (p *Pipeline) scrapeOne(ctx context.Context, site, target string, extractor ports.Extractor) URLResult {
	if !p.breaker.CanRequest(site) {
		return URLResult{URL: target, Status: statusSkipped, Err: domain.ErrCircuitOpen}
	}
	if !p.limiter.Acquire(ctx, site, true) {
		return URLResult{URL: target, Status: statusSkipped, Err: fmt.Errorf("scrape: rate limit wait cancelled for %s", target)}
	}

	result, err := p.fetchWithRetry(ctx, target)
	if err != nil {
		kind := resilience.Classify(err, result.StatusCode)
		p.breaker.RecordFailure(site, domain.BlockUnknown)
		if p.cfg.Stats != nil {
			p.cfg.Stats.IncrCounter("scrape.fetch.failed", 1, site)
		}
		return URLResult{URL: target, Status: statusError, Err: fmt.Errorf("%s: %w", kind, err)}
	}
	p.breaker.RecordSuccess(site)
	if p.cfg.Stats != nil {
		p.cfg.Stats.IncrCounter("scrape.fetch.succeeded", 1, site)
		p.cfg.Stats.ObserveLatency("scrape.fetch.latency", result.Latency, site)
	}

	if kind, blocked := resilience.DetectSoftBlock(result.Body, p.cfg.MinBodyBytes); blocked {
		p.breaker.RecordFailure(site, kind)
		return URLResult{URL: target, Status: statusError, Err: fmt.Errorf("soft block: %s", kind)}
	}

	record, err := extractor.Extract(result.Body, target)
	if err != nil {
		return URLResult{URL: target, Status: statusError, Err: err}
	}
	if record == nil {
		return URLResult{URL: target, Status: statusSkipped}
	}
	return URLResult{URL: target, Status: statusOK, Record: record}
}

// fetchWithRetry re-selects a proxy on every attempt (a fresh Select call
// is itself the "retry with proxy rotation" recovery action for PROXY-kind
// failures) and retries on any retryable classification up to the
// configured attempt limit with exponential backoff. NOT_FOUND and PARSE
// are never retryable (domain.ErrorKind.Retryable) so they abort on the
// first attempt — resilience.RetryPolicy.Do has no such early-abort
// signal, so the loop is implemented directly here instead of through it.
func (p *Pipeline) fetchWithRetry(ctx context.Context, target string) (ports.FetchResult, error) {
	maxAttempts := p.cfg.Retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = constants.RetryMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		proxy, err := p.pool.Select()
		if err != nil {
			return ports.FetchResult{}, fmt.Errorf("scrape: no proxy available: %w", err)
		}

		result, err := p.fetcher.Fetch(ctx, target, proxy, p.cfg.FetchTimeout)
		statusCode := result.StatusCode
		if err == nil && statusCode >= 400 {
			err = fmt.Errorf("scrape: http %d fetching %s", statusCode, target)
		}
		if err == nil {
			p.pool.Record(proxy, true)
			return result, nil
		}

		p.pool.Record(proxy, false)
		lastErr = err

		kind := resilience.Classify(err, statusCode)
		if !kind.Retryable() || attempt == maxAttempts {
			return ports.FetchResult{StatusCode: statusCode}, lastErr
		}
		p.sleepBackoff(ctx, attempt)
	}
	return ports.FetchResult{}, lastErr
}

func (p *Pipeline) sleepBackoff(ctx context.Context, attempt int) {
	retry := p.cfg.Retry
	if retry.BaseDelay <= 0 {
		retry.BaseDelay = constants.RetryBaseDelay
	}
	if retry.MaxDelay <= 0 {
		retry.MaxDelay = constants.RetryMaxDelay
	}
	if retry.JitterFactor <= 0 {
		retry.JitterFactor = constants.RetryJitter
	}

	delay := util.CalculateExponentialBackoff(attempt, retry.BaseDelay, retry.MaxDelay, retry.JitterFactor)
	timer := time.NewTimer(delay)
	select {
	case <-timer.C:
	case <-ctx.Done():
		timer.Stop()
	}
}
