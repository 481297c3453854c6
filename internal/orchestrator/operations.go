package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/idkny/sale-sofia/internal/core/constants"
	"github.com/idkny/sale-sofia/internal/core/domain"
	"github.com/idkny/sale-sofia/internal/core/ports"
	"github.com/idkny/sale-sofia/internal/refresh"
	"github.com/idkny/sale-sofia/internal/scrape"
)

// EnsureProxies blocks until the published pool holds at least minCount
// entries or timeout elapses, triggering and waiting on a refresh if the
// pool starts short.
func (o *Orchestrator) EnsureProxies(ctx context.Context, minCount int, timeout time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if stats := o.pool.Stats(); stats.Total-stats.Failing >= minCount {
		return true, nil
	}

	result, err := o.TriggerRefresh(ctx)
	if err != nil {
		return false, fmt.Errorf("orchestrator: ensure_proxies: %w", err)
	}

	ok, err := o.WaitForRefresh(ctx, result, minCount, constants.ProxyRefreshTimeout)
	if err != nil {
		return false, err
	}
	if ok {
		if err := o.pool.Reload(); err != nil {
			o.logger.Warn("orchestrator: ensure_proxies: pool reload failed", "err", err)
		}
	}
	return ok, nil
}

// TriggerRefresh enqueues the refresh chain and returns its {job_id,
// chord_id} handle without waiting for completion.
func (o *Orchestrator) TriggerRefresh(ctx context.Context) (refresh.DispatchResult, error) {
	return o.refresh.Run(ctx)
}

// WaitForRefresh blocks on a previously triggered refresh job using the
// three-stage fallback of spec.md §4.2.5.
func (o *Orchestrator) WaitForRefresh(ctx context.Context, dispatched refresh.DispatchResult, minCount int, timePerChunk time.Duration) (bool, error) {
	return o.refresh.WaitForRefresh(ctx, dispatched.JobID, nil, dispatched.TotalChunks, constants.DefaultWorkerConcurrency, minCount, timePerChunk)
}

// StartSiteScrape enqueues a scrape job for site, either walking its
// pagination contract (paginator != nil, urls empty) or scraping exactly
// the given urls (start_site_scrape(site, urls)).
func (o *Orchestrator) StartSiteScrape(ctx context.Context, site string, paginator ports.SitePaginator, extractor ports.Extractor, urls []string) (scrape.DispatchResult, error) {
	return o.scrape.Run(ctx, site, paginator, extractor, urls)
}

// jobNamespaces are the two job-state key prefixes progress(job_id) must
// try, since a bare job id doesn't say which pipeline produced it.
var jobNamespaces = []string{"proxy_refresh", "scraping"}

// Progress returns a snapshot for any refresh or scrape job id, read
// through from the broker's job-state hash.
func (o *Orchestrator) Progress(ctx context.Context, jobID string) (domain.Progress, error) {
	for _, ns := range jobNamespaces {
		fields, err := o.broker.HGetAll(ctx, fmt.Sprintf("%s:%s:state", ns, jobID))
		if err != nil || len(fields) == 0 {
			continue
		}

		status := domain.JobStatus(string(fields["status"]))
		total := atoiField(fields["total_chunks"])

		// completed_chunks is tracked as an Incr counter, not a Set value.
		// Incr with delta=0 leaves the count unchanged and never resets an
		// existing key's expiry; if no chunk has finished yet it creates
		// the counter at zero with the usual job-key TTL.
		completed64, err := o.broker.Incr(ctx, fmt.Sprintf("%s:%s:completed_chunks", ns, jobID), 0, constants.DefaultBrokerKeyTTL)
		completed := 0
		if err == nil {
			completed = int(completed64)
		}

		return domain.Progress{Status: status, Total: total, Completed: completed}, nil
	}
	return domain.Progress{}, fmt.Errorf("orchestrator: progress: unknown job %s", jobID)
}

func atoiField(raw []byte) int {
	n := 0
	for _, c := range raw {
		if c < '0' || c > '9' {
			return n
		}
		n = n*10 + int(c-'0')
	}
	return n
}
