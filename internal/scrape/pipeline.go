// Package scrape implements the site-scraping dispatcher of spec.md §4.5:
// structurally the sibling of internal/refresh, expressed as
// chain(Collect, Dispatch) where Dispatch expands into
// chord(group(ScrapeChunk...), AggregateSite) over ports.TaskRuntime.
package scrape

import (
	"context"
	"fmt"
	"time"

	"github.com/idkny/sale-sofia/internal/core/constants"
	"github.com/idkny/sale-sofia/internal/core/ports"
	"github.com/idkny/sale-sofia/internal/logger"
	"github.com/idkny/sale-sofia/internal/resilience"
)

// Config bundles the operator-tunable knobs a Pipeline needs; main.go
// fills ChunkSize from config.RefreshConfig and Retry from
// config.ResilienceConfig.
type Config struct {
	ChunkSize        int
	ChunkConcurrency int
	ChunkSoft        time.Duration
	ChunkHard        time.Duration
	FetchTimeout     time.Duration
	MinBodyBytes     int
	Retry            resilience.RetryPolicy
	// Stats is optional; when nil, fetch counters/latency are simply not
	// recorded.
	Stats ports.StatsCollector
}

// Pipeline composes one site's scrape job stages. A single Pipeline is
// reused across every site the orchestrator knows about; site-specific
// collaborators (paginator, extractor) are supplied per Run call.
type Pipeline struct {
	runtime ports.TaskRuntime
	broker  ports.Broker
	pool    ports.ProxyPool
	breaker *resilience.CircuitBreaker
	limiter *resilience.RateLimiter
	fetcher ports.Fetcher
	linkage ports.LinkageStore
	sink    ports.Sink
	logger  *logger.StyledLogger

	cfg Config
}

func New(
	runtime ports.TaskRuntime,
	broker ports.Broker,
	pool ports.ProxyPool,
	breaker *resilience.CircuitBreaker,
	limiter *resilience.RateLimiter,
	fetcher ports.Fetcher,
	linkage ports.LinkageStore,
	sink ports.Sink,
	log *logger.StyledLogger,
	cfg Config,
) *Pipeline {
	return &Pipeline{
		runtime: runtime,
		broker:  broker,
		pool:    pool,
		breaker: breaker,
		limiter: limiter,
		fetcher: fetcher,
		linkage: linkage,
		sink:    sink,
		logger:  log,
		cfg:     cfg,
	}
}

// Run drives Collect and Dispatch through the task runtime as a chain for
// one site and returns Dispatch's result once its chord has been fanned
// out; the chord itself keeps running in the background. paginator may be
// nil when seedURLs is non-empty (start_site_scrape(site, urls) bypasses
// the pagination walk entirely).
func (p *Pipeline) Run(ctx context.Context, site string, paginator ports.SitePaginator, extractor ports.Extractor, seedURLs []string) (DispatchResult, error) {
	queue := "site_scrape:" + site
	limits := ports.TaskLimits{Soft: p.cfg.ChunkHard, Hard: p.cfg.ChunkHard}

	collect := func(ctx context.Context) (any, error) {
		return p.Collect(ctx, paginator, seedURLs)
	}
	dispatch := func(ctx context.Context) (any, error) {
		return p.Dispatch(ctx, site, extractor)
	}

	result, err := p.runtime.Chain(ctx, queue, limits, collect, dispatch)
	if err != nil {
		return DispatchResult{}, err
	}
	dispatched, ok := result.(DispatchResult)
	if !ok {
		return DispatchResult{}, fmt.Errorf("scrape: dispatch returned unexpected type %T", result)
	}
	return dispatched, nil
}

func (p *Pipeline) concurrencyFor() int {
	if p.cfg.ChunkConcurrency <= 0 {
		return constants.ConcurrentChunkCap
	}
	return p.cfg.ChunkConcurrency
}
