// Package refresh implements the proxy refresh pipeline of spec.md §4.2:
// a single logical job expressed as chain(Scrape, Dispatch) where Dispatch
// expands into chord(group(CheckChunk...), Aggregate) over ports.TaskRuntime.
package refresh

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/idkny/sale-sofia/internal/core/ports"
	"github.com/idkny/sale-sofia/internal/logger"
)

// Config bundles the operator-tunable knobs a Pipeline needs, sourced from
// config.RefreshConfig and config.ProxyConfig.
type Config struct {
	ScraperCommand string
	ChunkSize      int
	ScrapeTimeout  time.Duration
	CheckSoft      time.Duration
	CheckHard      time.Duration
	JudgeURLs      []string
	IPEchoURLs     []string
	PublishedFile  string
	// LocalEgressIP, when set, overrides the judge/ip-echo based egress
	// detection (useful behind a known NAT, or in tests).
	LocalEgressIP string
	// Stats is optional; when nil, chunk/proxy counters are simply not
	// recorded.
	Stats ports.StatsCollector
}

// Pipeline composes the refresh job's stages. The orchestrator calls Run
// to trigger the chain and WaitForRefresh to block on its chord.
type Pipeline struct {
	runtime ports.TaskRuntime
	broker  ports.Broker
	stats   ports.StatsCollector
	logger  *logger.StyledLogger

	scraperCmd string

	chunkSize     int
	scrapeTimeout time.Duration
	checkSoft     time.Duration
	checkHard     time.Duration

	judgeURLs     []string
	ipEchoURLs    []string
	publishedFile string

	directClient *http.Client

	egressOnce     sync.Once
	cachedEgressIP string
}

func New(runtime ports.TaskRuntime, broker ports.Broker, log *logger.StyledLogger, cfg Config) *Pipeline {
	p := &Pipeline{
		runtime:       runtime,
		broker:        broker,
		stats:         cfg.Stats,
		logger:        log,
		scraperCmd:    cfg.ScraperCommand,
		chunkSize:     cfg.ChunkSize,
		scrapeTimeout: cfg.ScrapeTimeout,
		checkSoft:     cfg.CheckSoft,
		checkHard:     cfg.CheckHard,
		judgeURLs:     cfg.JudgeURLs,
		ipEchoURLs:    cfg.IPEchoURLs,
		publishedFile: cfg.PublishedFile,
		directClient:  &http.Client{Timeout: echoTimeout},
	}
	p.cachedEgressIP = cfg.LocalEgressIP
	return p
}

// Run drives Scrape and Dispatch through the task runtime as a chain and
// returns Dispatch's result once the chord has been fanned out; the chord
// itself keeps running in the background, resolved later via WaitForRefresh.
func (p *Pipeline) Run(ctx context.Context) (DispatchResult, error) {
	limits := ports.TaskLimits{Soft: p.scrapeTimeout, Hard: p.scrapeTimeout}
	result, err := p.runtime.Chain(ctx, "proxy_refresh", limits, p.Scrape, p.Dispatch)
	if err != nil {
		return DispatchResult{}, err
	}
	dispatched, ok := result.(DispatchResult)
	if !ok {
		return DispatchResult{}, fmt.Errorf("refresh: dispatch returned unexpected type %T", result)
	}
	return dispatched, nil
}
