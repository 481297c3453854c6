package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/idkny/sale-sofia/internal/adapter/broker"
	"github.com/idkny/sale-sofia/internal/adapter/fetcher"
	"github.com/idkny/sale-sofia/internal/adapter/sink"
	"github.com/idkny/sale-sofia/internal/adapter/stats"
	"github.com/idkny/sale-sofia/internal/adapter/taskrunner"
	"github.com/idkny/sale-sofia/internal/config"
	"github.com/idkny/sale-sofia/internal/core/domain"
	"github.com/idkny/sale-sofia/internal/linkage"
	"github.com/idkny/sale-sofia/internal/logger"
	"github.com/idkny/sale-sofia/internal/orchestrator"
	"github.com/idkny/sale-sofia/internal/proxypool"
	"github.com/idkny/sale-sofia/internal/refresh"
	"github.com/idkny/sale-sofia/internal/resilience"
	"github.com/idkny/sale-sofia/internal/scrape"
	"github.com/idkny/sale-sofia/pkg/container"
)

const (
	brokerQueueCapacity = 10000
	brokerJanitorPeriod = 5 * time.Minute
)

func main() {
	startTime := time.Now()
	vlog := log.New(log.Writer(), "", 0)

	cfg, err := config.Load(nil)
	if err != nil {
		vlog.Fatalf("failed to load configuration: %v", err)
	}

	logInstance, styledLogger, cleanup, err := logger.NewWithTheme(&logger.Config{
		Level:      cfg.Logging.Level,
		LogDir:     cfg.Logging.LogDir,
		Theme:      cfg.Logging.Theme,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		FileOutput: cfg.Logging.FileOutput,
		PrettyLogs: cfg.Logging.PrettyLogs,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()
	slog.SetDefault(logInstance)

	styledLogger.Info("initialising sale-sofia", "pid", os.Getpid(), "started", startTime.Format(time.RFC3339), "containerised", container.IsContainerised())

	app, err := build(cfg, styledLogger)
	if err != nil {
		logger.FatalWithLogger(logInstance, "failed to build application", "error", err)
	}

	ctx := context.Background()
	if err := app.orchestrator.Run(ctx); err != nil {
		logger.FatalWithLogger(logInstance, "orchestrator exited with error", "error", err)
	}

	styledLogger.Info("sale-sofia has shut down", "uptime", time.Since(startTime).String())
}

// application bundles every collaborator main wires up, kept around only
// so build() has somewhere to return them.
type application struct {
	orchestrator *orchestrator.Orchestrator
}

// build wires the broker, task runtime, proxy pool, resilience
// primitives, linkage store, stats collector and the two pipelines into
// one orchestrator, the way app.New did for the teacher's service graph.
func build(cfg *config.Config, log *logger.StyledLogger) (*application, error) {
	brokerImpl := broker.New(brokerQueueCapacity, brokerJanitorPeriod)
	runtime := taskrunner.New(cfg.TaskRunner.Concurrency, log)

	pool := proxypool.New(cfg.Proxy.PublishedFile, cfg.Proxy.MaxConsecutiveFailures, log)
	if err := pool.Reload(); err != nil {
		log.Warn("proxy pool: initial load failed, starting empty", "err", err)
	}

	breaker := resilience.NewCircuitBreaker(
		cfg.Resilience.CircuitFailMax,
		cfg.Resilience.CircuitResetTimeout,
		cfg.Resilience.CircuitHalfOpenMax,
		log,
	)
	limiter := resilience.NewRateLimiter(cfg.Resilience.DefaultRatePerMin, cfg.Resilience.DomainRatesPerMin)

	linkageStore := linkage.NewStore(func(event domain.DiscrepancyEvent) {
		log.Warn("price discrepancy detected", "fingerprint", event.Fingerprint,
			"min_price", event.MinPrice, "max_price", event.MaxPrice,
			"discrepancy_pct", event.DiscrepancyPct, "sources", event.Sources)
	})

	metrics := stats.NewCollector(log)

	refreshPipeline := refresh.New(runtime, brokerImpl, log, refresh.Config{
		ScraperCommand: cfg.Refresh.ScraperCommand,
		ChunkSize:      cfg.Refresh.ChunkSize,
		ScrapeTimeout:  cfg.Refresh.ScrapeTimeout,
		CheckSoft:      cfg.Refresh.CheckSoftLimit,
		CheckHard:      cfg.Refresh.CheckHardLimit,
		JudgeURLs:      cfg.Refresh.JudgeURLs,
		IPEchoURLs:     cfg.Refresh.IPEchoURLs,
		PublishedFile:  cfg.Proxy.PublishedFile,
		LocalEgressIP:  cfg.Proxy.LocalEgressIP,
		Stats:          metrics,
	})

	listingSink, err := sink.NewJSONSink("./data/listings.json", log)
	if err != nil {
		return nil, fmt.Errorf("build: listing sink: %w", err)
	}

	scrapePipeline := scrape.New(
		runtime,
		brokerImpl,
		pool,
		breaker,
		limiter,
		fetcher.NewHTTPFetcher(),
		linkageStore,
		listingSink,
		log,
		scrape.Config{
			ChunkSize:    cfg.Refresh.ChunkSize,
			FetchTimeout: 30 * time.Second,
			MinBodyBytes: 512,
			Retry: resilience.RetryPolicy{
				MaxAttempts:  cfg.Resilience.RetryMaxAttempts,
				BaseDelay:    cfg.Resilience.RetryBaseDelay,
				MaxDelay:     cfg.Resilience.RetryMaxDelay,
				JitterFactor: cfg.Resilience.RetryJitterFactor,
			},
			Stats: metrics,
		},
	)

	orch := orchestrator.New(brokerImpl, runtime, pool, refreshPipeline, scrapePipeline, log, orchestrator.Config{
		MinProxiesForScraping: cfg.Proxy.MinProxiesForScraping,
		EnsureProxiesTimeout:  cfg.Proxy.EnsureTimeout,
	})

	return &application{orchestrator: orch}, nil
}
