// Package orchestrator hosts the lifecycle coordinator of spec.md §4.1:
// start/stop in dependency order, signal-driven teardown, health
// monitoring with targeted restart, and the five operator-facing
// operations (ensure_proxies, trigger_refresh, wait_for_refresh,
// start_site_scrape, progress). Generalised from the teacher's
// internal/app/services.ServiceManager.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/idkny/sale-sofia/internal/adapter/procscan"
	"github.com/idkny/sale-sofia/internal/app/services"
	"github.com/idkny/sale-sofia/internal/core/constants"
	"github.com/idkny/sale-sofia/internal/core/ports"
	"github.com/idkny/sale-sofia/internal/logger"
	"github.com/idkny/sale-sofia/internal/refresh"
	"github.com/idkny/sale-sofia/internal/scrape"
)

// Config bundles everything the orchestrator needs to wire its managed
// services and health checks.
type Config struct {
	WorkerProcessPatterns  []string
	RotatorAddr            string
	MinProxiesForScraping  int
	EnsureProxiesTimeout   time.Duration
}

// Orchestrator is the process-wide lifecycle coordinator. One instance
// per process.
type Orchestrator struct {
	manager  *services.ServiceManager
	broker   ports.Broker
	runtime  ports.TaskRuntime
	pool     ports.ProxyPool
	refresh  *refresh.Pipeline
	scrape   *scrape.Pipeline
	logger   *logger.StyledLogger
	cfg      Config

	monitor *healthMonitor
}

func New(
	broker ports.Broker,
	runtime ports.TaskRuntime,
	pool ports.ProxyPool,
	refreshPipeline *refresh.Pipeline,
	scrapePipeline *scrape.Pipeline,
	log *logger.StyledLogger,
	cfg Config,
) *Orchestrator {
	o := &Orchestrator{
		manager: services.NewServiceManager(log),
		broker:  broker,
		runtime: runtime,
		pool:    pool,
		refresh: refreshPipeline,
		scrape:  scrapePipeline,
		logger:  log,
		cfg:     cfg,
	}
	o.monitor = newHealthMonitor(o, log)
	return o
}

// Run brings the orchestrator up, blocks until SIGINT/SIGTERM or ctx is
// cancelled, and tears everything down on every exit path — normal
// return, signal, or panic recovered by the caller.
func (o *Orchestrator) Run(ctx context.Context) error {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := o.start(sigCtx); err != nil {
		return fmt.Errorf("orchestrator: start: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := o.stop(stopCtx); err != nil {
			o.logger.Error("orchestrator: stop failed", "err", err)
		}
	}()

	o.monitor.start(sigCtx)
	defer o.monitor.stop()

	<-sigCtx.Done()
	o.logger.Info("orchestrator: shutdown signal received")
	return nil
}

// start is idempotent: it kills orphaned worker/rotator processes from a
// previous crash, registers the broker/runtime/pool as managed services
// and starts them in dependency order, then ensures the minimum proxy
// count is met (triggering a refresh if not).
func (o *Orchestrator) start(ctx context.Context) error {
	o.killOrphans()

	for _, svc := range o.managedServices() {
		if err := o.manager.Register(svc); err != nil {
			return err
		}
	}
	if err := o.manager.Start(ctx); err != nil {
		return err
	}

	stats := o.pool.Stats()
	if stats.Total-stats.Failing < o.minProxies() {
		o.logger.Info("orchestrator: insufficient validated proxies at startup, triggering refresh",
			"have", stats.Total-stats.Failing, "want", o.minProxies())
		if _, err := o.EnsureProxies(ctx, o.minProxies(), o.ensureTimeout()); err != nil {
			o.logger.Warn("orchestrator: ensure_proxies at startup did not reach target", "err", err)
		}
	}
	return nil
}

// stop tears every managed service down in reverse start order.
func (o *Orchestrator) stop(ctx context.Context) error {
	return o.manager.Stop(ctx)
}

func (o *Orchestrator) minProxies() int {
	if o.cfg.MinProxiesForScraping <= 0 {
		return constants.MinProxiesForScraping
	}
	return o.cfg.MinProxiesForScraping
}

func (o *Orchestrator) ensureTimeout() time.Duration {
	if o.cfg.EnsureProxiesTimeout <= 0 {
		return constants.ProxyRefreshTimeout
	}
	return o.cfg.EnsureProxiesTimeout
}

func (o *Orchestrator) killOrphans() {
	if len(o.cfg.WorkerProcessPatterns) == 0 {
		return
	}
	killed, err := procscan.KillStrays(o.cfg.WorkerProcessPatterns)
	if err != nil {
		o.logger.Warn("orchestrator: process scan failed", "err", err)
		return
	}
	if len(killed) > 0 {
		o.logger.Info("orchestrator: terminated orphaned processes", "pids", killed)
	}
}
