package orchestrator

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/idkny/sale-sofia/internal/core/constants"
	"github.com/idkny/sale-sofia/internal/logger"
)

// healthCheckInterval is how often the monitor polls broker PING,
// task-runtime control ping and the rotator TCP dial.
const healthCheckInterval = 30 * time.Second

// healthMonitor polls the three health targets of spec.md §4.1 on a
// ticker and attempts a targeted restart of whichever one failed. Once a
// target has failed MaxConsecutiveHealthFailures checks in a row, the
// monitor logs an error and attempts no further restart of it; the
// orchestrator keeps running and Run is not told. Mirrors the teacher's HTTPHealthChecker
// ticking-loop shape but collapsed to three fixed targets instead of a
// dynamic endpoint set.
type healthMonitor struct {
	o      *Orchestrator
	logger *logger.StyledLogger

	mu        sync.Mutex
	failures  map[string]int
	stopCh    chan struct{}
	doneCh    chan struct{}
}

func newHealthMonitor(o *Orchestrator, log *logger.StyledLogger) *healthMonitor {
	return &healthMonitor{
		o:        o,
		logger:   log,
		failures: make(map[string]int),
	}
}

func (m *healthMonitor) start(ctx context.Context) {
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	go m.loop(ctx)
}

func (m *healthMonitor) stop() {
	if m.stopCh == nil {
		return
	}
	close(m.stopCh)
	<-m.doneCh
}

func (m *healthMonitor) loop(ctx context.Context) {
	defer close(m.doneCh)
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.checkAll(ctx)
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (m *healthMonitor) checkAll(ctx context.Context) {
	m.check(ctx, "broker", constants.BrokerPingTimeout, m.o.broker.Ping, m.o.startBroker)
	m.check(ctx, "task_runtime", constants.TaskRuntimePingTimeout, m.o.runtime.PingControlPlane, func(ctx context.Context) error {
		return m.o.startRuntime(ctx)
	})
	if m.o.cfg.RotatorAddr != "" {
		m.check(ctx, "rotator", constants.RotatorDialTimeout, m.dialRotator, m.o.startRotator)
	}
}

func (m *healthMonitor) dialRotator(ctx context.Context) error {
	dialer := net.Dialer{Timeout: constants.RotatorDialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", m.o.cfg.RotatorAddr)
	if err != nil {
		return err
	}
	return conn.Close()
}

// check pings target; on failure it attempts restart once, and from
// MaxConsecutiveHealthFailures consecutive failures on it logs an error
// instead of attempting a restart.
func (m *healthMonitor) check(ctx context.Context, name string, timeout time.Duration, ping func(ctx context.Context) error, restart func(ctx context.Context) error) {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := ping(pingCtx); err == nil {
		m.mu.Lock()
		m.failures[name] = 0
		m.mu.Unlock()
		return
	}

	m.mu.Lock()
	m.failures[name]++
	count := m.failures[name]
	m.mu.Unlock()

	m.logger.Warn("orchestrator: health check failed", "target", name, "consecutive", count)

	if count >= constants.MaxConsecutiveHealthFailures {
		m.logger.Error("orchestrator: health target failed repeatedly, giving up restart attempts", "target", name, "consecutive", count)
		return
	}

	restartCtx, restartCancel := context.WithTimeout(ctx, timeout)
	defer restartCancel()
	if err := restart(restartCtx); err != nil {
		m.logger.Warn("orchestrator: targeted restart failed", "target", name, "err", err)
		return
	}
	m.logger.Info("orchestrator: targeted restart succeeded", "target", name)
}
