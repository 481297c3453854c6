package orchestrator

import (
	"context"
	"fmt"
	"net"

	"github.com/idkny/sale-sofia/internal/core/constants"
)

// managedServices returns the broker, task runtime, proxy pool and
// (optionally) the rotator as services.ManagedService, in the shape
// services.ServiceManager expects: each declares its own dependencies and
// lets the manager's topological sort decide start/stop order rather than
// the orchestrator hardcoding it.
func (o *Orchestrator) managedServices() []serviceAdapter {
	adapters := []serviceAdapter{
		{name: "broker", deps: nil, start: o.startBroker, stop: o.stopBroker},
		{name: "task_runtime", deps: []string{"broker"}, start: o.startRuntime, stop: o.stopRuntime},
		{name: "proxy_pool", deps: []string{"broker"}, start: o.startPool, stop: noopStop},
	}
	if o.cfg.RotatorAddr != "" {
		adapters = append(adapters, serviceAdapter{name: "rotator", deps: []string{"broker"}, start: o.startRotator, stop: noopStop})
	}
	return adapters
}

func (o *Orchestrator) startBroker(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, constants.BrokerPingTimeout)
	defer cancel()
	return o.broker.Ping(pingCtx)
}

func (o *Orchestrator) stopBroker(context.Context) error {
	return o.broker.Close()
}

func (o *Orchestrator) startRuntime(ctx context.Context) error {
	if err := o.runtime.Start(ctx); err != nil {
		return err
	}
	pingCtx, cancel := context.WithTimeout(ctx, constants.TaskRuntimePingTimeout)
	defer cancel()
	return o.runtime.PingControlPlane(pingCtx)
}

func (o *Orchestrator) stopRuntime(ctx context.Context) error {
	return o.runtime.Stop(ctx)
}

func (o *Orchestrator) startPool(context.Context) error {
	return o.pool.Reload()
}

func (o *Orchestrator) startRotator(ctx context.Context) error {
	dialer := net.Dialer{Timeout: constants.RotatorDialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", o.cfg.RotatorAddr)
	if err != nil {
		return fmt.Errorf("rotator unreachable at %s: %w", o.cfg.RotatorAddr, err)
	}
	return conn.Close()
}

func noopStop(context.Context) error { return nil }

// serviceAdapter satisfies services.ManagedService over plain closures, so
// the orchestrator doesn't need one named struct type per dependency.
type serviceAdapter struct {
	name  string
	deps  []string
	start func(ctx context.Context) error
	stop  func(ctx context.Context) error
}

func (s serviceAdapter) Name() string                   { return s.name }
func (s serviceAdapter) Dependencies() []string          { return s.deps }
func (s serviceAdapter) Start(ctx context.Context) error { return s.start(ctx) }
func (s serviceAdapter) Stop(ctx context.Context) error  { return s.stop(ctx) }
