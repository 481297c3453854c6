/*
	Collector centralises the ambient metrics every pipeline and the
	orchestrator report against — fetch counts, fetch latency, proxy pool
	and queue gauges — instead of each component wiring its own sink.

	Thread-safe for high concurrency: every named counter/gauge gets its own
	xsync.Counter/atomic cell, keyed by name+tags so two call sites sharing a
	metric name never clobber each other's series.
*/
package stats

import (
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/idkny/sale-sofia/internal/logger"
)

// Collector implements ports.StatsCollector over in-process counters,
// reservoir-sampled latency percentiles and atomic gauges.
type Collector struct {
	logger *logger.StyledLogger

	counters   *xsync.Map[string, *xsync.Counter]
	latencies  *xsync.Map[string, *ReservoirSampler]
	gauges     *xsync.Map[string, *atomicFloat]
}

type atomicFloat struct {
	bits atomic.Uint64
}

func (a *atomicFloat) store(v float64) { a.bits.Store(math.Float64bits(v)) }
func (a *atomicFloat) load() float64   { return math.Float64frombits(a.bits.Load()) }

func NewCollector(log *logger.StyledLogger) *Collector {
	return &Collector{
		logger:    log,
		counters:  xsync.NewMap[string, *xsync.Counter](),
		latencies: xsync.NewMap[string, *ReservoirSampler](),
		gauges:    xsync.NewMap[string, *atomicFloat](),
	}
}

// IncrCounter adds delta to the named, tag-qualified counter.
func (c *Collector) IncrCounter(name string, delta int64, tags ...string) {
	key := metricKey(name, tags)
	counter, _ := c.counters.LoadOrCompute(key, func() (*xsync.Counter, bool) {
		return xsync.NewCounter(), false
	})
	counter.Add(delta)
}

// ObserveLatency records one latency sample for the named, tag-qualified
// metric into a bounded reservoir sample.
func (c *Collector) ObserveLatency(name string, d time.Duration, tags ...string) {
	key := metricKey(name, tags)
	sampler, _ := c.latencies.LoadOrCompute(key, func() (*ReservoirSampler, bool) {
		return NewReservoirSampler(200), false
	})
	sampler.Add(d.Milliseconds())
}

// SetGauge overwrites the named, tag-qualified gauge's current value.
func (c *Collector) SetGauge(name string, value float64, tags ...string) {
	key := metricKey(name, tags)
	gauge, _ := c.gauges.LoadOrCompute(key, func() (*atomicFloat, bool) {
		return &atomicFloat{}, false
	})
	gauge.store(value)
}

// Counter returns the current value of a named, tag-qualified counter.
func (c *Collector) Counter(name string, tags ...string) int64 {
	counter, ok := c.counters.Load(metricKey(name, tags))
	if !ok {
		return 0
	}
	return counter.Value()
}

// LatencyPercentiles returns p50/p95/p99 (milliseconds) for a named,
// tag-qualified latency metric.
func (c *Collector) LatencyPercentiles(name string, tags ...string) (p50, p95, p99 int64) {
	sampler, ok := c.latencies.Load(metricKey(name, tags))
	if !ok {
		return 0, 0, 0
	}
	return sampler.GetPercentiles()
}

// Gauge returns the current value of a named, tag-qualified gauge.
func (c *Collector) Gauge(name string, tags ...string) float64 {
	gauge, ok := c.gauges.Load(metricKey(name, tags))
	if !ok {
		return 0
	}
	return gauge.load()
}

func metricKey(name string, tags []string) string {
	if len(tags) == 0 {
		return name
	}
	return name + "|" + strings.Join(tags, ",")
}
