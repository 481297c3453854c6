// Package proxypool implements ports.ProxyPool: a per-process, uniformly
// random proxy selector backed by a published proxy file, with failure
// tracking grounded on pkg/failuretracker and the prune-on-threshold
// behaviour of the teacher's endpoint selectors (internal/adapter/balancer).
package proxypool

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sync"

	"github.com/idkny/sale-sofia/internal/core/domain"
	"github.com/idkny/sale-sofia/internal/core/ports"
	"github.com/idkny/sale-sofia/internal/logger"
	"github.com/idkny/sale-sofia/pkg/failuretracker"
)

// Pool is an in-memory ports.ProxyPool reloaded from a JSON file.
type Pool struct {
	mu      sync.RWMutex
	entries []domain.Proxy
	byKey   map[string]int // identity -> index into entries

	filePath string
	maxFails int
	tracker  *failuretracker.Tracker
	logger   *logger.StyledLogger
}

func New(filePath string, maxConsecutiveFailures int, log *logger.StyledLogger) *Pool {
	return &Pool{
		byKey:    make(map[string]int),
		filePath: filePath,
		maxFails: maxConsecutiveFailures,
		tracker:  failuretracker.New(maxConsecutiveFailures),
		logger:   log,
	}
}

// Reload re-reads the published proxy file. Proxies absent from the new
// file lose their accumulated failure state; proxies still present keep
// it (the tracker is keyed by identity, not index, so it survives reload).
func (p *Pool) Reload() error {
	raw, err := os.ReadFile(p.filePath)
	if err != nil {
		return fmt.Errorf("proxypool: read %s: %w", p.filePath, err)
	}

	var entries []domain.Proxy
	if err := json.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("proxypool: decode %s: %w", p.filePath, err)
	}

	byKey := make(map[string]int, len(entries))
	for i := range entries {
		byKey[entries[i].Identity()] = i
	}

	p.mu.Lock()
	stale := make(map[string]struct{}, len(p.byKey))
	for key := range p.byKey {
		if _, present := byKey[key]; !present {
			stale[key] = struct{}{}
		}
	}
	p.entries = entries
	p.byKey = byKey
	p.mu.Unlock()

	for key := range stale {
		p.tracker.Forget(key)
	}

	if p.logger != nil {
		p.logger.InfoWithCount("proxy pool reloaded", len(entries))
	}
	return nil
}

// Select returns a uniformly-random entry from the current pool.
func (p *Pool) Select() (domain.Proxy, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.entries) == 0 {
		return domain.Proxy{}, domain.ErrPoolEmpty
	}
	return p.entries[rand.Intn(len(p.entries))], nil
}

// Record updates proxy's failure count, pruning it from the pool once it
// crosses the configured threshold.
func (p *Pool) Record(proxy domain.Proxy, success bool) {
	key := proxy.Identity()

	if success {
		p.tracker.RecordSuccess(key)
		return
	}

	if p.tracker.RecordFailure(key) {
		p.Remove(proxy)
	}
}

// Remove evicts proxy from the pool immediately.
func (p *Pool) Remove(proxy domain.Proxy) {
	key := proxy.Identity()

	p.mu.Lock()
	idx, ok := p.byKey[key]
	if ok {
		last := len(p.entries) - 1
		if idx != last {
			p.entries[idx] = p.entries[last]
			p.byKey[p.entries[idx].Identity()] = idx
		}
		p.entries = p.entries[:last]
		delete(p.byKey, key)
	}
	p.mu.Unlock()

	p.tracker.Forget(key)
	if p.logger != nil && ok {
		p.logger.WarnWithProxy("proxy removed from pool", key)
	}
}

// Stats reports the current pool size and how many entries are currently
// in a failing (but not yet pruned) state.
func (p *Pool) Stats() ports.PoolStats {
	p.mu.RLock()
	total := len(p.entries)
	p.mu.RUnlock()

	return ports.PoolStats{Total: total, Failing: p.tracker.Failing()}
}

var _ ports.ProxyPool = (*Pool)(nil)
