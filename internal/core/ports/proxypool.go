package ports

import "github.com/idkny/sale-sofia/internal/core/domain"

// ProxyPool is the runtime proxy pool contract (spec.md §4.3). A single
// process-wide instance lives per worker; there is no cross-worker sharing
// of failure counts (see SPEC_FULL.md §9 / DESIGN.md open-question log).
type ProxyPool interface {
	// Select returns a uniformly-random proxy among currently present
	// entries, or domain.ErrPoolEmpty if the pool is empty.
	Select() (domain.Proxy, error)
	// Record updates the failure counter for proxy: success resets it to
	// zero, failure increments it and prunes at MaxConsecutiveProxyFailures.
	Record(proxy domain.Proxy, success bool)
	// Remove manually evicts a proxy the caller already knows is dead.
	Remove(proxy domain.Proxy)
	// Reload re-reads the published proxy file; new entries start with
	// failure=0, removed entries lose their accumulated state.
	Reload() error
	// Stats reports total entries and how many are currently failing
	// (failures > 0 but below the prune threshold).
	Stats() PoolStats
}

// PoolStats is the snapshot returned by ProxyPool.Stats.
type PoolStats struct {
	Total   int
	Failing int
}
