package ports

import (
	"context"
	"time"

	"github.com/idkny/sale-sofia/internal/core/domain"
)

// Fetcher is the external collaborator from spec.md §6: a pluggable
// component that retrieves a URL through a given proxy. Two concrete
// implementations are expected to satisfy it — a fast HTTP fetcher for
// paginated search pages, and a stealth browser fetcher for detail pages.
// A Fetcher never retries internally; that is the resilience layer's job.
type Fetcher interface {
	Fetch(ctx context.Context, url string, proxy domain.Proxy, timeout time.Duration) (FetchResult, error)
}

// FetchResult carries the raw response bytes plus enough metadata for the
// error classifier and soft-block detector to do their job.
type FetchResult struct {
	Body       []byte
	Headers    map[string][]string
	StatusCode int
	Latency    time.Duration
}

// Extractor is the pure, network-free (html, url) -> Record function
// described in spec.md §6. A nil record with a nil error means "no
// listing found on this page" (e.g. a listing was delisted).
type Extractor interface {
	Extract(html []byte, url string) (*domain.ListingRecord, error)
}

// Sink is the external record store (spec.md §6). All operations key on
// url / (fingerprint, source) and are idempotent.
type Sink interface {
	Upsert(ctx context.Context, record domain.ListingRecord) error
	UpsertMany(ctx context.Context, records []domain.ListingRecord) error
	AddSource(ctx context.Context, entry domain.LinkageEntry) error
	AddSourcesMany(ctx context.Context, entries []domain.LinkageEntry) error
}

// LinkageStore holds the cross-source linkage table described in
// spec.md §4.6. internal/linkage ships an in-memory implementation that
// doubles as the Sink's linkage half when no external sink is wired.
type LinkageStore interface {
	Add(ctx context.Context, entry domain.LinkageEntry) ([]domain.LinkageEntry, error)
	Get(ctx context.Context, fingerprint string) ([]domain.LinkageEntry, error)
}

// StatsCollector is the ambient metrics sink, grounded on the teacher's
// ports.StatsCollector: a small write-mostly interface the orchestrator
// and pipelines call on the hot path without needing to know the backend.
type StatsCollector interface {
	IncrCounter(name string, delta int64, tags ...string)
	ObserveLatency(name string, d time.Duration, tags ...string)
	SetGauge(name string, value float64, tags ...string)
}
