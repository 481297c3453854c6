package linkage

import (
	"context"
	"sync"

	"github.com/idkny/sale-sofia/internal/core/domain"
	"github.com/idkny/sale-sofia/internal/core/ports"
)

// DiscrepancyThresholdPct is the minimum price-divergence percentage
// (§4.6) at which two linked entries emit a DiscrepancyEvent.
const DiscrepancyThresholdPct = 5.0

// Store is an in-memory ports.LinkageStore keyed on (fingerprint, source),
// a stand-in for a SQL-backed linkage table.
type Store struct {
	mu      sync.RWMutex
	entries map[string]map[string]domain.LinkageEntry // fingerprint -> source -> entry

	onDiscrepancy func(domain.DiscrepancyEvent)
}

func NewStore(onDiscrepancy func(domain.DiscrepancyEvent)) *Store {
	return &Store{
		entries:       make(map[string]map[string]domain.LinkageEntry),
		onDiscrepancy: onDiscrepancy,
	}
}

// Add upserts entry under (Fingerprint, Source), returns every entry now
// sharing that fingerprint, and fires onDiscrepancy when >= 2 entries
// diverge in price by >= DiscrepancyThresholdPct.
func (s *Store) Add(ctx context.Context, entry domain.LinkageEntry) ([]domain.LinkageEntry, error) {
	s.mu.Lock()
	bySource, ok := s.entries[entry.Fingerprint]
	if !ok {
		bySource = make(map[string]domain.LinkageEntry)
		s.entries[entry.Fingerprint] = bySource
	}

	if existing, present := bySource[entry.Source]; present {
		entry.FirstSeen = existing.FirstSeen
	}
	bySource[entry.Source] = entry

	siblings := make([]domain.LinkageEntry, 0, len(bySource))
	for _, e := range bySource {
		siblings = append(siblings, e)
	}
	s.mu.Unlock()

	if len(siblings) >= 2 && s.onDiscrepancy != nil {
		if event, found := discrepancy(entry.Fingerprint, siblings); found {
			s.onDiscrepancy(event)
		}
	}

	return siblings, nil
}

// Get returns every linkage entry sharing fingerprint.
func (s *Store) Get(ctx context.Context, fingerprint string) ([]domain.LinkageEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bySource, ok := s.entries[fingerprint]
	if !ok {
		return nil, nil
	}
	out := make([]domain.LinkageEntry, 0, len(bySource))
	for _, e := range bySource {
		out = append(out, e)
	}
	return out, nil
}

func discrepancy(fingerprint string, entries []domain.LinkageEntry) (domain.DiscrepancyEvent, bool) {
	min, max := entries[0].Price, entries[0].Price
	sources := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Price < min {
			min = e.Price
		}
		if e.Price > max {
			max = e.Price
		}
		sources = append(sources, e.Source)
	}

	pct := DiscrepancyPct(min, max)
	if pct < DiscrepancyThresholdPct {
		return domain.DiscrepancyEvent{}, false
	}

	return domain.DiscrepancyEvent{
		Fingerprint:    fingerprint,
		MinPrice:       min,
		MaxPrice:       max,
		DiscrepancyPct: pct,
		Sources:        sources,
	}, true
}

var _ ports.LinkageStore = (*Store)(nil)
