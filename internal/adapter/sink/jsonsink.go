// Package sink ships a concrete ports.Sink: a JSON-file-backed listing
// store. Loading follows internal/proxypool's read-whole-file-into-memory
// idiom; saving follows internal/resilience/checkpoint's write-to-temp,
// rename-over-target idiom, rather than wiring a real database driver the
// distilled spec never asked for.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/idkny/sale-sofia/internal/core/domain"
	"github.com/idkny/sale-sofia/internal/logger"
)

// JSONSink persists listings and linkage entries into one JSON document
// per call to Flush-on-write, keyed by URL (listings) and by
// Fingerprint+Source (linkage entries).
type JSONSink struct {
	mu       sync.Mutex
	path     string
	logger   *logger.StyledLogger
	listings map[string]domain.ListingRecord
	sources  map[string]domain.LinkageEntry
}

type document struct {
	Listings []domain.ListingRecord `json:"listings"`
	Sources  []domain.LinkageEntry  `json:"sources"`
}

func NewJSONSink(path string, log *logger.StyledLogger) (*JSONSink, error) {
	s := &JSONSink{
		path:     path,
		logger:   log,
		listings: make(map[string]domain.ListingRecord),
		sources:  make(map[string]domain.LinkageEntry),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *JSONSink) load() error {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("sink: read %s: %w", s.path, err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("sink: decode %s: %w", s.path, err)
	}
	for _, r := range doc.Listings {
		s.listings[r.URL] = r
	}
	for _, e := range doc.Sources {
		s.sources[sourceKey(e.Fingerprint, e.Source)] = e
	}
	return nil
}

func sourceKey(fingerprint, source string) string { return fingerprint + "|" + source }

func (s *JSONSink) Upsert(ctx context.Context, record domain.ListingRecord) error {
	return s.UpsertMany(ctx, []domain.ListingRecord{record})
}

func (s *JSONSink) UpsertMany(ctx context.Context, records []domain.ListingRecord) error {
	s.mu.Lock()
	for _, r := range records {
		s.listings[r.URL] = r
	}
	s.mu.Unlock()
	return s.persist()
}

func (s *JSONSink) AddSource(ctx context.Context, entry domain.LinkageEntry) error {
	return s.AddSourcesMany(ctx, []domain.LinkageEntry{entry})
}

func (s *JSONSink) AddSourcesMany(ctx context.Context, entries []domain.LinkageEntry) error {
	s.mu.Lock()
	for _, e := range entries {
		s.sources[sourceKey(e.Fingerprint, e.Source)] = e
	}
	s.mu.Unlock()
	return s.persist()
}

// persist writes the whole document to a temp file and renames it over
// path, the same atomic-write pattern internal/proxypool relies on for
// its published proxy file.
func (s *JSONSink) persist() error {
	s.mu.Lock()
	doc := document{
		Listings: make([]domain.ListingRecord, 0, len(s.listings)),
		Sources:  make([]domain.LinkageEntry, 0, len(s.sources)),
	}
	for _, r := range s.listings {
		doc.Listings = append(doc.Listings, r)
	}
	for _, e := range s.sources {
		doc.Sources = append(doc.Sources, e)
	}
	s.mu.Unlock()

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("sink: encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("sink: mkdir %s: %w", dir, err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("sink: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("sink: rename %s: %w", tmp, err)
	}
	return nil
}
