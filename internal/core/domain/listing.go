package domain

import "time"

// ListingRecord is produced by the external, per-site extractor. The core
// treats its payload as opaque except for URL (sink primary key) and the
// fields needed to compute a Fingerprint (see internal/linkage).
type ListingRecord struct {
	URL          string
	Source       string
	Neighborhood string
	BuildingType string
	Price        float64
	SquareMeters float64
	Rooms        int
	Floor        int
	FirstSeen    time.Time
	LastSeen     time.Time
}

// LinkageEntry is one (fingerprint, source) row in the cross-source
// linkage table, unique on (Fingerprint, Source).
type LinkageEntry struct {
	FirstSeen   time.Time
	LastSeen    time.Time
	Fingerprint string
	RecordID    string
	Source      string
	SourceURL   string
	Price       float64
}

// DiscrepancyEvent is emitted when two or more linkage entries share a
// fingerprint with prices diverging by at least the configured threshold.
type DiscrepancyEvent struct {
	Fingerprint     string
	MinPrice        float64
	MaxPrice        float64
	DiscrepancyPct  float64
	Sources         []string
}
