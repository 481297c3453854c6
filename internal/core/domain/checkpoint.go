package domain

import "time"

// Checkpoint is the persisted state of a named scraping session.
type Checkpoint struct {
	UpdatedAt time.Time
	Scraped   map[string]struct{}
	Pending   []string
}

// NewCheckpoint returns an empty checkpoint ready for accumulation.
func NewCheckpoint() Checkpoint {
	return Checkpoint{Scraped: make(map[string]struct{})}
}
