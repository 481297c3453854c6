package domain

import "time"

// JobStatus is shared between RefreshJob and ScrapeJob. Status only moves
// forward: DISPATCHED, optionally PROCESSING, then COMPLETE or FAILED.
// Neither the refresh nor the scrape pipeline writes PROCESSING; their
// jobs go from DISPATCHED straight to COMPLETE or FAILED.
type JobStatus string

const (
	JobDispatched JobStatus = "DISPATCHED"
	JobProcessing JobStatus = "PROCESSING"
	JobComplete   JobStatus = "COMPLETE"
	JobFailed     JobStatus = "FAILED"
)

func (s JobStatus) String() string { return string(s) }

// CanTransitionTo enforces the monotonic-progress invariant on job status.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobDispatched:
		return next == JobProcessing || next == JobComplete || next == JobFailed
	case JobProcessing:
		return next == JobComplete || next == JobFailed
	default:
		return false
	}
}

// RefreshJob tracks one proxy_refresh:{job_id}:* run.
type RefreshJob struct {
	StartedAt      time.Time
	CompletedAt    time.Time
	JobID          string
	Status         JobStatus
	TotalChunks    int
	CompletedChunks int
	ResultCount    int
}

// ScrapeJob tracks one scraping:{job_id}:* run.
type ScrapeJob struct {
	StartedAt       time.Time
	CompletedAt     time.Time
	JobID           string
	Site            string
	Status          JobStatus
	TotalChunks     int
	CompletedChunks int
	TotalURLs       int
	ResultCount     int
	ErrorCount      int
}

// Progress is the snapshot returned by Orchestrator.Progress.
type Progress struct {
	Status    JobStatus
	Total     int
	Completed int
}

// Pct returns completion percentage, 0 when Total is 0.
func (p Progress) Pct() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Completed) / float64(p.Total) * 100
}
