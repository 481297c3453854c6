package scrape

import (
	"context"
	"fmt"
	"time"

	"github.com/idkny/sale-sofia/internal/core/constants"
	"github.com/idkny/sale-sofia/internal/core/domain"
	"github.com/idkny/sale-sofia/internal/core/ports"
	"github.com/idkny/sale-sofia/internal/linkage"
)

const upsertBatchSize = 100

// AggregateSite is the chord callback (spec.md §4.5.4): flattens every
// ScrapeChunk's per-URL results, computes each survivor's cross-source
// fingerprint and records it in the linkage table, upserts records to the
// sink in batches, and writes final job status.
func (p *Pipeline) AggregateSite(ctx context.Context, jobID, site string, results []ports.GroupResult) (any, error) {
	var records []domain.ListingRecord
	var errorCount int

	for _, r := range results {
		if r.Err != nil {
			p.logger.Warn("scrape: chunk failed", "job_id", jobID, "site", site, "err", r.Err)
			errorCount++
			continue
		}
		urlResults, ok := r.Value.([]URLResult)
		if !ok {
			continue
		}
		for _, ur := range urlResults {
			switch {
			case ur.Status == statusError:
				errorCount++
			case ur.Record != nil:
				record := *ur.Record
				record.Source = site
				record.LastSeen = time.Now()
				if record.FirstSeen.IsZero() {
					record.FirstSeen = record.LastSeen
				}
				records = append(records, record)
			}
		}
	}

	entries := make([]domain.LinkageEntry, 0, len(records))
	for _, record := range records {
		entry := domain.LinkageEntry{
			Fingerprint: linkage.FingerprintRecord(record),
			RecordID:    record.URL,
			Source:      record.Source,
			SourceURL:   record.URL,
			Price:       record.Price,
			FirstSeen:   record.FirstSeen,
			LastSeen:    record.LastSeen,
		}
		if _, err := p.linkage.Add(ctx, entry); err != nil {
			p.logger.Warn("scrape: linkage add failed", "url", record.URL, "err", err)
		}
		entries = append(entries, entry)
	}

	if err := p.upsertBatched(ctx, records, entries); err != nil {
		p.markJobFailed(ctx, jobID, err)
		return nil, fmt.Errorf("scrape: aggregate: %w", err)
	}

	if err := p.markJobComplete(ctx, jobID, len(records), errorCount); err != nil {
		return nil, err
	}

	p.logger.InfoJobStatus("scrape complete", jobID, domain.JobComplete, "site", site, "result_count", len(records), "error_count", errorCount)
	return len(records), nil
}

func (p *Pipeline) upsertBatched(ctx context.Context, records []domain.ListingRecord, entries []domain.LinkageEntry) error {
	for i := 0; i < len(records); i += upsertBatchSize {
		end := i + upsertBatchSize
		if end > len(records) {
			end = len(records)
		}
		if err := p.sink.UpsertMany(ctx, records[i:end]); err != nil {
			return fmt.Errorf("upsert records: %w", err)
		}
	}
	for i := 0; i < len(entries); i += upsertBatchSize {
		end := i + upsertBatchSize
		if end > len(entries) {
			end = len(entries)
		}
		if err := p.sink.AddSourcesMany(ctx, entries[i:end]); err != nil {
			return fmt.Errorf("add sources: %w", err)
		}
	}
	return nil
}

func (p *Pipeline) markJobComplete(ctx context.Context, jobID string, resultCount, errorCount int) error {
	fields := map[string]string{
		"status":       string(domain.JobComplete),
		"completed_at": time.Now().UTC().Format(time.RFC3339),
		"result_count": fmt.Sprintf("%d", resultCount),
		"error_count":  fmt.Sprintf("%d", errorCount),
	}
	for field, value := range fields {
		if err := p.broker.HSet(ctx, siteJobKey(jobID, "state"), field, []byte(value), constants.ScrapeJobTTL); err != nil {
			return fmt.Errorf("scrape: mark complete: %w", err)
		}
	}
	return p.broker.Publish(ctx, siteJobKey(jobID, "events"), []byte(domain.JobComplete))
}

func (p *Pipeline) markJobFailed(ctx context.Context, jobID string, cause error) {
	_ = p.broker.HSet(ctx, siteJobKey(jobID, "state"), "status", []byte(domain.JobFailed), constants.ScrapeJobTTL)
	_ = p.broker.Publish(ctx, siteJobKey(jobID, "events"), []byte(domain.JobFailed))
	p.logger.Warn("scrape: job failed", "job_id", jobID, "err", cause)
}
