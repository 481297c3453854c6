package refresh

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/idkny/sale-sofia/internal/core/constants"
	"github.com/idkny/sale-sofia/internal/core/domain"
	"github.com/idkny/sale-sofia/internal/core/ports"
)

// Aggregate is the chord callback (spec.md §4.2.4): it flattens every
// CheckChunk result, drops any Transparent proxy that slipped through as
// defense in depth, merges the survivors into the existing published pool
// under "latest wins per identity", sorts ascending by timeout and
// atomically republishes the file.
func (p *Pipeline) Aggregate(ctx context.Context, jobID string, results []ports.GroupResult) (any, error) {
	var validated []domain.Proxy
	for _, r := range results {
		if r.Err != nil {
			p.logger.Warn("refresh: chunk failed", "job_id", jobID, "err", r.Err)
			continue
		}
		chunk, ok := r.Value.([]domain.Proxy)
		if !ok {
			continue
		}
		validated = append(validated, chunk...)
	}

	published := make([]domain.Proxy, 0, len(validated))
	for _, proxy := range validated {
		if proxy.Anonymity == domain.AnonymityTransparent {
			continue
		}
		published = append(published, proxy)
	}

	existing, err := p.readPublished()
	if err != nil {
		p.markJobFailed(ctx, jobID, err)
		return nil, fmt.Errorf("refresh: aggregate: read published pool: %w", err)
	}

	merged := mergeLatestWins(existing, published)
	sort.Slice(merged, func(i, j int) bool { return merged[i].TimeoutSeconds < merged[j].TimeoutSeconds })

	if err := p.publish(merged); err != nil {
		p.markJobFailed(ctx, jobID, err)
		return nil, fmt.Errorf("refresh: aggregate: publish: %w", err)
	}

	if err := p.markJobComplete(ctx, jobID, len(merged)); err != nil {
		return nil, err
	}

	p.logger.InfoJobStatus("refresh complete", jobID, domain.JobComplete, "result_count", len(merged))
	return len(merged), nil
}

func mergeLatestWins(existing, fresh []domain.Proxy) []domain.Proxy {
	byKey := make(map[string]domain.Proxy, len(existing)+len(fresh))
	for _, proxy := range existing {
		byKey[proxy.Identity()] = proxy
	}
	for _, proxy := range fresh {
		byKey[proxy.Identity()] = proxy
	}
	merged := make([]domain.Proxy, 0, len(byKey))
	for _, proxy := range byKey {
		merged = append(merged, proxy)
	}
	return merged
}

func (p *Pipeline) readPublished() ([]domain.Proxy, error) {
	raw, err := os.ReadFile(p.publishedFile)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []domain.Proxy
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// publish writes the JSON file and a plain-text mirror via write-tmp-then-rename.
func (p *Pipeline) publish(proxies []domain.Proxy) error {
	raw, err := json.MarshalIndent(proxies, "", "  ")
	if err != nil {
		return err
	}
	if err := atomicWrite(p.publishedFile, raw); err != nil {
		return err
	}

	var lines []byte
	for _, proxy := range proxies {
		lines = append(lines, []byte(proxy.URLString()+"\n")...)
	}
	return atomicWrite(textMirrorPath(p.publishedFile), lines)
}

func textMirrorPath(jsonPath string) string {
	ext := filepath.Ext(jsonPath)
	return jsonPath[:len(jsonPath)-len(ext)] + ".txt"
}

func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (p *Pipeline) markJobComplete(ctx context.Context, jobID string, resultCount int) error {
	fields := map[string]string{
		"status":       string(domain.JobComplete),
		"completed_at": time.Now().UTC().Format(time.RFC3339),
		"result_count": fmt.Sprintf("%d", resultCount),
	}
	for field, value := range fields {
		if err := p.broker.HSet(ctx, jobKey(jobID, "state"), field, []byte(value), constants.RefreshJobTTL); err != nil {
			return fmt.Errorf("refresh: mark complete: %w", err)
		}
	}
	return p.broker.Publish(ctx, jobKey(jobID, "events"), []byte(domain.JobComplete))
}

func (p *Pipeline) markJobFailed(ctx context.Context, jobID string, cause error) {
	_ = p.broker.HSet(ctx, jobKey(jobID, "state"), "status", []byte(domain.JobFailed), constants.RefreshJobTTL)
	_ = p.broker.Publish(ctx, jobKey(jobID, "events"), []byte(domain.JobFailed))
	p.logger.Warn("refresh: job failed", "job_id", jobID, "err", cause)
}
