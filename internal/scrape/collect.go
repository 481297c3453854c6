package scrape

import (
	"context"
	"fmt"

	"github.com/idkny/sale-sofia/internal/core/ports"
	"github.com/idkny/sale-sofia/internal/resilience"
)

// Collect is the chain's first stage (spec.md §4.5.1): it walks a site's
// pagination contract to produce the full list of listing URLs, each page
// fetch going through the resilience layer and the runtime proxy pool
// exactly like any other fetch. When seedURLs is supplied directly
// (start_site_scrape(site, urls)), the pagination walk is skipped entirely.
func (p *Pipeline) Collect(ctx context.Context, paginator ports.SitePaginator, seedURLs []string) (any, error) {
	if len(seedURLs) > 0 {
		return append([]string{}, seedURLs...), nil
	}
	if paginator == nil {
		return nil, fmt.Errorf("scrape: collect: no seed urls and no paginator configured")
	}

	var urls []string
	target := paginator.FirstSearchURL()
	for page := 1; target != ""; page++ {
		html, err := p.fetchPage(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("scrape: collect: page %d: %w", page, err)
		}

		pageURLs, err := paginator.ParseResults(html)
		if err != nil {
			return nil, fmt.Errorf("scrape: collect: parse page %d: %w", page, err)
		}
		urls = append(urls, pageURLs...)

		if paginator.IsLastPage(html, page) {
			break
		}
		target, err = paginator.NextURL(html, page)
		if err != nil {
			return nil, fmt.Errorf("scrape: collect: next url after page %d: %w", page, err)
		}
	}

	p.logger.Info("collected listing urls", "count", len(urls))
	return urls, nil
}

// fetchPage fetches one search-results page, borrowing a proxy from the
// pool and running it through the soft-block detector like any other
// fetch in the pipeline, but without the retry/circuit-breaker machinery
// ScrapeChunk applies to detail pages — a failed search page aborts
// Collect entirely rather than being skipped, since a missed search page
// means missed listing URLs with no later chance to recover them.
func (p *Pipeline) fetchPage(ctx context.Context, target string) ([]byte, error) {
	proxy, err := p.pool.Select()
	if err != nil {
		return nil, fmt.Errorf("no proxy available: %w", err)
	}

	result, err := p.fetcher.Fetch(ctx, target, proxy, p.cfg.FetchTimeout)
	if err != nil {
		p.pool.Record(proxy, false)
		return nil, err
	}
	p.pool.Record(proxy, true)

	if kind, blocked := resilience.DetectSoftBlock(result.Body, p.cfg.MinBodyBytes); blocked {
		return nil, fmt.Errorf("soft block detected: %s", kind)
	}
	return result.Body, nil
}
