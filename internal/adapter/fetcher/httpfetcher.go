// Package fetcher ships the concrete ports.Fetcher implementations.
// HTTPFetcher covers search pages and most listing pages over plain
// HTTP(S) proxies, on a transport cloned per call from
// internal/adapter/factory's shared base; StealthFetcher is a documented stub for the
// pages that need a real browser.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/idkny/sale-sofia/internal/adapter/factory"
	"github.com/idkny/sale-sofia/internal/core/domain"
	"github.com/idkny/sale-sofia/internal/core/ports"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// HTTPFetcher issues one request per call through a fresh *http.Client
// configured for proxy.Identity(), on a Transport freshly cloned from
// factory.SharedClientFactory's idle-capped base. Each call's clone has
// its own idle-connection pool, so no connection is reused across calls.
type HTTPFetcher struct {
	clients   *factory.SharedClientFactory
	userAgent string
}

func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		clients:   factory.NewSharedClientFactory(),
		userAgent: defaultUserAgent,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, target string, proxy domain.Proxy, timeout time.Duration) (ports.FetchResult, error) {
	transport := f.clients.NewTransport()

	switch proxy.Protocol {
	case domain.ProtocolHTTP, domain.ProtocolHTTPS:
		proxyURL, err := url.Parse(fmt.Sprintf("%s://%s:%s", proxy.Protocol, proxy.Host, proxy.Port))
		if err != nil {
			return ports.FetchResult{}, fmt.Errorf("fetcher: bad proxy url %s: %w", proxy.Identity(), err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	default:
		return ports.FetchResult{}, fmt.Errorf("fetcher: unsupported proxy protocol %q (socks requires a dependency not in this build)", proxy.Protocol)
	}

	client := &http.Client{Transport: transport, Timeout: timeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return ports.FetchResult{}, fmt.Errorf("fetcher: build request for %s: %w", target, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "bg-BG,bg;q=0.9,en;q=0.8")

	start := time.Now()
	resp, err := client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return ports.FetchResult{StatusCode: 0, Latency: latency}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return ports.FetchResult{StatusCode: resp.StatusCode, Latency: latency}, fmt.Errorf("fetcher: read body from %s: %w", target, err)
	}

	return ports.FetchResult{
		Body:       body,
		Headers:    resp.Header,
		StatusCode: resp.StatusCode,
		Latency:    latency,
	}, nil
}

// StealthFetcher is a placeholder for pages that trip a JS challenge or
// fingerprinting check an ordinary HTTP client can't pass. Wiring one up
// needs an external headless-browser binary (e.g. a CDP-driven Chromium)
// that isn't part of this build; Fetch always fails until one is wired in.
type StealthFetcher struct{}

func NewStealthFetcher() *StealthFetcher { return &StealthFetcher{} }

func (f *StealthFetcher) Fetch(ctx context.Context, target string, proxy domain.Proxy, timeout time.Duration) (ports.FetchResult, error) {
	return ports.FetchResult{}, fmt.Errorf("fetcher: stealth fetch not available for %s: no headless browser backend configured", target)
}
