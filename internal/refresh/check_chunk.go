package refresh

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/idkny/sale-sofia/internal/core/constants"
	"github.com/idkny/sale-sofia/internal/core/domain"
)

// CheckChunk is the chord's worker task (spec.md §4.2.3): liveness, then
// anonymity classification, then subnet filtering, then a quality probe,
// in order, short-circuiting on an empty intermediate result. A single
// candidate's failure at any stage only drops it; it never fails the chunk.
func (p *Pipeline) CheckChunk(ctx context.Context, jobID string, chunk []domain.Proxy) ([]domain.Proxy, error) {
	egressIP := p.localEgressIP(ctx)

	live := p.filterLive(ctx, chunk)
	if len(live) == 0 {
		return p.finishChunk(ctx, jobID, nil)
	}

	classified := p.classifyAnonymity(ctx, live, egressIP)
	if len(classified) == 0 {
		return p.finishChunk(ctx, jobID, nil)
	}

	subnetFiltered := make([]domain.Proxy, 0, len(classified))
	for _, proxy := range classified {
		if domain.SameIPv4Slash24(proxy.ExitIP, egressIP) {
			continue
		}
		subnetFiltered = append(subnetFiltered, proxy)
	}
	if len(subnetFiltered) == 0 {
		return p.finishChunk(ctx, jobID, nil)
	}

	validated := p.qualityProbe(ctx, subnetFiltered, egressIP)
	return p.finishChunk(ctx, jobID, validated)
}

func (p *Pipeline) finishChunk(ctx context.Context, jobID string, validated []domain.Proxy) ([]domain.Proxy, error) {
	if _, err := p.broker.Incr(ctx, jobKey(jobID, "completed_chunks"), 1, constants.RefreshJobTTL); err != nil {
		p.logger.Warn("refresh: failed to record chunk progress", "job_id", jobID, "err", err)
	}
	if p.stats != nil {
		p.stats.IncrCounter("refresh.chunk.completed", 1)
		p.stats.IncrCounter("refresh.proxy.validated", int64(len(validated)))
	}
	return validated, nil
}

// filterLive probes each candidate with a short-timeout request, dropping
// anything unreachable.
func (p *Pipeline) filterLive(ctx context.Context, chunk []domain.Proxy) []domain.Proxy {
	target := p.livenessProbeURL()
	if target == "" {
		return chunk
	}

	live := make([]domain.Proxy, 0, len(chunk))
	for _, proxy := range chunk {
		client := p.clientFor(proxy, livenessTimeout)
		reqCtx, cancel := context.WithTimeout(ctx, livenessTimeout)
		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, http.NoBody)
		if err != nil {
			cancel()
			continue
		}
		resp, err := client.Do(req)
		if err != nil {
			cancel()
			continue
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		cancel()
		live = append(live, proxy)
	}
	return live
}

// classifyAnonymity issues a request through each candidate to a judge URL
// (fixed fallback order) and classifies it Transparent/Anonymous/Elite;
// Transparent is dropped here and Unknown (every judge failed) is dropped too.
func (p *Pipeline) classifyAnonymity(ctx context.Context, proxies []domain.Proxy, egressIP string) []domain.Proxy {
	out := make([]domain.Proxy, 0, len(proxies))
	for _, proxy := range proxies {
		anonymity, exitIP, ok := p.probeJudges(ctx, proxy, egressIP)
		if !ok || anonymity == domain.AnonymityTransparent {
			continue
		}
		proxy.Anonymity = anonymity
		proxy.ExitIP = exitIP
		proxy.VerifiedAt = time.Now()
		out = append(out, proxy)
	}
	return out
}

func (p *Pipeline) probeJudges(ctx context.Context, proxy domain.Proxy, egressIP string) (domain.Anonymity, string, bool) {
	client := p.clientFor(proxy, judgeTimeout)
	for _, judgeURL := range p.judgeURLs {
		reqCtx, cancel := context.WithTimeout(ctx, judgeTimeout)
		body, headers, err := doGET(reqCtx, client, judgeURL)
		cancel()
		if err != nil {
			continue
		}

		exitIP := extractExitIP(body, headers)
		if (egressIP != "" && strings.Contains(string(body), egressIP)) || headerLeaksIP(headers, egressIP) {
			return domain.AnonymityTransparent, egressIP, true
		}
		if leaksPrivacyHeader(headers) {
			return domain.AnonymityAnonymous, exitIP, true
		}
		return domain.AnonymityElite, exitIP, true
	}
	return domain.AnonymityUnknown, "", false
}

// qualityProbe contacts ordered IP-echo services through each candidate,
// accepting the first that returns a well-formed IP outside the egress /24.
func (p *Pipeline) qualityProbe(ctx context.Context, proxies []domain.Proxy, egressIP string) []domain.Proxy {
	out := make([]domain.Proxy, 0, len(proxies))
	for _, proxy := range proxies {
		client := p.clientFor(proxy, echoTimeout)
		start := time.Now()
		ip, ok := p.firstGoodEcho(ctx, client, egressIP)
		if !ok {
			continue
		}
		proxy.ExitIP = ip
		proxy.IPCheckPassed = true
		proxy.TimeoutSeconds = time.Since(start).Seconds()
		out = append(out, proxy)
	}
	return out
}

func (p *Pipeline) firstGoodEcho(ctx context.Context, client *http.Client, egressIP string) (string, bool) {
	for _, echoURL := range p.ipEchoURLs {
		reqCtx, cancel := context.WithTimeout(ctx, echoTimeout)
		ip, err := fetchIP(reqCtx, client, echoURL)
		cancel()
		if err != nil || ip == "" {
			continue
		}
		if ip == egressIP || domain.SameIPv4Slash24(ip, egressIP) {
			continue
		}
		return ip, true
	}
	return "", false
}

func (p *Pipeline) clientFor(proxy domain.Proxy, timeout time.Duration) *http.Client {
	proxyURL, err := url.Parse(proxy.URLString())
	if err != nil {
		proxyURL = nil
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:       http.ProxyURL(proxyURL),
			DialContext: (&net.Dialer{Timeout: timeout}).DialContext,
		},
	}
}
