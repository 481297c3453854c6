package refresh

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	livenessTimeout = 5 * time.Second
	judgeTimeout    = 8 * time.Second
	echoTimeout     = 8 * time.Second
)

// privacyLeakHeaders are the headers spec.md §4.2.3 checks for leaking the
// real client's presence behind a proxy.
var privacyLeakHeaders = []string{
	"Via", "X-Forwarded-For", "X-Real-Ip", "Forwarded", "Client-Ip", "Proxy-Connection",
}

// echoPayload covers the common JSON shapes IP-echo/judge services return
// (e.g. httpbin's "origin", ipify's "ip").
type echoPayload struct {
	IP     string `json:"ip"`
	Origin string `json:"origin"`
}

func doGET(ctx context.Context, client *http.Client, target string) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, nil, err
	}
	return body, resp.Header, nil
}

// fetchIP requests target and extracts the IP it reports.
func fetchIP(ctx context.Context, client *http.Client, target string) (string, error) {
	body, headers, err := doGET(ctx, client, target)
	if err != nil {
		return "", err
	}
	return extractExitIP(body, headers), nil
}

// extractExitIP pulls an IP out of a judge/echo response, either a bare
// body ("1.2.3.4"), a JSON object with an "ip"/"origin" field, or a
// leaked X-Forwarded-For header as a last resort.
func extractExitIP(body []byte, headers http.Header) string {
	trimmed := strings.TrimSpace(string(body))
	if ip := net.ParseIP(trimmed); ip != nil {
		return trimmed
	}

	var payload echoPayload
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.IP != "" {
			return payload.IP
		}
		if payload.Origin != "" {
			return strings.TrimSpace(strings.Split(payload.Origin, ",")[0])
		}
	}

	if headers != nil {
		if fwd := headers.Get("X-Forwarded-For"); fwd != "" {
			return strings.TrimSpace(strings.Split(fwd, ",")[0])
		}
	}
	return ""
}

func headerLeaksIP(headers http.Header, ip string) bool {
	if ip == "" {
		return false
	}
	for _, name := range privacyLeakHeaders {
		if strings.Contains(headers.Get(name), ip) {
			return true
		}
	}
	return false
}

func leaksPrivacyHeader(headers http.Header) bool {
	for _, name := range privacyLeakHeaders {
		if headers.Get(name) != "" {
			return true
		}
	}
	return false
}

// localEgressIP detects the process's real outbound IP once (or returns an
// operator-configured override) and caches it for the lifetime of the pipeline.
func (p *Pipeline) localEgressIP(ctx context.Context) string {
	p.egressOnce.Do(func() {
		if p.cachedEgressIP != "" {
			return
		}
		for _, target := range p.ipEchoURLs {
			reqCtx, cancel := context.WithTimeout(ctx, echoTimeout)
			ip, err := fetchIP(reqCtx, p.directClient, target)
			cancel()
			if err == nil && ip != "" {
				p.cachedEgressIP = ip
				return
			}
		}
		p.logger.Warn("refresh: could not determine local egress ip from any echo service")
	})
	return p.cachedEgressIP
}

// livenessProbeURL picks a target for the liveness check; any configured
// judge or echo URL serves equally well since only reachability matters.
func (p *Pipeline) livenessProbeURL() string {
	if len(p.judgeURLs) > 0 {
		return p.judgeURLs[0]
	}
	if len(p.ipEchoURLs) > 0 {
		return p.ipEchoURLs[0]
	}
	return ""
}
