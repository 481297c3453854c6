package domain

import (
	"fmt"
	"time"
)

// Protocol identifies the transport a proxy speaks.
type Protocol string

const (
	ProtocolHTTP   Protocol = "http"
	ProtocolHTTPS  Protocol = "https"
	ProtocolSOCKS4 Protocol = "socks4"
	ProtocolSOCKS5 Protocol = "socks5"
)

// Anonymity classifies how much a proxy leaks about the real client.
type Anonymity string

const (
	AnonymityTransparent Anonymity = "Transparent"
	AnonymityAnonymous   Anonymity = "Anonymous"
	AnonymityElite       Anonymity = "Elite"
	AnonymityUnknown     Anonymity = "Unknown"
)

// Proxy is a validated (or candidate) proxy entry. Identity is Host:Port.
type Proxy struct {
	VerifiedAt     time.Time `json:"verified_at"`
	Host           string    `json:"host"`
	Port           string    `json:"port"`
	ExitIP         string    `json:"exit_ip"`
	Protocol       Protocol  `json:"protocol"`
	Anonymity      Anonymity `json:"anonymity"`
	TimeoutSeconds float64   `json:"timeout_seconds"`
	IPCheckPassed  bool      `json:"ip_check_passed"`
}

// Identity returns the host:port key used throughout the pool and linkage tables.
func (p *Proxy) Identity() string {
	return fmt.Sprintf("%s:%s", p.Host, p.Port)
}

// URLString renders the proxy as a dial target, e.g. "http://1.2.3.4:8080".
func (p *Proxy) URLString() string {
	return fmt.Sprintf("%s://%s", p.Protocol, p.Identity())
}

// IsPublishable reports whether the proxy satisfies the transparency-safety
// invariant: never Transparent, and never in the same /24 as localEgressIP.
func (p *Proxy) IsPublishable(localEgressIP string) bool {
	if p.Anonymity == AnonymityTransparent {
		return false
	}
	if SameIPv4Slash24(p.ExitIP, localEgressIP) {
		return false
	}
	return true
}

// ProxyScore tracks per-proxy runtime health in the pool's failure map.
type ProxyScore struct {
	LastUsed time.Time
	Failures int
}
