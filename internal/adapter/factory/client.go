// Package factory builds http.Transports for the fetcher adapters from one
// shared, idle-capped base configuration. Every transport handed out is a
// separate clone with its own idle-connection pool; connections are not
// shared between clones.
package factory

import (
	"net/http"
	"time"
)

const (
	FetchHandshakeTimeout = 10 * time.Second
	FetchIdleTimeout      = 30 * time.Second
)

// SharedClientFactory hands out http.Transport values cloned from one
// base configuration. Transport.Clone keeps the base's idle-connection
// tuning while letting each caller set its own per-proxy Proxy func
// without racing concurrent fetches that share the factory.
type SharedClientFactory struct {
	base *http.Transport
}

func NewSharedClientFactory() *SharedClientFactory {
	return &SharedClientFactory{
		base: &http.Transport{
			MaxIdleConns:        50,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     FetchIdleTimeout,
			TLSHandshakeTimeout: FetchHandshakeTimeout,
		},
	}
}

// NewTransport returns a clone of the shared base transport, safe for the
// caller to mutate (e.g. set Proxy) without affecting other clones.
func (f *SharedClientFactory) NewTransport() *http.Transport {
	return f.base.Clone()
}
