package domain

import "errors"

// ErrPoolEmpty is returned by ports.ProxyPool.Select when no proxies are
// currently present.
var ErrPoolEmpty = errors.New("proxy pool is empty")

// ErrCircuitOpen is returned when a request is skipped because the
// per-site circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker open")
