// Package constants centralises the tunable defaults named throughout
// spec.md so they are changed in one place.
package constants

import "time"

// Proxy pool defaults (§4.3, §3).
const (
	MaxConsecutiveProxyFailures = 3
	MinProxiesForScraping       = 10
)

// Refresh pipeline defaults (§4.2).
const (
	RefreshChunkSize      = 100
	ProxyRefreshTimeout   = 50 * time.Minute
	CheckChunkSoftLimit   = 13 * time.Minute
	CheckChunkHardLimit   = 15 * time.Minute
	RefreshJobTTL         = time.Hour
	RefreshPollInterval   = 15 * time.Second
)

// Site scraping defaults (§4.5).
const (
	ScrapeChunkSize     = 25
	ScrapeChunkSoft     = 10 * time.Minute
	ScrapeChunkHard     = 12 * time.Minute
	ScrapeJobTTL        = time.Hour
	ConcurrentChunkCap  = 5
)

// Circuit breaker defaults (§4.4.1).
const (
	CircuitFailMax      = 5
	CircuitResetTimeout = 60 * time.Second
	CircuitHalfOpenMax  = 2
)

// Retry defaults (§4.4.3).
const (
	RetryMaxAttempts = 5
	RetryBaseDelay   = 2 * time.Second
	RetryMaxDelay    = 60 * time.Second
	RetryJitter      = 0.5
)

// Soft-block detector defaults (§4.4.5).
const (
	SoftBlockMinBodyBytes = 1000
)

// Checkpoint defaults (§4.4.6).
const (
	CheckpointBatchSize = 10
)

// Orchestrator health-check timeouts (§4.1).
const (
	BrokerPingTimeout       = 2 * time.Second
	TaskRuntimePingTimeout  = 5 * time.Second
	RotatorDialTimeout      = 3 * time.Second
	MaxConsecutiveHealthFailures = 3
)

// Worker concurrency default (§5).
const DefaultWorkerConcurrency = 8

// Default broker key TTL (§6).
const DefaultBrokerKeyTTL = time.Hour
