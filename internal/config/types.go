package config

import "time"

// Config holds all configuration for the orchestrator process.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Broker     BrokerConfig     `yaml:"broker"`
	TaskRunner TaskRunnerConfig `yaml:"task_runner"`
	Proxy      ProxyConfig      `yaml:"proxy"`
	Refresh    RefreshConfig    `yaml:"refresh"`
	Resilience ResilienceConfig `yaml:"resilience"`
	Sites      []SiteConfig     `yaml:"sites"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Theme      string `yaml:"theme"`
	LogDir     string `yaml:"log_dir"`
	FileOutput bool   `yaml:"file_output"`
	PrettyLogs bool   `yaml:"pretty_logs"`
	MaxSize    int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age_days"`
}

// BrokerConfig points at the broker collaborator (§2, §6).
type BrokerConfig struct {
	Address string        `yaml:"address"`
	KeyTTL  time.Duration `yaml:"key_ttl"`
}

// TaskRunnerConfig sizes the worker pool (§5).
type TaskRunnerConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// ProxyConfig tunes the runtime proxy pool and orchestrator's proxy gate.
type ProxyConfig struct {
	PublishedFile          string        `yaml:"published_file"`
	MinProxiesForScraping  int           `yaml:"min_proxies_for_scraping"`
	MaxConsecutiveFailures int           `yaml:"max_consecutive_failures"`
	EnsureTimeout          time.Duration `yaml:"ensure_timeout"`
	LocalEgressIP          string        `yaml:"local_egress_ip"`
}

// RefreshConfig tunes the proxy refresh pipeline (§4.2).
type RefreshConfig struct {
	ScraperCommand string        `yaml:"scraper_command"`
	ChunkSize      int           `yaml:"chunk_size"`
	ScrapeTimeout  time.Duration `yaml:"scrape_timeout"`
	CheckSoftLimit time.Duration `yaml:"check_soft_limit"`
	CheckHardLimit time.Duration `yaml:"check_hard_limit"`
	JudgeURLs      []string      `yaml:"judge_urls"`
	IPEchoURLs     []string      `yaml:"ip_echo_urls"`
}

// ResilienceConfig tunes the circuit breaker, rate limiter and retry
// policy defaults, overridable per-domain (§4.4).
type ResilienceConfig struct {
	CircuitFailMax      int            `yaml:"circuit_fail_max"`
	CircuitResetTimeout time.Duration  `yaml:"circuit_reset_timeout"`
	CircuitHalfOpenMax  int            `yaml:"circuit_half_open_max"`
	DefaultRatePerMin   int            `yaml:"default_rate_per_minute"`
	DomainRatesPerMin   map[string]int `yaml:"domain_rates_per_minute"`
	RetryMaxAttempts    int            `yaml:"retry_max_attempts"`
	RetryBaseDelay      time.Duration  `yaml:"retry_base_delay"`
	RetryMaxDelay       time.Duration  `yaml:"retry_max_delay"`
	RetryJitterFactor   float64        `yaml:"retry_jitter_factor"`
	CheckpointDir       string         `yaml:"checkpoint_dir"`
}

// SiteConfig is one scrape target, referencing a pagination/extractor
// implementation registered in the site registry by Name.
type SiteConfig struct {
	Name      string   `yaml:"name"`
	FirstURL  string   `yaml:"first_url"`
	ChunkSize int      `yaml:"chunk_size"`
	SeedURLs  []string `yaml:"seed_urls"`
}
