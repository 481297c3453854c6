package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/idkny/sale-sofia/internal/core/constants"
)

const (
	// DefaultFileWriteDelay absorbs editors that fire fsnotify before the
	// write is actually flushed to disk.
	DefaultFileWriteDelay = 150 * time.Millisecond
	reloadDebounce        = 500 * time.Millisecond
)

var (
	lastReload  time.Time
	reloadMutex sync.Mutex
)

// DefaultConfig returns a configuration with sensible defaults, all of
// which can be overridden by config.yaml or SCOUT_* env vars.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:      "info",
			Theme:      "dark",
			LogDir:     "./logs",
			FileOutput: false,
			PrettyLogs: true,
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
		},
		Broker: BrokerConfig{
			Address: "memory://local",
			KeyTTL:  constants.DefaultBrokerKeyTTL,
		},
		TaskRunner: TaskRunnerConfig{
			Concurrency: constants.DefaultWorkerConcurrency,
		},
		Proxy: ProxyConfig{
			PublishedFile:          "./data/proxies.json",
			MinProxiesForScraping:  constants.MinProxiesForScraping,
			MaxConsecutiveFailures: constants.MaxConsecutiveProxyFailures,
			EnsureTimeout:          constants.ProxyRefreshTimeout,
			LocalEgressIP:          "",
		},
		Refresh: RefreshConfig{
			ScraperCommand: "",
			ChunkSize:      constants.RefreshChunkSize,
			ScrapeTimeout:  constants.ProxyRefreshTimeout,
			CheckSoftLimit: constants.CheckChunkSoftLimit,
			CheckHardLimit: constants.CheckChunkHardLimit,
			JudgeURLs:      []string{},
			IPEchoURLs:     []string{},
		},
		Resilience: ResilienceConfig{
			CircuitFailMax:      constants.CircuitFailMax,
			CircuitResetTimeout: constants.CircuitResetTimeout,
			CircuitHalfOpenMax:  constants.CircuitHalfOpenMax,
			DefaultRatePerMin:   60,
			DomainRatesPerMin:   map[string]int{},
			RetryMaxAttempts:    constants.RetryMaxAttempts,
			RetryBaseDelay:      constants.RetryBaseDelay,
			RetryMaxDelay:       constants.RetryMaxDelay,
			RetryJitterFactor:   constants.RetryJitter,
			CheckpointDir:       "./data/checkpoints",
		},
		Sites: []SiteConfig{},
	}
}

// Load reads config.yaml (if present) and SCOUT_* environment overrides
// into a Config, and arranges for onConfigChange to fire (debounced) when
// the file changes on disk.
func Load(onConfigChange func()) (*Config, error) {
	cfg := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix("SCOUT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if configFile := os.Getenv("SCOUT_CONFIG_FILE"); configFile != "" {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
			}
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	viper.WatchConfig()

	if onConfigChange != nil {
		viper.OnConfigChange(func(e fsnotify.Event) {
			reloadMutex.Lock()
			defer reloadMutex.Unlock()

			now := time.Now()
			if now.Sub(lastReload) < reloadDebounce {
				return
			}
			lastReload = now

			time.Sleep(DefaultFileWriteDelay)
			onConfigChange()
		})
	}
	return cfg, nil
}
