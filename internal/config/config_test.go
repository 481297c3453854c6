package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Logging.PrettyLogs)

	assert.Equal(t, 8, cfg.TaskRunner.Concurrency)
	assert.Equal(t, 10, cfg.Proxy.MinProxiesForScraping)
	assert.Equal(t, 3, cfg.Proxy.MaxConsecutiveFailures)

	assert.Equal(t, 100, cfg.Refresh.ChunkSize)
	assert.Equal(t, 5, cfg.Resilience.CircuitFailMax)
	assert.Equal(t, 2, cfg.Resilience.CircuitHalfOpenMax)
	assert.Equal(t, 0.5, cfg.Resilience.RetryJitterFactor)

	assert.Empty(t, cfg.Sites)
}

func TestLoadConfig_WithoutFile(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 100, cfg.Refresh.ChunkSize)
}

func TestLoadConfig_WithEnvironmentVariables(t *testing.T) {
	testEnvVars := map[string]string{
		"SCOUT_LOGGING_LEVEL":          "debug",
		"SCOUT_TASK_RUNNER_CONCURRENCY": "16",
		"SCOUT_PROXY_MIN_PROXIES_FOR_SCRAPING": "25",
	}

	for key, value := range testEnvVars {
		os.Setenv(key, value)
	}
	defer func() {
		for key := range testEnvVars {
			os.Unsetenv(key)
		}
	}()

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 16, cfg.TaskRunner.Concurrency)
	assert.Equal(t, 25, cfg.Proxy.MinProxiesForScraping)
}

func TestLoadConfig_ResilienceDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, cfg.Resilience.CircuitResetTimeout)
	assert.Equal(t, 60, cfg.Resilience.DefaultRatePerMin)
}
