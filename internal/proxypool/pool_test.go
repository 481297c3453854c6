package proxypool

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idkny/sale-sofia/internal/core/domain"
)

func writeProxyFile(t *testing.T, proxies []domain.Proxy) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "proxies.json")
	data, err := json.Marshal(proxies)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func sampleProxy(host string) domain.Proxy {
	return domain.Proxy{
		Host:     host,
		Port:     "8080",
		Protocol: domain.ProtocolHTTP,
	}
}

func TestSelect_EmptyPoolReturnsErrPoolEmpty(t *testing.T) {
	path := writeProxyFile(t, nil)
	p := New(path, 3, nil)
	require.NoError(t, p.Reload())

	_, err := p.Select()
	assert.ErrorIs(t, err, domain.ErrPoolEmpty)
}

func TestSelect_ReturnsOneOfLoadedEntries(t *testing.T) {
	proxies := []domain.Proxy{sampleProxy("1.1.1.1"), sampleProxy("2.2.2.2"), sampleProxy("3.3.3.3")}
	path := writeProxyFile(t, proxies)
	p := New(path, 3, nil)
	require.NoError(t, p.Reload())

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		proxy, err := p.Select()
		require.NoError(t, err)
		seen[proxy.Identity()] = true
	}
	assert.NotEmpty(t, seen)
	for key := range seen {
		found := false
		for _, proxy := range proxies {
			if proxy.Identity() == key {
				found = true
			}
		}
		assert.True(t, found, "Select returned a proxy not present in the pool: %s", key)
	}
}

func TestRecord_PrunesAfterMaxConsecutiveFailures(t *testing.T) {
	target := sampleProxy("9.9.9.9")
	proxies := []domain.Proxy{target, sampleProxy("8.8.8.8")}
	path := writeProxyFile(t, proxies)
	p := New(path, 2, nil)
	require.NoError(t, p.Reload())

	p.Record(target, false)
	assert.Equal(t, 2, p.Stats().Total, "pool must not prune before the failure threshold is reached")

	p.Record(target, false)
	assert.Equal(t, 1, p.Stats().Total, "pool must prune the entry once consecutive failures hit maxFails")

	_, err := p.Select()
	require.NoError(t, err)
	proxy, _ := p.Select()
	assert.NotEqual(t, target.Identity(), proxy.Identity())
}

func TestRecord_SuccessResetsFailureCount(t *testing.T) {
	target := sampleProxy("5.5.5.5")
	path := writeProxyFile(t, []domain.Proxy{target})
	p := New(path, 2, nil)
	require.NoError(t, p.Reload())

	p.Record(target, false)
	p.Record(target, true)
	p.Record(target, false)

	assert.Equal(t, 1, p.Stats().Total, "a success in between failures must reset the streak, so one more failure shouldn't prune")
}

func TestReload_ForgetsStaleTrackerEntries(t *testing.T) {
	stale := sampleProxy("7.7.7.7")
	kept := sampleProxy("6.6.6.6")
	path := writeProxyFile(t, []domain.Proxy{stale, kept})
	p := New(path, 3, nil)
	require.NoError(t, p.Reload())

	p.Record(stale, false)
	p.Record(stale, false)
	assert.Equal(t, 1, p.Stats().Failing)

	require.NoError(t, os.WriteFile(path, mustJSON(t, []domain.Proxy{kept}), 0o644))
	require.NoError(t, p.Reload())

	assert.Equal(t, 0, p.Stats().Failing, "reload must forget tracker state for proxies no longer present")
	assert.Equal(t, 1, p.Stats().Total)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
