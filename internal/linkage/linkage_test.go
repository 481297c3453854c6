package linkage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idkny/sale-sofia/internal/core/domain"
)

func TestFingerprint_IgnoresCaseDiacriticsAndWhitespace(t *testing.T) {
	a := Fingerprint("Лозенец", 85.4, 3, 2, "brick")
	b := Fingerprint("  лозенец ", 85.4, 3, 2, "BRICK")
	assert.Equal(t, a, b)
}

func TestFingerprint_StripsLatinDiacritics(t *testing.T) {
	a := Fingerprint("Bánkya", 60, 2, 1, "panel")
	b := Fingerprint("Bankya", 60, 2, 1, "panel")
	assert.Equal(t, a, b)
}

func TestFingerprint_DiffersOnPhysicalAttributes(t *testing.T) {
	a := Fingerprint("Mladost", 70, 2, 3, "brick")
	b := Fingerprint("Mladost", 70, 2, 4, "brick") // different floor
	assert.NotEqual(t, a, b)
}

func TestFingerprint_Is16HexChars(t *testing.T) {
	fp := Fingerprint("Center", 50, 1, 1, "panel")
	assert.Len(t, fp, 16)
}

func TestDiscrepancyPct(t *testing.T) {
	assert.Equal(t, 0.0, DiscrepancyPct(0, 100))
	assert.InDelta(t, 10.0, DiscrepancyPct(100, 110), 0.0001)
}

func TestStore_AddTracksAllSiblingsSharingFingerprint(t *testing.T) {
	store := NewStore(nil)
	fp := "abc123"

	siblings, err := store.Add(context.Background(), domain.LinkageEntry{Fingerprint: fp, Source: "site-a", Price: 100})
	require.NoError(t, err)
	assert.Len(t, siblings, 1)

	siblings, err = store.Add(context.Background(), domain.LinkageEntry{Fingerprint: fp, Source: "site-b", Price: 102})
	require.NoError(t, err)
	assert.Len(t, siblings, 2)
}

func TestStore_AddPreservesFirstSeenOnReupsert(t *testing.T) {
	store := NewStore(nil)
	fp := "abc123"
	firstSeen := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	laterSeen := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	_, err := store.Add(context.Background(), domain.LinkageEntry{Fingerprint: fp, Source: "site-a", Price: 100, FirstSeen: firstSeen})
	require.NoError(t, err)

	siblings, err := store.Add(context.Background(), domain.LinkageEntry{Fingerprint: fp, Source: "site-a", Price: 105, FirstSeen: laterSeen})
	require.NoError(t, err)
	require.Len(t, siblings, 1)
	assert.True(t, siblings[0].FirstSeen.Equal(firstSeen), "re-upserting the same (fingerprint, source) must keep the original FirstSeen")
}

func TestStore_FiresOnDiscrepancyAboveThresholdWithTwoSiblings(t *testing.T) {
	var got domain.DiscrepancyEvent
	fired := false
	store := NewStore(func(e domain.DiscrepancyEvent) {
		fired = true
		got = e
	})
	fp := "abc123"

	_, err := store.Add(context.Background(), domain.LinkageEntry{Fingerprint: fp, Source: "site-a", Price: 100})
	require.NoError(t, err)
	assert.False(t, fired, "a single entry has no sibling to diverge from")

	_, err = store.Add(context.Background(), domain.LinkageEntry{Fingerprint: fp, Source: "site-b", Price: 110})
	require.NoError(t, err)

	require.True(t, fired, "a >=5%% divergence across two siblings must fire onDiscrepancy")
	assert.Equal(t, fp, got.Fingerprint)
	assert.Equal(t, 100.0, got.MinPrice)
	assert.Equal(t, 110.0, got.MaxPrice)
	assert.ElementsMatch(t, []string{"site-a", "site-b"}, got.Sources)
}

func TestStore_DoesNotFireBelowDiscrepancyThreshold(t *testing.T) {
	fired := false
	store := NewStore(func(e domain.DiscrepancyEvent) { fired = true })
	fp := "abc123"

	_, err := store.Add(context.Background(), domain.LinkageEntry{Fingerprint: fp, Source: "site-a", Price: 100})
	require.NoError(t, err)
	_, err = store.Add(context.Background(), domain.LinkageEntry{Fingerprint: fp, Source: "site-b", Price: 102})
	require.NoError(t, err)

	assert.False(t, fired, "a 2%% divergence is below the 5%% threshold and must not fire")
}

func TestStore_Get_ReturnsEmptyForUnknownFingerprint(t *testing.T) {
	store := NewStore(nil)
	entries, err := store.Get(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
