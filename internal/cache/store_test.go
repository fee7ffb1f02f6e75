package cache

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) (*Store, *time.Time) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewStore(db, zerolog.Nop())
	require.NoError(t, err)

	// Controllable clock so TTL expiry can be simulated without sleeping
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	return store, &now
}

type testPayload struct {
	Name    string `json:"name"`
	Revenue int64  `json:"revenue"`
}

func TestSetGetRoundTrip(t *testing.T) {
	store, _ := setupTestStore(t)

	in := testPayload{Name: "Apple Inc", Revenue: 391_035_000_000}
	require.NoError(t, store.Set("0000320193", in, TierEntityMetadata, &SetOptions{
		Ticker:      "AAPL",
		CompanyName: "Apple Inc",
	}))

	raw, ok := store.Get("0000320193")
	require.True(t, ok)

	var out testPayload
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in, out)

	stats := store.GetStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(0), stats.Misses)
	assert.Equal(t, int64(1), stats.EntryCount)
}

func TestGetMissingKey(t *testing.T) {
	store, _ := setupTestStore(t)

	_, ok := store.Get("0000000000")
	assert.False(t, ok)

	stats := store.GetStats()
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestExpiredEntryIsMissAndEvicted(t *testing.T) {
	store, now := setupTestStore(t)

	require.NoError(t, store.Set("0000320193", testPayload{Name: "Apple Inc"}, TierFilingsList, nil))

	// Advance past the 1 day filings_list TTL
	*now = now.Add(25 * time.Hour)

	_, ok := store.Get("0000320193")
	assert.False(t, ok)

	stats := store.GetStats()
	assert.Equal(t, int64(0), stats.Hits, "expired read must never count as a hit")
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(0), stats.EntryCount, "expired entry should be lazily evicted")
}

func TestTierDeterminesExpiry(t *testing.T) {
	store, now := setupTestStore(t)

	require.NoError(t, store.Set("facts:0000320193", testPayload{}, TierCompanyFacts, nil))
	require.NoError(t, store.Set("listing:0000320193", testPayload{}, TierFilingsList, nil))

	// 2 days in: the 1-day listing is gone, the 30-day facts remain
	*now = now.Add(48 * time.Hour)

	_, ok := store.Get("facts:0000320193")
	assert.True(t, ok)
	_, ok = store.Get("listing:0000320193")
	assert.False(t, ok)
}

func TestOverwriteRefreshesExpiry(t *testing.T) {
	store, now := setupTestStore(t)

	require.NoError(t, store.Set("k", testPayload{Name: "v1"}, TierFilingsList, nil))

	*now = now.Add(20 * time.Hour)
	require.NoError(t, store.Set("k", testPayload{Name: "v2"}, TierFilingsList, nil))

	// 10 more hours: past the original expiry, inside the refreshed one
	*now = now.Add(10 * time.Hour)

	raw, ok := store.Get("k")
	require.True(t, ok)

	var out testPayload
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "v2", out.Name)
}

func TestGetStale(t *testing.T) {
	store, now := setupTestStore(t)

	require.NoError(t, store.Set("k", testPayload{Name: "stale"}, TierFilingsList, nil))
	*now = now.Add(48 * time.Hour)

	raw, ok := store.GetStale("k")
	require.True(t, ok)

	var out testPayload
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "stale", out.Name)

	// Stale reads bypass the hit/miss accounting
	stats := store.GetStats()
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(0), stats.Misses)
}

func TestGetByTicker(t *testing.T) {
	store, _ := setupTestStore(t)

	require.NoError(t, store.Set("0000320193", testPayload{Name: "Apple Inc"}, TierEntityMetadata, &SetOptions{
		Ticker: "AAPL",
	}))

	raw, ok := store.GetByTicker("AAPL")
	require.True(t, ok)

	var out testPayload
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "Apple Inc", out.Name)

	_, ok = store.GetByTicker("ZZZZ")
	assert.False(t, ok)
}

func TestCleanupExpired(t *testing.T) {
	store, now := setupTestStore(t)

	require.NoError(t, store.Set("short", testPayload{}, TierFilingsList, nil))
	require.NoError(t, store.Set("long", testPayload{}, TierCompanyFacts, nil))

	*now = now.Add(48 * time.Hour)

	removed, err := store.CleanupExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, ok := store.GetStale("short")
	assert.False(t, ok)
	_, ok = store.GetStale("long")
	assert.True(t, ok)
}

func TestDelete(t *testing.T) {
	store, _ := setupTestStore(t)

	require.NoError(t, store.Set("k", testPayload{}, TierEntityMetadata, nil))

	deleted, err := store.Delete("k")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.Delete("k")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestPersistStatsSurvivesCounterReset(t *testing.T) {
	store, _ := setupTestStore(t)

	require.NoError(t, store.Set("k", testPayload{}, TierEntityMetadata, nil))
	store.Get("k")
	store.Get("missing")

	require.NoError(t, store.PersistStats())

	// Counters moved to the persisted row; totals must be unchanged
	stats := store.GetStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 50.0, stats.HitRate, 0.01)
}

func TestGetDBStats(t *testing.T) {
	store, now := setupTestStore(t)

	require.NoError(t, store.Set("a", testPayload{}, TierEntityMetadata, nil))
	require.NoError(t, store.Set("b", testPayload{}, TierCompanyFacts, nil))
	require.NoError(t, store.Set("c", testPayload{}, TierFilingsList, nil))

	*now = now.Add(48 * time.Hour)

	stats, err := store.GetDBStats()
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalEntries)
	assert.Equal(t, int64(1), stats.ExpiredEntries)
	assert.Equal(t, int64(2), stats.ActiveEntries)
	assert.Equal(t, int64(1), stats.EntriesByTier[string(TierCompanyFacts)])
}

func TestGetDBStatsReportsEveryTier(t *testing.T) {
	store, _ := setupTestStore(t)

	require.NoError(t, store.Set("k", testPayload{}, TierFinancials, nil))

	stats, err := store.GetDBStats()
	require.NoError(t, err)
	for _, tier := range AllTiers {
		_, ok := stats.EntriesByTier[string(tier)]
		assert.True(t, ok, "tier %s missing from stats", tier)
	}
	assert.Equal(t, int64(1), stats.EntriesByTier[string(TierFinancials)])
	assert.Equal(t, int64(0), stats.EntriesByTier[string(TierTickerMapping)])
}

func TestClearAll(t *testing.T) {
	store, _ := setupTestStore(t)

	require.NoError(t, store.Set("k", testPayload{}, TierEntityMetadata, nil))
	store.Get("k")

	require.NoError(t, store.ClearAll())

	stats := store.GetStats()
	assert.Equal(t, int64(0), stats.EntryCount)
	assert.Equal(t, int64(0), stats.Hits)
}

func TestCleanupJob(t *testing.T) {
	store, now := setupTestStore(t)

	require.NoError(t, store.Set("k", testPayload{}, TierFilingsList, nil))
	*now = now.Add(48 * time.Hour)

	job := NewCleanupJob(store, zerolog.Nop())
	assert.Equal(t, "cache_cleanup", job.Name())
	require.NoError(t, job.Run())

	_, ok := store.GetStale("k")
	assert.False(t, ok)
}
