// Package cache provides persistent, tiered caching for EDGAR API responses.
// All data is stored as JSON blobs with expiration timestamps for cache-first
// behavior; hit/miss counters survive restarts via a persisted stats row.
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Schema is the cache database schema. A single table keyed by cache key
// (normally a CIK, plus one distinguished key for the ticker index), with
// the tier recorded per row so cleanup and stats can group by data type.
const Schema = `
CREATE TABLE IF NOT EXISTS edgar_cache (
	key TEXT PRIMARY KEY,
	ticker TEXT,
	company_name TEXT,
	tier TEXT NOT NULL,
	data TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL,
	access_count INTEGER DEFAULT 0,
	last_accessed INTEGER
);

CREATE INDEX IF NOT EXISTS idx_cache_ticker ON edgar_cache(ticker);
CREATE INDEX IF NOT EXISTS idx_cache_expires ON edgar_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_cache_tier ON edgar_cache(tier);

CREATE TABLE IF NOT EXISTS cache_stats (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	persisted_hits INTEGER DEFAULT 0,
	persisted_misses INTEGER DEFAULT 0,
	last_cleanup INTEGER
);

INSERT OR IGNORE INTO cache_stats (id) VALUES (1);
`

// Stats holds cache performance counters.
type Stats struct {
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	Sets       int64   `json:"sets"`
	Evictions  int64   `json:"evictions"`
	EntryCount int64   `json:"entry_count"`
	HitRate    float64 `json:"hit_rate"` // percentage
}

// DBStats holds database-level statistics for observability.
type DBStats struct {
	TotalEntries   int64            `json:"total_entries"`
	ExpiredEntries int64            `json:"expired_entries"`
	ActiveEntries  int64            `json:"active_entries"`
	EntriesByTier  map[string]int64 `json:"entries_by_tier"`
	OldestEntry    *time.Time       `json:"oldest_entry,omitempty"`
	NewestEntry    *time.Time       `json:"newest_entry,omitempty"`
}

// Store provides tiered cache operations backed by SQLite. Safe for
// concurrent use: sql.DB serializes access to the underlying connection and
// the in-memory counters are guarded by a mutex.
type Store struct {
	db  *sql.DB
	log zerolog.Logger

	mu        sync.Mutex
	hits      int64
	misses    int64
	sets      int64
	evictions int64

	// Test hook, defaults to time.Now.
	now func() time.Time
}

// NewStore creates a cache store and initializes the schema.
func NewStore(db *sql.DB, log zerolog.Logger) (*Store, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	return &Store{
		db:  db,
		log: log.With().Str("component", "cache").Logger(),
		now: time.Now,
	}, nil
}

// Get retrieves cached data by key. Returns (nil, false) when the key was
// never set or the entry has expired; an expired entry is evicted on the
// same call. Both cases count as a miss.
func (s *Store) Get(key string) (json.RawMessage, bool) {
	now := s.now().Unix()

	var data string
	var expiresAt int64
	var accessCount int64
	err := s.db.QueryRow(
		"SELECT data, expires_at, access_count FROM edgar_cache WHERE key = ?",
		key,
	).Scan(&data, &expiresAt, &accessCount)

	if err == sql.ErrNoRows {
		s.recordMiss()
		return nil, false
	}
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("Cache read failed")
		s.recordMiss()
		return nil, false
	}

	if expiresAt <= now {
		// Lazy eviction: reclaim the stale row on the read path
		if _, err := s.db.Exec("DELETE FROM edgar_cache WHERE key = ? AND expires_at <= ?", key, now); err != nil {
			s.log.Error().Err(err).Str("key", key).Msg("Failed to evict expired entry")
		} else {
			s.mu.Lock()
			s.evictions++
			s.mu.Unlock()
		}
		s.recordMiss()
		return nil, false
	}

	if _, err := s.db.Exec(
		"UPDATE edgar_cache SET access_count = ?, last_accessed = ? WHERE key = ?",
		accessCount+1, now, key,
	); err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("Failed to update access stats")
	}

	s.recordHit()
	return json.RawMessage(data), true
}

// GetStale retrieves cached data regardless of expiration. Used as a
// fallback when the upstream API is unavailable - stale data beats no data.
// Does not touch the hit/miss counters.
func (s *Store) GetStale(key string) (json.RawMessage, bool) {
	var data string
	err := s.db.QueryRow("SELECT data FROM edgar_cache WHERE key = ?", key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("Stale cache read failed")
		return nil, false
	}
	return json.RawMessage(data), true
}

// SetOptions carries optional indexing columns for a cache entry.
type SetOptions struct {
	Ticker      string
	CompanyName string
}

// Set stores data under the given key and tier. The expiration timestamp is
// always creation time plus the tier TTL.
func (s *Store) Set(key string, value interface{}, tier Tier, opts *SetOptions) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value for %s: %w", key, err)
	}

	now := s.now()
	expiresAt := now.Add(tier.TTL()).Unix()

	var ticker, companyName sql.NullString
	if opts != nil {
		if opts.Ticker != "" {
			ticker = sql.NullString{String: opts.Ticker, Valid: true}
		}
		if opts.CompanyName != "" {
			companyName = sql.NullString{String: opts.CompanyName, Valid: true}
		}
	}

	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO edgar_cache
		 (key, ticker, company_name, tier, data, created_at, expires_at, access_count, last_accessed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, NULL)`,
		key, ticker, companyName, string(tier), string(data), now.Unix(), expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store cache entry %s: %w", key, err)
	}

	s.mu.Lock()
	s.sets++
	s.mu.Unlock()

	s.log.Debug().Str("key", key).Str("tier", string(tier)).Msg("Cached entry")
	return nil
}

// Delete removes a specific entry. Returns true if a row was deleted.
func (s *Store) Delete(key string) (bool, error) {
	result, err := s.db.Exec("DELETE FROM edgar_cache WHERE key = ?", key)
	if err != nil {
		return false, fmt.Errorf("failed to delete cache entry %s: %w", key, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetByTicker finds the newest unexpired entry indexed under a ticker.
// This is what keeps delisted companies resolvable after they drop out of
// the live index: the cache stays authoritative until its own TTL expires.
func (s *Store) GetByTicker(ticker string) (json.RawMessage, bool) {
	var key string
	err := s.db.QueryRow(
		`SELECT key FROM edgar_cache
		 WHERE ticker = ? AND expires_at > ?
		 ORDER BY created_at DESC LIMIT 1`,
		ticker, s.now().Unix(),
	).Scan(&key)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		s.log.Error().Err(err).Str("ticker", ticker).Msg("Cache ticker lookup failed")
		return nil, false
	}
	return s.Get(key)
}

// CleanupExpired removes all expired entries. Safe to run while concurrent
// get/set traffic continues; WAL mode keeps readers unblocked.
func (s *Store) CleanupExpired() (int64, error) {
	now := s.now().Unix()

	result, err := s.db.Exec("DELETE FROM edgar_cache WHERE expires_at <= ?", now)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up expired entries: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		s.mu.Lock()
		s.evictions += removed
		s.mu.Unlock()
	}

	if _, err := s.db.Exec("UPDATE cache_stats SET last_cleanup = ? WHERE id = 1", now); err != nil {
		s.log.Error().Err(err).Msg("Failed to record cleanup timestamp")
	}

	return removed, nil
}

// GetStats returns merged in-memory and persisted counters.
func (s *Store) GetStats() Stats {
	s.mu.Lock()
	stats := Stats{
		Hits:      s.hits,
		Misses:    s.misses,
		Sets:      s.sets,
		Evictions: s.evictions,
	}
	s.mu.Unlock()

	var persistedHits, persistedMisses int64
	err := s.db.QueryRow(
		"SELECT persisted_hits, persisted_misses FROM cache_stats WHERE id = 1",
	).Scan(&persistedHits, &persistedMisses)
	if err == nil {
		stats.Hits += persistedHits
		stats.Misses += persistedMisses
	}

	if err := s.db.QueryRow("SELECT COUNT(*) FROM edgar_cache").Scan(&stats.EntryCount); err != nil {
		s.log.Error().Err(err).Msg("Failed to count cache entries")
	}

	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}

	return stats
}

// GetDBStats returns database-level statistics.
func (s *Store) GetDBStats() (DBStats, error) {
	now := s.now().Unix()
	stats := DBStats{EntriesByTier: make(map[string]int64, len(AllTiers))}
	// Every tier is reported, zero or not, so dashboards keep stable keys
	for _, tier := range AllTiers {
		stats.EntriesByTier[string(tier)] = 0
	}

	if err := s.db.QueryRow("SELECT COUNT(*) FROM edgar_cache").Scan(&stats.TotalEntries); err != nil {
		return stats, fmt.Errorf("failed to count entries: %w", err)
	}
	if err := s.db.QueryRow(
		"SELECT COUNT(*) FROM edgar_cache WHERE expires_at <= ?", now,
	).Scan(&stats.ExpiredEntries); err != nil {
		return stats, fmt.Errorf("failed to count expired entries: %w", err)
	}
	stats.ActiveEntries = stats.TotalEntries - stats.ExpiredEntries

	rows, err := s.db.Query("SELECT tier, COUNT(*) FROM edgar_cache GROUP BY tier")
	if err != nil {
		return stats, fmt.Errorf("failed to group entries by tier: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tier string
		var count int64
		if err := rows.Scan(&tier, &count); err != nil {
			return stats, err
		}
		stats.EntriesByTier[tier] = count
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	var oldest, newest sql.NullInt64
	if err := s.db.QueryRow(
		"SELECT MIN(created_at), MAX(created_at) FROM edgar_cache",
	).Scan(&oldest, &newest); err == nil {
		if oldest.Valid {
			t := time.Unix(oldest.Int64, 0)
			stats.OldestEntry = &t
		}
		if newest.Valid {
			t := time.Unix(newest.Int64, 0)
			stats.NewestEntry = &t
		}
	}

	return stats, nil
}

// PersistStats flushes the in-memory hit/miss counters into the persisted
// stats row so hit rates survive restarts. Called on shutdown.
func (s *Store) PersistStats() error {
	s.mu.Lock()
	hits, misses := s.hits, s.misses
	s.hits, s.misses = 0, 0
	s.mu.Unlock()

	_, err := s.db.Exec(
		`UPDATE cache_stats
		 SET persisted_hits = persisted_hits + ?, persisted_misses = persisted_misses + ?
		 WHERE id = 1`,
		hits, misses,
	)
	if err != nil {
		// Put the counters back so a retry still accounts for them
		s.mu.Lock()
		s.hits += hits
		s.misses += misses
		s.mu.Unlock()
		return fmt.Errorf("failed to persist cache stats: %w", err)
	}
	return nil
}

// ClearAll removes every entry and resets persisted counters.
func (s *Store) ClearAll() error {
	if _, err := s.db.Exec("DELETE FROM edgar_cache"); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	if _, err := s.db.Exec(
		"UPDATE cache_stats SET persisted_hits = 0, persisted_misses = 0 WHERE id = 1",
	); err != nil {
		return fmt.Errorf("failed to reset cache stats: %w", err)
	}

	s.mu.Lock()
	s.hits, s.misses, s.sets, s.evictions = 0, 0, 0, 0
	s.mu.Unlock()

	s.log.Info().Msg("Cache cleared")
	return nil
}

func (s *Store) recordHit() {
	s.mu.Lock()
	s.hits++
	s.mu.Unlock()
}

func (s *Store) recordMiss() {
	s.mu.Lock()
	s.misses++
	s.mu.Unlock()
}
