// Package cache keeps finished session reports on disk so later runs skip
// pages that were harvested recently.
package cache

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/law-makers/revscrape/pkg/models"
)

//go:embed schema.sql
var schema string

// Cache stores session reports by key.
//
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the cached report of key and whether it was found
	Get(key string) (*models.Report, bool)

	// Set stores report under key for ttl, replacing any existing entry
	Set(key string, report *models.Report, ttl time.Duration)

	// Delete removes key. Missing keys are ignored.
	Delete(key string)

	// Close releases the underlying storage
	Close() error
}

// Stats describes cache usage
type Stats struct {
	Entries int
	MaxSize int
	Hits    uint64
	Misses  uint64
}

// HitRate returns the percentage of lookups that were hits
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Store is a SQLite backed report cache with per-entry expiry. When it holds
// more than its maximum size the least recently used entries are dropped.
type Store struct {
	db      *sql.DB
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	hits    uint64
	misses  uint64

	now func() time.Time
}

var _ Cache = (*Store)(nil)

// Cacheable reports whether a session report is worth serving again.
// Partial reports are left out so the next run retries the page.
func Cacheable(report *models.Report) bool {
	if report == nil {
		return false
	}
	return report.Stop == models.StopCompleted || report.Stop == models.StopExhausted
}

// Open opens or creates the cache database at path, holding at most
// maxEntries reports, each kept for defaultTTL unless Set is given another
// ttl. Expired entries are purged on open. ":memory:" gives a private cache.
func Open(path string, maxEntries int, defaultTTL time.Duration) (*Store, error) {
	if maxEntries <= 0 {
		maxEntries = 256
	}
	if defaultTTL <= 0 {
		defaultTTL = 6 * time.Hour
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	// one connection serialises writers and keeps ":memory:" a single database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}

	s := &Store{
		db:      db,
		maxSize: maxEntries,
		ttl:     defaultTTL,
		now:     time.Now,
	}
	if n := s.purgeExpired(); n > 0 {
		log.Debug().Int("removed", n).Msg("Purged expired cache entries")
	}
	return s, nil
}

// Get retrieves a cached report and marks it most recently used
func (s *Store) Get(key string) (*models.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var raw []byte
	var expiresAt int64
	err := s.db.QueryRow(`SELECT report, expires_at FROM reports WHERE key = ?`, key).Scan(&raw, &expiresAt)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Warn().Err(err).Str("key", key).Msg("Cache lookup failed")
		}
		s.misses++
		return nil, false
	}

	now := s.now()
	if now.UnixNano() > expiresAt {
		s.misses++
		s.exec(`DELETE FROM reports WHERE key = ?`, key)
		return nil, false
	}

	var report models.Report
	if err := json.Unmarshal(raw, &report); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Dropping unreadable cache entry")
		s.misses++
		s.exec(`DELETE FROM reports WHERE key = ?`, key)
		return nil, false
	}

	s.exec(`UPDATE reports SET accessed_at = ? WHERE key = ?`, now.UnixNano(), key)
	s.hits++

	log.Debug().Str("key", key).Msg("Cache hit")
	return &report, true
}

// Set stores report. A ttl <= 0 uses the cache default.
func (s *Store) Set(key string, report *models.Report, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.ttl
	}
	raw, err := json.Marshal(report)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Report not cached")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.exec(`INSERT OR REPLACE INTO reports (key, report, expires_at, accessed_at) VALUES (?, ?, ?, ?)`,
		key, raw, now.Add(ttl).UnixNano(), now.UnixNano())
	s.evictLRU()

	log.Debug().Str("key", key).Dur("ttl", ttl).Int("records", len(report.Records)).Msg("Cached report")
}

// Delete removes a cached report
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.exec(`DELETE FROM reports WHERE key = ?`, key)
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Stats returns a snapshot of cache usage
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM reports`).Scan(&entries); err != nil {
		log.Warn().Err(err).Msg("Cache count failed")
	}
	return Stats{
		Entries: entries,
		MaxSize: s.maxSize,
		Hits:    s.hits,
		Misses:  s.misses,
	}
}

// evictLRU trims the table to maxSize by last access (lock held)
func (s *Store) evictLRU() {
	res, err := s.db.Exec(`DELETE FROM reports WHERE key IN (
		SELECT key FROM reports ORDER BY accessed_at DESC LIMIT -1 OFFSET ?)`, s.maxSize)
	if err != nil {
		log.Warn().Err(err).Msg("Cache eviction failed")
		return
	}
	if n, _ := res.RowsAffected(); n > 0 {
		log.Debug().Int64("evicted", n).Msg("Evicted from cache (LRU)")
	}
}

// purgeExpired removes every expired entry and returns how many were dropped
func (s *Store) purgeExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM reports WHERE expires_at < ?`, s.now().UnixNano())
	if err != nil {
		log.Warn().Err(err).Msg("Cache purge failed")
		return 0
	}
	n, _ := res.RowsAffected()
	return int(n)
}

// exec runs a write whose failure only costs a cache entry (lock held)
func (s *Store) exec(query string, args ...any) {
	if _, err := s.db.Exec(query, args...); err != nil {
		log.Warn().Err(err).Msg("Cache write failed")
	}
}

// Key normalises a target URL into a cache key: the host is lowercased and
// the fragment dropped, since neither changes which widget is loaded.
func Key(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return rawURL
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}
