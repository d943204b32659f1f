// Package semcache persists extracted semantic features keyed by entity
// identity and content hash, with a TTL on entries.
package semcache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/zeebo/xxh3"

	"github.com/pleaseai/repograph/internal/semantic"
)

// DefaultTTL is how long a cached feature stays valid.
const DefaultTTL = 7 * 24 * time.Hour

// Cache is a SQLite-backed feature store. Safe for concurrent readers and
// a single writer per row; writes are durable immediately (WAL journal).
type Cache struct {
	db  *sql.DB
	ttl time.Duration
}

// Open opens or creates a cache database at path.
func Open(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir cache dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	c := &Cache{db: db, ttl: DefaultTTL}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	return c, nil
}

// OpenMemory opens an in-memory cache (for testing). The pool is pinned
// to one connection: each sqlite :memory: connection is its own empty
// database, so a second pooled connection would not see the schema.
func OpenMemory() (*Cache, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open memory cache: %w", err)
	}
	db.SetMaxOpenConns(1)
	c := &Cache{db: db, ttl: DefaultTTL}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	return c, nil
}

// SetTTL overrides the entry lifetime.
func (c *Cache) SetTTL(ttl time.Duration) {
	c.ttl = ttl
}

func (c *Cache) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS features (
		key TEXT PRIMARY KEY,
		feature TEXT NOT NULL,
		hash TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_features_created ON features(created_at);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Key builds the canonical cache key for an entity.
func Key(filePath, entityType, name string) string {
	return filePath + ":" + entityType + ":" + name
}

// EntityHash digests the fields that invalidate a cached feature when they
// change. 16 hex digits.
func EntityHash(filePath, entityType, name, parent, sourceCode, documentation string) string {
	h := xxh3.New()
	for _, part := range []string{filePath, entityType, name, parent, sourceCode, documentation} {
		_, _ = h.WriteString(part)
		_, _ = h.WriteString("|")
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// Get returns the cached feature for key iff the stored hash matches and
// the entry is within TTL. A miss on hash or TTL deletes the stale row.
func (c *Cache) Get(key, hash string) (*semantic.Feature, bool) {
	var featureJSON, storedHash string
	var createdAt int64
	err := c.db.QueryRow(
		`SELECT feature, hash, created_at FROM features WHERE key = ?`, key,
	).Scan(&featureJSON, &storedHash, &createdAt)
	if err != nil {
		return nil, false
	}

	expired := time.Since(time.Unix(createdAt, 0)) > c.ttl
	if storedHash != hash || expired {
		_, _ = c.db.Exec(`DELETE FROM features WHERE key = ?`, key)
		return nil, false
	}

	var f semantic.Feature
	if err := json.Unmarshal([]byte(featureJSON), &f); err != nil {
		_, _ = c.db.Exec(`DELETE FROM features WHERE key = ?`, key)
		return nil, false
	}
	return &f, true
}

// Set upserts a feature. Idempotent.
func (c *Cache) Set(key, hash string, f *semantic.Feature) error {
	featureJSON, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal feature: %w", err)
	}
	_, err = c.db.Exec(`
		INSERT INTO features (key, feature, hash, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			feature = excluded.feature,
			hash = excluded.hash,
			created_at = excluded.created_at`,
		key, string(featureJSON), hash, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("upsert feature: %w", err)
	}
	return nil
}

// Has reports whether a row exists for key, regardless of hash or TTL.
func (c *Cache) Has(key string) bool {
	var one int
	err := c.db.QueryRow(`SELECT 1 FROM features WHERE key = ?`, key).Scan(&one)
	return err == nil
}

// Clear removes all entries.
func (c *Cache) Clear() error {
	_, err := c.db.Exec(`DELETE FROM features`)
	return err
}

// Purge removes entries older than the TTL. Returns the number removed.
func (c *Cache) Purge() (int64, error) {
	cutoff := time.Now().Add(-c.ttl).Unix()
	res, err := c.db.Exec(`DELETE FROM features WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Save is a no-op: every write is durable.
func (c *Cache) Save() error { return nil }

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}
