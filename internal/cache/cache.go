// Package cache implements the persistent classification cache: one sqlite
// row per article key, gated by the processing-logic version. The store is
// single-writer-process per invocation; concurrent invocations against the
// same file are not supported.
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type Cache struct {
	path    string
	readDB  *sql.DB
	writeDB *sql.DB
}

func Open(dbPath string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	writeDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening write db: %w", err)
	}
	writeDB.SetMaxOpenConns(1)

	readDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("opening read db: %w", err)
	}

	c := &Cache{path: dbPath, readDB: readDB, writeDB: writeDB}
	if err := c.init(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) init() error {
	_, err := c.writeDB.Exec(`
		CREATE TABLE IF NOT EXISTS article_cache (
			article_key      TEXT PRIMARY KEY,
			title            TEXT NOT NULL DEFAULT '',
			link             TEXT NOT NULL DEFAULT '',
			logic_version    TEXT NOT NULL,
			processed_at     DATETIME NOT NULL,
			result_json      TEXT NOT NULL DEFAULT '{}',
			topic            TEXT NOT NULL DEFAULT '',
			matched_keywords TEXT NOT NULL DEFAULT '',
			from_feed        TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_cache_logic_version ON article_cache(logic_version);
		CREATE INDEX IF NOT EXISTS idx_cache_processed_at ON article_cache(processed_at);
		CREATE INDEX IF NOT EXISTS idx_cache_topic ON article_cache(topic);

		CREATE TABLE IF NOT EXISTS cache_metadata (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (c *Cache) Close() error {
	var errs []error
	if c.readDB != nil {
		errs = append(errs, c.readDB.Close())
	}
	if c.writeDB != nil {
		errs = append(errs, c.writeDB.Close())
	}
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

// Lookup returns the stored entry for a key. The second return is false if
// the key has never been processed, or if the stored result payload is
// corrupt. A corrupt row reads as a miss, so the article is simply
// reprocessed.
func (c *Cache) Lookup(key string) (Entry, bool, error) {
	var (
		e          Entry
		resultJSON string
	)
	row := c.readDB.QueryRow(`
		SELECT article_key, title, link, logic_version, processed_at, result_json, topic
		FROM article_cache WHERE article_key = ?
	`, key)
	err := row.Scan(&e.Key, &e.Title, &e.Link, &e.LogicVersion, &e.ProcessedAt, &resultJSON, &e.Topic)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("looking up %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(resultJSON), &e.Result); err != nil {
		return Entry{}, false, nil
	}
	return e, true, nil
}

// Upsert atomically creates or replaces the entry for its key. A stale
// entry is overwritten in place, never merged, so the store stays bounded
// to one row per article ever seen.
func (c *Cache) Upsert(e Entry) error {
	resultJSON, err := e.resultJSON()
	if err != nil {
		return fmt.Errorf("encoding result for %s: %w", e.Key, err)
	}
	_, err = c.writeDB.Exec(`
		INSERT OR REPLACE INTO article_cache
		(article_key, title, link, logic_version, processed_at, result_json, topic, matched_keywords, from_feed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.Key, e.Title, e.Link, e.LogicVersion, e.ProcessedAt.UTC(),
		resultJSON, e.Topic, strings.Join(e.Result.MatchedKeywords, ","), e.Result.Feed)
	if err != nil {
		return fmt.Errorf("upserting %s: %w", e.Key, err)
	}
	return nil
}

// EvictOlderThan removes entries whose processed_at precedes now-maxAge and
// returns the number removed. Running it twice in a row removes nothing the
// second time.
func (c *Cache) EvictOlderThan(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge).UTC()
	res, err := c.writeDB.Exec(`DELETE FROM article_cache WHERE processed_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("evicting entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Compact reclaims disk space after bulk deletion. Purely an optimization;
// safe to skip.
func (c *Cache) Compact() error {
	if _, err := c.writeDB.Exec(`VACUUM`); err != nil {
		return fmt.Errorf("compacting cache: %w", err)
	}
	return nil
}

// Stats summarizes cache contents relative to the current logic version.
type Stats struct {
	TotalEntries   int
	FreshEntries   int
	StaleEntries   int
	EntriesByTopic map[string]int // fresh, positive entries only
	FileSize       int64
}

func (c *Cache) Stats(logicVersion string) (Stats, error) {
	s := Stats{EntriesByTopic: map[string]int{}}

	if err := c.readDB.QueryRow(`SELECT COUNT(*) FROM article_cache`).Scan(&s.TotalEntries); err != nil {
		return s, fmt.Errorf("counting entries: %w", err)
	}
	if err := c.readDB.QueryRow(
		`SELECT COUNT(*) FROM article_cache WHERE logic_version = ?`, logicVersion,
	).Scan(&s.FreshEntries); err != nil {
		return s, fmt.Errorf("counting fresh entries: %w", err)
	}
	s.StaleEntries = s.TotalEntries - s.FreshEntries

	rows, err := c.readDB.Query(`
		SELECT topic, COUNT(*) FROM article_cache
		WHERE logic_version = ? AND topic != ''
		GROUP BY topic
	`, logicVersion)
	if err != nil {
		return s, fmt.Errorf("counting by topic: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			topic string
			n     int
		)
		if err := rows.Scan(&topic, &n); err != nil {
			return s, err
		}
		s.EntriesByTopic[topic] = n
	}
	if err := rows.Err(); err != nil {
		return s, err
	}

	if fi, err := os.Stat(c.path); err == nil {
		s.FileSize = fi.Size()
	}
	return s, nil
}

// Dump returns every entry ordered by processed_at descending, for the
// cache export subcommand.
func (c *Cache) Dump() ([]Entry, error) {
	rows, err := c.readDB.Query(`
		SELECT article_key, title, link, logic_version, processed_at, result_json, topic
		FROM article_cache ORDER BY processed_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("dumping cache: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			resultJSON string
		)
		if err := rows.Scan(&e.Key, &e.Title, &e.Link, &e.LogicVersion, &e.ProcessedAt, &resultJSON, &e.Topic); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		// Corrupt payloads are skipped rather than failing the export.
		if err := json.Unmarshal([]byte(resultJSON), &e.Result); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
