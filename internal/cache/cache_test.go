package cache

import (
	"path/filepath"
	"testing"
	"time"
)

func testDB(t *testing.T) *Cache {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleEntry(key, topic, version string, processedAt time.Time) Entry {
	return Entry{
		Key:          key,
		Title:        "Post " + key,
		Link:         "https://example.com/" + key,
		LogicVersion: version,
		ProcessedAt:  processedAt,
		Topic:        topic,
		Result: Result{
			Topic:           topic,
			Title:           "Post " + key,
			Link:            "https://example.com/" + key,
			Summary:         "A summary.",
			MatchedKeywords: []string{"go"},
			KeywordProvenance: map[string]Provenance{
				"go": {FoundInTitle: true},
			},
			AIReasoning: "yes, clearly on topic",
		},
	}
}

func TestLookupAbsent(t *testing.T) {
	db := testDB(t)

	_, found, err := db.Lookup("nope")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if found {
		t.Error("expected miss for unknown key")
	}
}

func TestUpsertAndLookup(t *testing.T) {
	db := testDB(t)
	e := sampleEntry("aaa", "AI", "v1", time.Now())

	if err := db.Upsert(e); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, found, err := db.Lookup("aaa")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !found {
		t.Fatal("expected hit")
	}
	if got.Topic != "AI" || got.LogicVersion != "v1" {
		t.Errorf("unexpected entry: topic=%q version=%q", got.Topic, got.LogicVersion)
	}
	if len(got.Result.MatchedKeywords) != 1 || got.Result.MatchedKeywords[0] != "go" {
		t.Errorf("result round trip lost keywords: %v", got.Result.MatchedKeywords)
	}
	if !got.Result.KeywordProvenance["go"].FoundInTitle {
		t.Error("result round trip lost provenance")
	}
}

func TestUpsertOverwritesInPlace(t *testing.T) {
	db := testDB(t)

	if err := db.Upsert(sampleEntry("aaa", "AI", "v1", time.Now())); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	// Reprocessing under a new logic version replaces the row, never adds one.
	e2 := sampleEntry("aaa", "Security", "v2", time.Now())
	if err := db.Upsert(e2); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, found, err := db.Lookup("aaa")
	if err != nil || !found {
		t.Fatalf("lookup after overwrite: found=%v err=%v", found, err)
	}
	if got.Topic != "Security" || got.LogicVersion != "v2" {
		t.Errorf("expected overwritten entry, got topic=%q version=%q", got.Topic, got.LogicVersion)
	}

	stats, err := db.Stats("v2")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalEntries != 1 {
		t.Errorf("store size for the key should stay 1, got %d", stats.TotalEntries)
	}
}

func TestFreshness(t *testing.T) {
	e := sampleEntry("aaa", "AI", "v1", time.Now())
	if !e.Fresh("v1") {
		t.Error("entry should be fresh under its own version")
	}
	if e.Fresh("v2") {
		t.Error("entry should be stale under a different version")
	}
}

func TestNegativeEntry(t *testing.T) {
	db := testDB(t)

	neg := Entry{
		Key:          "bbb",
		Title:        "Off topic post",
		Link:         "https://example.com/bbb",
		LogicVersion: "v1",
		ProcessedAt:  time.Now(),
		Topic:        "",
		Result:       Result{Title: "Off topic post", Link: "https://example.com/bbb"},
	}
	if err := db.Upsert(neg); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, found, err := db.Lookup("bbb")
	if err != nil || !found {
		t.Fatalf("negative entries must be stored: found=%v err=%v", found, err)
	}
	if !got.Negative() {
		t.Error("expected a negative entry")
	}
}

func TestEvictOlderThan(t *testing.T) {
	db := testDB(t)
	maxAge := 24 * time.Hour

	old := sampleEntry("old", "AI", "v1", time.Now().Add(-maxAge-time.Hour))
	boundary := sampleEntry("boundary", "AI", "v1", time.Now().Add(-maxAge+time.Second))
	if err := db.Upsert(old); err != nil {
		t.Fatalf("upsert old: %v", err)
	}
	if err := db.Upsert(boundary); err != nil {
		t.Fatalf("upsert boundary: %v", err)
	}

	evicted, err := db.EvictOlderThan(maxAge)
	if err != nil {
		t.Fatalf("evict: %v", err)
	}
	if evicted != 1 {
		t.Errorf("expected 1 eviction, got %d", evicted)
	}

	if _, found, _ := db.Lookup("old"); found {
		t.Error("old entry should be gone")
	}
	if _, found, _ := db.Lookup("boundary"); !found {
		t.Error("entry inside the age window should survive")
	}

	// Idempotent: a second pass removes nothing.
	evicted, err = db.EvictOlderThan(maxAge)
	if err != nil {
		t.Fatalf("second evict: %v", err)
	}
	if evicted != 0 {
		t.Errorf("second eviction should remove 0, got %d", evicted)
	}
}

func TestCompactAfterEviction(t *testing.T) {
	db := testDB(t)
	if err := db.Upsert(sampleEntry("aaa", "AI", "v1", time.Now().Add(-48*time.Hour))); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := db.EvictOlderThan(24 * time.Hour); err != nil {
		t.Fatalf("evict: %v", err)
	}
	if err := db.Compact(); err != nil {
		t.Fatalf("compact: %v", err)
	}
}

func TestMalformedResultIsMiss(t *testing.T) {
	db := testDB(t)

	_, err := db.writeDB.Exec(`
		INSERT INTO article_cache (article_key, title, link, logic_version, processed_at, result_json, topic)
		VALUES ('corrupt', 'T', 'L', 'v1', ?, 'not json {', 'AI')
	`, time.Now().UTC())
	if err != nil {
		t.Fatalf("inserting corrupt row: %v", err)
	}

	_, found, err := db.Lookup("corrupt")
	if err != nil {
		t.Fatalf("lookup must not fail on corrupt payload: %v", err)
	}
	if found {
		t.Error("corrupt payload should read as a miss so the article is reprocessed")
	}
}

func TestStats(t *testing.T) {
	db := testDB(t)
	now := time.Now()

	entries := []Entry{
		sampleEntry("a", "AI", "v2", now),
		sampleEntry("b", "AI", "v2", now),
		sampleEntry("c", "Security", "v2", now),
		sampleEntry("d", "AI", "v1", now), // stale
		sampleEntry("e", "", "v2", now),  // negative
	}

	for _, e := range entries {
		if err := db.Upsert(e); err != nil {
			t.Fatalf("upsert %s: %v", e.Key, err)
		}
	}

	stats, err := db.Stats("v2")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalEntries != 5 {
		t.Errorf("total = %d, want 5", stats.TotalEntries)
	}
	if stats.FreshEntries != 4 {
		t.Errorf("fresh = %d, want 4", stats.FreshEntries)
	}
	if stats.StaleEntries != 1 {
		t.Errorf("stale = %d, want 1", stats.StaleEntries)
	}
	if stats.EntriesByTopic["AI"] != 2 {
		t.Errorf("AI count = %d, want 2 (stale and negative excluded)", stats.EntriesByTopic["AI"])
	}
	if stats.EntriesByTopic["Security"] != 1 {
		t.Errorf("Security count = %d, want 1", stats.EntriesByTopic["Security"])
	}
	if _, ok := stats.EntriesByTopic[""]; ok {
		t.Error("negative entries must not appear in topic counts")
	}
}

func TestDump(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	if err := db.Upsert(sampleEntry("a", "AI", "v1", now.Add(-time.Hour))); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := db.Upsert(sampleEntry("b", "AI", "v1", now)); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	entries, err := db.Dump()
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Key != "b" {
		t.Errorf("expected most recently processed first, got %s", entries[0].Key)
	}
}
