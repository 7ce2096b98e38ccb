package cache

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dajtuba/constructosaurus-sub001/internal/extraction"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c
}

func testRecord() *extraction.Record {
	rec := extraction.NewRecord(3)
	rec.Beams = []extraction.Entry{
		{"mark": "B1", "shape": "W12X26", "length": "24'-0\""},
	}
	rec.ParseMethod = "strict"
	return rec
}

func TestCache_StoreAndGet(t *testing.T) {
	c := newTestCache(t)
	digest := ImageDigest([]byte("drawing page 3"))

	err := c.Store(Entry{
		Digest:         digest,
		Method:         "single",
		Fingerprint:    "v1",
		Record:         testRecord(),
		Confidence:     0.85,
		ProcessingTime: 4.2,
	})
	if err != nil {
		t.Fatalf("Store() error: %v", err)
	}

	entry, ok := c.Get(digest, "single", "v1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if entry.Confidence != 0.85 {
		t.Errorf("Confidence = %v, want 0.85", entry.Confidence)
	}
	if entry.Record == nil || len(entry.Record.Beams) != 1 {
		t.Fatalf("record did not round-trip: %+v", entry.Record)
	}
	if mark := entry.Record.Beams[0].Mark(); mark != "B1" {
		t.Errorf("beam mark = %q, want B1", mark)
	}
	if entry.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be stamped on store")
	}

	t.Run("unknown key misses", func(t *testing.T) {
		if _, ok := c.Get(ImageDigest([]byte("other page")), "single", "v1"); ok {
			t.Error("expected miss for unknown digest")
		}
	})

	t.Run("method is part of the key", func(t *testing.T) {
		if _, ok := c.Get(digest, "full_ensemble", "v1"); ok {
			t.Error("expected miss for different method")
		}
	})

	t.Run("fingerprint is part of the key", func(t *testing.T) {
		if _, ok := c.Get(digest, "single", "v2"); ok {
			t.Error("expected miss for different prompt fingerprint")
		}
	})
}

func TestCache_RecordsAreIsolated(t *testing.T) {
	c := newTestCache(t)
	digest := ImageDigest([]byte("drawing page 3"))

	stored := testRecord()
	if err := c.Store(Entry{
		Digest:      digest,
		Method:      "single",
		Fingerprint: "v1",
		Record:      stored,
		Confidence:  0.85,
	}); err != nil {
		t.Fatalf("Store() error: %v", err)
	}

	// Mutating the record after Store must not reach the index.
	stored.Beams[0]["mark"] = "B9"
	stored.Discrepancies = []extraction.QuantityDiscrepancy{{Item: "B9"}}

	first, ok := c.Get(digest, "single", "v1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if mark := first.Record.Beams[0].Mark(); mark != "B1" {
		t.Errorf("beam mark = %q, caller mutation leaked through Store", mark)
	}
	if len(first.Record.Discrepancies) != 0 {
		t.Errorf("Discrepancies = %+v, caller mutation leaked through Store", first.Record.Discrepancies)
	}

	// Mutating one hit's record must not reach later hits.
	first.Record.Beams[0]["mark"] = "Z1"
	first.Record.Discrepancies = []extraction.QuantityDiscrepancy{{Item: "Z1"}}

	second, ok := c.Get(digest, "single", "v1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if mark := second.Record.Beams[0].Mark(); mark != "B1" {
		t.Errorf("beam mark = %q, earlier hit's mutation leaked into the cache", mark)
	}
	if len(second.Record.Discrepancies) != 0 {
		t.Errorf("Discrepancies = %+v, earlier hit's mutation leaked into the cache", second.Record.Discrepancies)
	}
}

func TestCache_TTLBoundary(t *testing.T) {
	c := newTestCache(t)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return start }

	digest := ImageDigest([]byte("page"))
	if err := c.Store(Entry{Digest: digest, Method: "single", Record: testRecord(), Confidence: 0.8}); err != nil {
		t.Fatalf("Store() error: %v", err)
	}

	c.now = func() time.Time { return start.Add(23*time.Hour + 59*time.Minute) }
	if _, ok := c.Get(digest, "single", ""); !ok {
		t.Error("expected hit just inside the TTL")
	}

	c.now = func() time.Time { return start.Add(24*time.Hour + time.Minute) }
	if _, ok := c.Get(digest, "single", ""); ok {
		t.Error("expected miss just past the TTL")
	}

	// Expiry is lazy. The file stays on disk until Purge.
	files, err := os.ReadDir(c.dir)
	if err != nil {
		t.Fatalf("ReadDir() error: %v", err)
	}
	if len(files) != 1 {
		t.Errorf("expected expired entry to remain on disk, found %d files", len(files))
	}
}

func TestCache_Purge(t *testing.T) {
	c := newTestCache(t)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return start }

	fresh := ImageDigest([]byte("fresh"))
	stale := ImageDigest([]byte("stale"))
	if err := c.Store(Entry{Digest: stale, Method: "single", Record: testRecord()}); err != nil {
		t.Fatalf("Store() error: %v", err)
	}

	c.now = func() time.Time { return start.Add(30 * time.Hour) }
	if err := c.Store(Entry{Digest: fresh, Method: "single", Record: testRecord()}); err != nil {
		t.Fatalf("Store() error: %v", err)
	}

	// A file that is not valid JSON should be swept too.
	corrupt := filepath.Join(c.dir, "deadbeef.json")
	if err := os.WriteFile(corrupt, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	removed, err := c.Purge()
	if err != nil {
		t.Fatalf("Purge() error: %v", err)
	}
	if removed != 2 {
		t.Errorf("Purge() removed %d, want 2 (expired + corrupt)", removed)
	}

	if _, ok := c.Get(fresh, "single", ""); !ok {
		t.Error("fresh entry should survive purge")
	}
	if _, ok := c.Get(stale, "single", ""); ok {
		t.Error("expired entry should be gone after purge")
	}
	if _, err := os.Stat(corrupt); !os.IsNotExist(err) {
		t.Error("corrupt file should be removed by purge")
	}
}

func TestCache_CorruptEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "0123abcd.json")
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	c, err := New(Config{Dir: dir})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if got := c.Stats().Entries; got != 0 {
		t.Errorf("corrupt entry should not be indexed, Entries = %d", got)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error("corrupt file should be left on disk for purge")
	}
}

func TestCache_ReloadFromDisk(t *testing.T) {
	dir := t.TempDir()
	c, err := New(Config{Dir: dir})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	digest := ImageDigest([]byte("persisted"))
	if err := c.Store(Entry{Digest: digest, Method: "multi_pass", Record: testRecord(), Confidence: 0.9}); err != nil {
		t.Fatalf("Store() error: %v", err)
	}

	reopened, err := New(Config{Dir: dir})
	if err != nil {
		t.Fatalf("New() reopen error: %v", err)
	}
	entry, ok := reopened.Get(digest, "multi_pass", "")
	if !ok {
		t.Fatal("expected hit after reopening the cache directory")
	}
	if entry.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want 0.9", entry.Confidence)
	}
}

func TestCache_Stats(t *testing.T) {
	c := newTestCache(t)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return start }

	old := ImageDigest([]byte("old"))
	if err := c.Store(Entry{Digest: old, Method: "single", Record: testRecord()}); err != nil {
		t.Fatalf("Store() error: %v", err)
	}

	c.now = func() time.Time { return start.Add(25 * time.Hour) }
	live := ImageDigest([]byte("live"))
	if err := c.Store(Entry{Digest: live, Method: "single", Record: testRecord()}); err != nil {
		t.Fatalf("Store() error: %v", err)
	}

	c.Get(live, "single", "") // hit
	c.Get(old, "single", "")  // expired, miss
	c.Get(ImageDigest([]byte("nope")), "single", "") // miss

	stats := c.Stats()
	if stats.Entries != 2 {
		t.Errorf("Entries = %d, want 2", stats.Entries)
	}
	if stats.Expired != 1 {
		t.Errorf("Expired = %d, want 1", stats.Expired)
	}
	if stats.Hits != 1 {
		t.Errorf("Hits = %d, want 1", stats.Hits)
	}
	if stats.Misses != 2 {
		t.Errorf("Misses = %d, want 2", stats.Misses)
	}
	if stats.SizeBytes <= 0 {
		t.Error("expected SizeBytes > 0")
	}
	if stats.TTLHours != 24 {
		t.Errorf("TTLHours = %v, want 24", stats.TTLHours)
	}
}

func TestCache_NilIsDisabled(t *testing.T) {
	var c *Cache

	if _, ok := c.Get("digest", "single", ""); ok {
		t.Error("nil cache should always miss")
	}
	if err := c.Store(Entry{Digest: "d", Method: "single"}); err != nil {
		t.Errorf("nil cache Store() error: %v", err)
	}
	if removed, err := c.Purge(); err != nil || removed != 0 {
		t.Errorf("nil cache Purge() = (%d, %v), want (0, nil)", removed, err)
	}
	if stats := c.Stats(); stats.Entries != 0 {
		t.Errorf("nil cache Stats().Entries = %d, want 0", stats.Entries)
	}
}

func TestCache_StoreValidation(t *testing.T) {
	c := newTestCache(t)
	if err := c.Store(Entry{Method: "single"}); err == nil {
		t.Error("expected error for entry without digest")
	}
	if err := c.Store(Entry{Digest: "abc"}); err == nil {
		t.Error("expected error for entry without method")
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := newTestCache(t)
	digest := ImageDigest([]byte("shared"))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Store(Entry{Digest: digest, Method: "single", Record: testRecord(), Confidence: 0.8})
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if entry, ok := c.Get(digest, "single", ""); ok && entry.Record == nil {
				t.Error("reader observed a partial entry")
			}
		}()
	}
	wg.Wait()

	if entry, ok := c.Get(digest, "single", ""); !ok || entry.Confidence != 0.8 {
		t.Error("expected a complete entry after concurrent writes")
	}

	files, err := os.ReadDir(c.dir)
	if err != nil {
		t.Fatalf("ReadDir() error: %v", err)
	}
	for _, f := range files {
		if filepath.Ext(f.Name()) == ".tmp" {
			t.Errorf("temp file %s left behind", f.Name())
		}
	}
}

func TestImageDigest(t *testing.T) {
	a := ImageDigest([]byte("page one"))
	b := ImageDigest([]byte("page two"))
	if len(a) != 64 {
		t.Errorf("digest length = %d, want 64 hex chars", len(a))
	}
	if a == b {
		t.Error("different content should produce different digests")
	}
	if a != ImageDigest([]byte("page one")) {
		t.Error("digest should be deterministic")
	}
}
