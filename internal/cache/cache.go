// Package cache provides a content-addressed cache for extraction results.
// Entries live as JSON files on disk with an in-memory index. The key covers
// the image bytes, the escalation method, and the prompt template version, so
// changing any of the three misses cleanly instead of serving stale output.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dajtuba/constructosaurus-sub001/internal/extraction"
	"github.com/dajtuba/constructosaurus-sub001/internal/metrics"
)

// DefaultTTL is the validity window for cached results.
const DefaultTTL = 24 * time.Hour

// Entry is one cached extraction result. Agreement is only meaningful for
// multi-pass entries; the ensemble combiner needs it when that tier is served
// from cache.
type Entry struct {
	Digest         string                     `json:"digest"`
	Method         string                     `json:"method"`
	Fingerprint    string                     `json:"fingerprint,omitempty"`
	Record         *extraction.Record         `json:"record"`
	Confidence     float64                    `json:"confidence"`
	Agreement      float64                    `json:"agreement,omitempty"`
	CreatedAt      time.Time                  `json:"created_at"`
	ProcessingTime float64                    `json:"processing_time_seconds,omitempty"`
	Performance    *metrics.PerformanceReport `json:"performance,omitempty"`
}

// Stats summarizes cache state for the stats endpoint.
type Stats struct {
	Entries   int     `json:"entries"`
	Expired   int     `json:"expired"`
	SizeBytes int64   `json:"size_bytes"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Dir       string  `json:"dir,omitempty"`
	TTLHours  float64 `json:"ttl_hours"`
}

// Config configures a cache.
type Config struct {
	Dir    string
	TTL    time.Duration
	Logger *slog.Logger
}

// Cache is a disk-backed extraction result cache with an in-memory index.
// A nil *Cache is valid and behaves as a cache that never hits, so callers
// can treat "caching disabled" uniformly.
type Cache struct {
	dir    string
	ttl    time.Duration
	logger *slog.Logger

	mu    sync.RWMutex
	index map[string]Entry

	hits   atomic.Int64
	misses atomic.Int64

	now func() time.Time
}

// New opens the cache directory, creating it if needed, and loads the index
// from entries already on disk. Corrupt files are logged and skipped; Purge
// cleans them up.
func New(cfg Config) (*Cache, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	c := &Cache{
		dir:    cfg.Dir,
		ttl:    cfg.TTL,
		logger: cfg.Logger,
		index:  make(map[string]Entry),
		now:    time.Now,
	}
	if err := c.loadIndex(); err != nil {
		return nil, err
	}
	return c, nil
}

// ImageDigest returns the sha256 hex digest of the image bytes.
func ImageDigest(image []byte) string {
	sum := sha256.Sum256(image)
	return hex.EncodeToString(sum[:])
}

// key collapses the three-part cache identity into one filename-safe string.
func key(digest, method, fingerprint string) string {
	h := sha256.Sum256([]byte(digest + ":" + method + ":" + fingerprint))
	return hex.EncodeToString(h[:])
}

// Get returns the cached entry for (digest, method, fingerprint) when it is
// present and younger than the TTL. Expired entries count as misses but stay
// on disk until Purge. The record comes back as a deep copy; callers may
// mutate it freely without touching the stored entry.
func (c *Cache) Get(digest, method, fingerprint string) (*Entry, bool) {
	if c == nil {
		return nil, false
	}

	k := key(digest, method, fingerprint)

	c.mu.RLock()
	entry, ok := c.index[k]
	c.mu.RUnlock()

	if !ok || c.now().Sub(entry.CreatedAt) > c.ttl {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	entry.Record = entry.Record.Clone()
	return &entry, true
}

// Store persists an entry to disk and indexes it. The write goes through a
// temp file and rename so concurrent readers never see a partial entry. The
// index keeps its own copy of the record, so the caller keeps ownership of
// the one it passed in.
func (c *Cache) Store(entry Entry) error {
	if c == nil {
		return nil
	}
	if entry.Digest == "" || entry.Method == "" {
		return fmt.Errorf("cache entries need a digest and a method")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = c.now()
	}
	entry.Record = entry.Record.Clone()

	k := key(entry.Digest, entry.Method, entry.Fingerprint)

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, k+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create cache temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close cache temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.entryPath(k)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to finalize cache entry: %w", err)
	}

	c.mu.Lock()
	c.index[k] = entry
	c.mu.Unlock()
	return nil
}

// Purge sweeps the cache directory, removing expired and corrupt entries.
// It returns how many files were removed.
func (c *Cache) Purge() (int, error) {
	if c == nil {
		return 0, nil
	}

	files, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read cache directory: %w", err)
	}

	removed := 0
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		k := strings.TrimSuffix(f.Name(), ".json")
		path := filepath.Join(c.dir, f.Name())

		data, readErr := os.ReadFile(path)
		var entry Entry
		corrupt := readErr != nil || json.Unmarshal(data, &entry) != nil

		if !corrupt && c.now().Sub(entry.CreatedAt) <= c.ttl {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("failed to remove cache entry: %w", err)
		}
		c.mu.Lock()
		delete(c.index, k)
		c.mu.Unlock()
		removed++
	}
	return removed, nil
}

// Stats reports entry counts, disk usage, and hit counters.
func (c *Cache) Stats() Stats {
	if c == nil {
		return Stats{}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Stats{
		Entries:  len(c.index),
		Dir:      c.dir,
		TTLHours: c.ttl.Hours(),
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
	}
	for k, entry := range c.index {
		if c.now().Sub(entry.CreatedAt) > c.ttl {
			s.Expired++
		}
		if info, err := os.Stat(c.entryPath(k)); err == nil {
			s.SizeBytes += info.Size()
		}
	}
	return s
}

func (c *Cache) entryPath(k string) string {
	return filepath.Join(c.dir, k+".json")
}

func (c *Cache) loadIndex() error {
	files, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}

	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		path := filepath.Join(c.dir, f.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			c.logger.Warn("failed to read cache entry", "path", path, "error", err)
			continue
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			c.logger.Warn("corrupt cache entry ignored", "path", path, "error", err)
			continue
		}
		c.index[strings.TrimSuffix(f.Name(), ".json")] = entry
	}
	return nil
}
