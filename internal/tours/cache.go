package tours

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNoRecords is returned by Refresh when a scrape produced nothing.
var ErrNoRecords = errors.New("scrape produced no records")

// Source produces a fresh record collection. *Scraper implements it.
type Source interface {
	ScrapeAll(ctx context.Context) []TourRecord
}

// Cache holds the tour collection in memory and persists it as one JSON
// artifact. Readers take snapshots; writers are serialized and replace the
// artifact atomically.
type Cache struct {
	path string

	mu      sync.RWMutex
	records []TourRecord

	writeMu sync.Mutex
}

func NewCache(path string) *Cache {
	return &Cache{path: path}
}

func (c *Cache) Path() string { return c.path }

// Save replaces the artifact and the in-memory collection with records.
func (c *Cache) Save(records []TourRecord) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.saveLocked(records)
}

func (c *Cache) saveLocked(records []TourRecord) error {
	if records == nil {
		records = []TourRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tours: %w", err)
	}
	if err := writeFileAtomic(c.path, data); err != nil {
		return fmt.Errorf("save tours: %w", err)
	}

	c.mu.Lock()
	c.records = cloneRecords(records)
	c.mu.Unlock()
	log.Printf("[prices] saved %d tours to %s", len(records), c.path)
	return nil
}

// Load reads the artifact into memory. found is false when the artifact is
// absent or unreadable; the reason is logged.
func (c *Cache) Load() ([]TourRecord, bool) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("[prices] no tour cache at %s", c.path)
		} else {
			log.Printf("[prices] read tour cache: %v", err)
		}
		return nil, false
	}

	var records []TourRecord
	if err := json.Unmarshal(data, &records); err != nil {
		log.Printf("[prices] decode tour cache %s: %v", c.path, err)
		return nil, false
	}
	for i := range records {
		if records[i].Includes == nil {
			records[i].Includes = []string{}
		}
	}

	c.mu.Lock()
	c.records = cloneRecords(records)
	c.mu.Unlock()
	log.Printf("[prices] loaded %d tours from cache", len(records))
	return records, true
}

// Refresh scrapes src and replaces the cache wholesale. An empty scrape
// leaves the current cache in place and returns ErrNoRecords.
func (c *Cache) Refresh(ctx context.Context, src Source) ([]TourRecord, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.refreshLocked(ctx, src)
}

func (c *Cache) refreshLocked(ctx context.Context, src Source) ([]TourRecord, error) {
	records := src.ScrapeAll(ctx)
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	if err := c.saveLocked(records); err != nil {
		return records, err
	}
	return records, nil
}

// Ensure makes sure the cache holds records, loading the artifact first and
// scraping only when that fails. Concurrent callers share one scrape.
func (c *Cache) Ensure(ctx context.Context, src Source) error {
	if c.Len() > 0 {
		return nil
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.Len() > 0 {
		return nil
	}
	if records, ok := c.Load(); ok && len(records) > 0 {
		return nil
	}
	log.Printf("[prices] cache empty, scraping")
	if _, err := c.refreshLocked(ctx, src); err != nil {
		return fmt.Errorf("ensure tours: %w", err)
	}
	return nil
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Records returns a snapshot of the collection.
func (c *Cache) Records() []TourRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneRecords(c.records)
}

// Search returns every record whose name or description contains query,
// case-insensitively, in collection order.
func (c *Cache) Search(query string) []TourRecord {
	q := strings.ToLower(query)
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []TourRecord
	for _, rec := range c.records {
		if strings.Contains(strings.ToLower(rec.Name), q) ||
			(rec.Description != "" && strings.Contains(strings.ToLower(rec.Description), q)) {
			out = append(out, cloneRecord(rec))
		}
	}
	return out
}

// GetByName returns the first record whose name contains query.
func (c *Cache) GetByName(query string) (TourRecord, bool) {
	q := strings.ToLower(query)
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, rec := range c.records {
		if strings.Contains(strings.ToLower(rec.Name), q) {
			return cloneRecord(rec), true
		}
	}
	return TourRecord{}, false
}

func (c *Cache) FormatSummary() string {
	return FormatSummary(c.Records())
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func cloneRecords(in []TourRecord) []TourRecord {
	out := make([]TourRecord, len(in))
	for i, rec := range in {
		out[i] = cloneRecord(rec)
	}
	return out
}

func cloneRecord(rec TourRecord) TourRecord {
	rec.Includes = append([]string{}, rec.Includes...)
	return rec
}
