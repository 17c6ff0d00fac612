// Package cache keeps downloaded sheets on disk so repeated previews do not
// hit the Sheets API.
package cache

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"nextmeeting/internal/sheet"
)

// Entry represents a cached worksheet with metadata.
type Entry struct {
	Title     string     `json:"title"`
	Rows      [][]string `json:"rows"`
	FetchedAt time.Time  `json:"fetched_at"`
}

// Cache provides disk-based caching for sheet grids.
type Cache struct {
	dir string
	ttl time.Duration
	mu  sync.RWMutex
	now func() time.Time
}

// New creates a new disk-based cache.
func New(cacheDir string, ttl time.Duration) (*Cache, error) {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, err
	}
	return &Cache{
		dir: cacheDir,
		ttl: ttl,
		now: time.Now,
	}, nil
}

// Get retrieves a cached grid if it exists and isn't expired.
func (c *Cache) Get(sheetID string) (*sheet.Grid, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.filePath(sheetID))
	if err != nil {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}

	if c.now().Sub(entry.FetchedAt) > c.ttl {
		return nil, false
	}

	return &sheet.Grid{Title: entry.Title, Rows: entry.Rows}, true
}

// Set stores a grid in the cache.
func (c *Cache) Set(sheetID string, g *sheet.Grid) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := Entry{
		Title:     g.Title,
		Rows:      g.Rows,
		FetchedAt: c.now(),
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(c.filePath(sheetID), data, 0644)
}

// Invalidate removes a specific sheet's cache.
func (c *Cache) Invalidate(sheetID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.Remove(c.filePath(sheetID)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (c *Cache) filePath(sheetID string) string {
	// Sanitize name to be filesystem-safe
	safeName := make([]rune, 0, len(sheetID))
	for _, r := range sheetID {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			safeName = append(safeName, r)
		} else {
			safeName = append(safeName, '_')
		}
	}
	return filepath.Join(c.dir, string(safeName)+".json")
}

// Reader serves grids from the cache and falls back to next.
type Reader struct {
	next  sheet.Reader
	cache *Cache
}

// NewReader wraps next with c.
func NewReader(next sheet.Reader, c *Cache) *Reader {
	return &Reader{next: next, cache: c}
}

// Fetch implements sheet.Reader.
func (r *Reader) Fetch(ctx context.Context, sheetID string) (*sheet.Grid, error) {
	if g, ok := r.cache.Get(sheetID); ok {
		log.Printf("Using cached copy of sheet %s", sheetID)
		return g, nil
	}
	g, err := r.next.Fetch(ctx, sheetID)
	if err != nil {
		return nil, err
	}
	if err := r.cache.Set(sheetID, g); err != nil {
		log.Printf("WARNING: caching sheet %s: %v", sheetID, err)
	}
	return g, nil
}
