// Package cache provides an in-memory store of fetch responses. Freshness
// is decided per request via max_age_ms, so entries carry their storage
// time instead of a fixed TTL; capacity bounds memory, with the oldest
// entry evicted when full.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/scrapesome/scrapesome/models"
)

type entry struct {
	resp     *models.FetchResponse
	storedAt time.Time
}

// Cache is safe for concurrent use.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]entry
	maxEntries int
}

// New creates a Cache holding at most maxEntries responses.
func New(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &Cache{
		entries:    make(map[string]entry, maxEntries),
		maxEntries: maxEntries,
	}
}

// Key derives the cache key from every request field that shapes the
// response body. Two requests differing only in css_selector or
// force_render must never share an entry.
func Key(req *models.FetchRequest) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00%t",
		req.URL, req.OutputFormat, req.ExtractMode, req.CSSSelector, req.ForceRender)
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the response stored under key if it was stored within the
// last maxAgeMs milliseconds. maxAgeMs <= 0 disables the lookup.
func (c *Cache) Get(key string, maxAgeMs int) (*models.FetchResponse, bool) {
	if maxAgeMs <= 0 {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || time.Since(e.storedAt) > time.Duration(maxAgeMs)*time.Millisecond {
		return nil, false
	}
	return e.resp, true
}

// Set stores resp under key, evicting the oldest entry when at capacity.
func (c *Cache) Set(key string, resp *models.FetchResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}
	c.entries[key] = entry{resp: resp, storedAt: time.Now()}
}

func (c *Cache) evictOldest() {
	var oldestKey string
	var oldestAt time.Time
	for k, e := range c.entries {
		if oldestKey == "" || e.storedAt.Before(oldestAt) {
			oldestKey, oldestAt = k, e.storedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
