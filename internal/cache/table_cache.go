package cache

import (
	"sync"
	"time"

	"github.com/instrumetriq/tier-inspector/internal/models"
)

// TableCache keeps decoded snapshot tables in memory so repeated inspections of
// the same file skip decoding. Tables are immutable and shared between callers.
type TableCache struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	entries    map[string]item
	now        func() time.Time
}

type item struct {
	table     *models.Table
	storedAt  time.Time
	expiresAt time.Time
}

// NewTableCache creates a cache holding up to maxEntries tables for ttl each.
// A zero ttl keeps entries until they are evicted by size.
func NewTableCache(ttl time.Duration, maxEntries int) *TableCache {
	if maxEntries <= 0 {
		maxEntries = 8
	}
	return &TableCache{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]item),
		now:        time.Now,
	}
}

// Get retrieves a cached table if present and not expired.
func (c *TableCache) Get(key string) (*models.Table, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !it.expiresAt.IsZero() && c.now().After(it.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return it.table, true
}

// Set stores a table, evicting the oldest entry when the cache is full.
func (c *TableCache) Set(key string, table *models.Table) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var expires time.Time
	if c.ttl > 0 {
		expires = now.Add(c.ttl)
	}
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}
	c.entries[key] = item{table: table, storedAt: now, expiresAt: expires}
}

// Delete removes an entry.
func (c *TableCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of cached tables, expired ones included until touched.
func (c *TableCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *TableCache) evictOldest() {
	var (
		oldestKey string
		oldest    time.Time
	)
	for k, it := range c.entries {
		if oldestKey == "" || it.storedAt.Before(oldest) {
			oldestKey, oldest = k, it.storedAt
		}
	}
	delete(c.entries, oldestKey)
}
