package cache

import (
	"sync"
	"time"

	"github.com/use-agent/cortex/sitemap"
)

// hotEntry holds an in-memory copy of a loaded SiteMap with its load time.
type hotEntry struct {
	m         *sitemap.SiteMap
	createdAt time.Time
}

// HotCache is an in-memory front for MapCache, avoiding a disk read (and,
// on a busy query/path endpoint, repeated deserialization of a
// multi-megabyte binary map) for domains accessed within maxAge. Adapted
// from the teacher's cache/cache.go (sha256-keyed in-memory response
// cache with random eviction and a background TTL sweep) — same
// capacity/eviction/cleanup idiom, now keyed by domain and holding
// *sitemap.SiteMap instead of a scrape response.
type HotCache struct {
	disk *MapCache

	mu         sync.RWMutex
	store      map[string]*hotEntry
	maxEntries int
	maxAge     time.Duration
}

// NewHotCache wraps disk with an in-memory layer of at most maxEntries
// maps, each valid for maxAge before a fresh disk load is required. A
// background goroutine sweeps expired entries every 5 minutes, matching
// the teacher's cleanupLoop cadence.
func NewHotCache(disk *MapCache, maxEntries int, maxAge time.Duration) *HotCache {
	c := &HotCache{
		disk:       disk,
		store:      make(map[string]*hotEntry),
		maxEntries: maxEntries,
		maxAge:     maxAge,
	}
	go c.cleanupLoop()
	return c
}

// Load returns domain's map from memory if fresh, otherwise loads it from
// disk and repopulates the hot entry.
func (c *HotCache) Load(domain string) (*sitemap.SiteMap, error) {
	c.mu.RLock()
	e, ok := c.store[domain]
	c.mu.RUnlock()

	if ok && time.Since(e.createdAt) <= c.maxAge {
		return e.m, nil
	}

	m, err := c.disk.Load(domain)
	if err != nil {
		return nil, err
	}
	c.put(domain, m)
	return m, nil
}

// Save writes domain's map to disk and refreshes the hot entry.
func (c *HotCache) Save(domain string, m *sitemap.SiteMap) error {
	if err := c.disk.Save(domain, m); err != nil {
		return err
	}
	c.put(domain, m)
	return nil
}

// Invalidate drops domain's hot entry (e.g. after Clear).
func (c *HotCache) Invalidate(domain string) {
	c.mu.Lock()
	delete(c.store, domain)
	c.mu.Unlock()
}

func (c *HotCache) put(domain string, m *sitemap.SiteMap) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.store[domain]; !exists && len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}
	c.store[domain] = &hotEntry{m: m, createdAt: time.Now()}
}

func (c *HotCache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-c.maxAge)
		c.mu.Lock()
		for k, e := range c.store {
			if e.createdAt.Before(cutoff) {
				delete(c.store, k)
			}
		}
		c.mu.Unlock()
	}
}
