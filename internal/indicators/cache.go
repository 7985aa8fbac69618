package indicators

import (
	"sync"
	"time"

	"crypto-swarm/internal/models"
)

type entry struct {
	ind models.Indicator
	exp time.Time
}

// Cache memoizes indicator readings per indicator and day. Keys have the
// form "<key>_<date>", e.g. "cbbi_2025-01-02". A zero TTL never expires.
type Cache struct {
	mu  sync.RWMutex
	m   map[string]entry
	ttl time.Duration
	now func() time.Time
}

// NewCache creates an empty cache.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{m: make(map[string]entry), ttl: ttl, now: time.Now}
}

// CacheKey builds the per-day key for an indicator.
func CacheKey(name, date string) string {
	return models.Key(name) + "_" + date
}

// Get returns a cached reading for name on date.
func (c *Cache) Get(name, date string) (models.Indicator, bool) {
	key := CacheKey(name, date)

	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return models.Indicator{}, false
	}
	if !e.exp.IsZero() && c.now().After(e.exp) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return models.Indicator{}, false
	}
	return e.ind, true
}

// Set stores a reading for name on date.
func (c *Cache) Set(name, date string, ind models.Indicator) {
	var exp time.Time
	if c.ttl > 0 {
		exp = c.now().Add(c.ttl)
	}
	c.mu.Lock()
	c.m[CacheKey(name, date)] = entry{ind: ind, exp: exp}
	c.mu.Unlock()
}

// Len returns the number of entries, including ones not yet evicted.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
