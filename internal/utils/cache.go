package utils

import (
	"log"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache keys for admin reports. Writers that change posts, reviews or the
// approved list drop them with InvalidateReports.
const (
	CacheKeySiteStats     = "report:site_stats"
	CacheKeyWeeklyStatus  = "report:weekly_status"
	CacheKeyCategoryCount = "report:category_counts"
	CacheKeyDailyPrefix   = "report:daily:"
	reportKeyPrefix       = "report:"
)

type cacheEntry struct {
	value     any
	expiresAt time.Time
}

// TTLCache is an LRU with a per-entry expiry.
type TTLCache struct {
	lru *lru.Cache[string, cacheEntry]
	now func() time.Time
}

var (
	sharedCache *TTLCache
	cacheOnce   sync.Once
)

// GetCache returns the process-wide cache (capacity 256).
func GetCache() *TTLCache {
	cacheOnce.Do(func() {
		c, err := NewTTLCache(256)
		if err != nil {
			log.Fatalf("Failed to create LRU cache: %v", err)
		}
		sharedCache = c
	})
	return sharedCache
}

func NewTTLCache(size int) (*TTLCache, error) {
	l, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &TTLCache{lru: l, now: time.Now}, nil
}

func (c *TTLCache) Set(key string, value any, ttl time.Duration) {
	c.lru.Add(key, cacheEntry{value: value, expiresAt: c.now().Add(ttl)})
}

// Get reports a miss for absent and expired keys alike.
func (c *TTLCache) Get(key string) (any, bool) {
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		c.lru.Remove(key)
		return nil, false
	}
	return e.value, true
}

func (c *TTLCache) Delete(key string) {
	c.lru.Remove(key)
}

func (c *TTLCache) DeletePrefix(prefix string) {
	for _, k := range c.lru.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.lru.Remove(k)
		}
	}
}

func (c *TTLCache) InvalidateReports() {
	c.DeletePrefix(reportKeyPrefix)
}
