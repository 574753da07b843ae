package research

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// MemoryCache is a size-capped TTL cache implementing the Cache port. It
// backs ranker memoization and query-expansion reuse within a process.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*memoryCacheEntry
	maxSize int
	ttl     time.Duration
}

type memoryCacheEntry struct {
	value     interface{}
	createdAt time.Time
	expiresAt time.Time
}

// NewMemoryCache creates a cache holding at most maxSize entries, each valid
// for ttl. A non-positive maxSize defaults to 1000, a non-positive ttl to 30
// minutes.
func NewMemoryCache(maxSize int, ttl time.Duration) *MemoryCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &MemoryCache{
		entries: make(map[string]*memoryCacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Get returns the cached value for key if present and unexpired.
func (c *MemoryCache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.value, true
}

// Set stores value under key, evicting the oldest entry at capacity.
func (c *MemoryCache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	now := time.Now()
	c.entries[key] = &memoryCacheEntry{
		value:     value,
		createdAt: now,
		expiresAt: now.Add(c.ttl),
	}
}

// Size returns the number of stored entries, expired included.
func (c *MemoryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear drops every entry.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*memoryCacheEntry)
}

func (c *MemoryCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range c.entries {
		if oldestKey == "" || entry.createdAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.createdAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// CacheKey builds a stable cache key from arbitrary string parts.
func CacheKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
