package storage

import (
	"container/list"
	"sync"
	"time"
)

// cacheEntry is a cached value with its freshness window.
type cacheEntry struct {
	key        string
	value      interface{}
	createdAt  time.Time
	lastAccess time.Time
	expiresAt  time.Time
	element    *list.Element
}

// TTLCache is an LRU cache whose entries expire after a fixed TTL.
// A Get on an expired entry evicts it and reports a miss. LRU eviction
// happens only when a new key is inserted at capacity: the globally
// least-recently-accessed entry is removed first.
type TTLCache struct {
	maxSize int
	ttl     time.Duration
	items   map[string]*cacheEntry
	lruList *list.List
	mu      sync.Mutex
	now     func() time.Time
}

func NewTTLCache(maxSize int, ttl time.Duration) *TTLCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &TTLCache{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*cacheEntry),
		lruList: list.New(),
		now:     time.Now,
	}
}

func (c *TTLCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.items[key]
	if !exists {
		return nil, false
	}

	now := c.now()
	if now.After(entry.expiresAt) {
		c.deleteEntry(entry)
		return nil, false
	}

	entry.lastAccess = now
	c.lruList.MoveToFront(entry.element)
	return entry.value, true
}

func (c *TTLCache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if entry, exists := c.items[key]; exists {
		entry.value = value
		entry.createdAt = now
		entry.lastAccess = now
		entry.expiresAt = now.Add(c.ttl)
		c.lruList.MoveToFront(entry.element)
		return
	}

	if len(c.items) >= c.maxSize {
		c.evictLRU()
	}

	entry := &cacheEntry{
		key:        key,
		value:      value,
		createdAt:  now,
		lastAccess: now,
		expiresAt:  now.Add(c.ttl),
	}
	entry.element = c.lruList.PushFront(entry)
	c.items[key] = entry
}

func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.items[key]; exists {
		c.deleteEntry(entry)
	}
}

func (c *TTLCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*cacheEntry)
	c.lruList = list.New()
}

func (c *TTLCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns cache statistics for the status surface.
func (c *TTLCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return CacheStats{
		Size:    len(c.items),
		MaxSize: c.maxSize,
		TTL:     c.ttl,
	}
}

// evictLRU removes the least-recently-accessed entry. Expired entries
// at the tail go first, they are free wins.
func (c *TTLCache) evictLRU() {
	element := c.lruList.Back()
	if element != nil {
		c.deleteEntry(element.Value.(*cacheEntry))
	}
}

func (c *TTLCache) deleteEntry(entry *cacheEntry) {
	delete(c.items, entry.key)
	c.lruList.Remove(entry.element)
}

type CacheStats struct {
	Size    int           `json:"size"`
	MaxSize int           `json:"max_size"`
	TTL     time.Duration `json:"ttl"`
}
