package cache

import (
	"sync"
	"time"
)

// Item is a cached value with its expiry deadline.
type Item struct {
	Data      interface{}
	ExpiresAt time.Time
}

// Cache is a small in-memory TTL cache. Expired entries are evicted
// lazily on read.
type Cache struct {
	items map[string]*Item
	mutex sync.RWMutex
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		items: make(map[string]*Item),
	}
}

// Get retrieves a live item from the cache.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mutex.RLock()
	item, exists := c.items[key]
	c.mutex.RUnlock()

	if !exists {
		return nil, false
	}

	if time.Now().After(item.ExpiresAt) {
		c.mutex.Lock()
		// Re-check: a concurrent Set may have replaced the entry.
		if current, ok := c.items[key]; ok && current == item {
			delete(c.items, key)
		}
		c.mutex.Unlock()
		return nil, false
	}

	return item.Data, true
}

// Set stores an item with a TTL.
func (c *Cache) Set(key string, data interface{}, ttl time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items[key] = &Item{
		Data:      data,
		ExpiresAt: time.Now().Add(ttl),
	}
}

// Delete removes an item.
func (c *Cache) Delete(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.items, key)
}

// Clear removes all items.
func (c *Cache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.items = make(map[string]*Item)
}
