// Package cache provides a thread-safe TTL cache with LRU eviction, used to
// memoize metadata and search responses.
package cache

import (
	"container/list"
	"sync"
	"time"
)

type entry struct {
	key       string
	value     any
	expiresAt time.Time
}

// TimedCache caches values for a fixed TTL, evicting the least recently used
// entry once maxEntries is exceeded.
type TimedCache struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	order      *list.List // front = most recently used
	items      map[string]*list.Element
}

// New returns a TimedCache holding at most maxEntries values for ttl each.
func New(ttl time.Duration, maxEntries int) *TimedCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &TimedCache{
		ttl:        ttl,
		maxEntries: maxEntries,
		order:      list.New(),
		items:      make(map[string]*list.Element),
	}
}

// Get returns the cached value for key, or nil if absent or expired.
func (c *TimedCache) Get(key string) any {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil
	}
	e := el.Value.(*entry)
	if time.Now().After(e.expiresAt) {
		c.order.Remove(el)
		delete(c.items, key)
		return nil
	}
	c.order.MoveToFront(el)
	return e.value
}

// Set stores value under key, refreshing its TTL and recency.
func (c *TimedCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		e.value = value
		e.expiresAt = time.Now().Add(c.ttl)
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&entry{key: key, value: value, expiresAt: time.Now().Add(c.ttl)})
	c.items[key] = el

	for c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*entry).key)
	}
}

// PurgeExpired drops all expired entries.
func (c *TimedCache) PurgeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		e := el.Value.(*entry)
		if now.After(e.expiresAt) {
			c.order.Remove(el)
			delete(c.items, e.key)
		}
		el = prev
	}
}

// Len returns the number of live entries, including any not yet purged.
func (c *TimedCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
