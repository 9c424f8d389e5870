package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRU cache with sliding TTL and size-based eviction
type LRUCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	lru     *list.List
	onEvict func(key string, data T)
	now     func() time.Time
}

type cacheItem[T any] struct {
	key       string
	data      T
	expiresAt time.Time
}

// Option configures an LRUCache.
type Option[T any] func(*LRUCache[T])

// WithEvictHook registers fn to run for every entry leaving the cache,
// whether by capacity, expiry, Delete or Purge. fn runs after the cache
// lock is released.
func WithEvictHook[T any](fn func(key string, data T)) Option[T] {
	return func(c *LRUCache[T]) { c.onEvict = fn }
}

// WithClock overrides time.Now.
func WithClock[T any](now func() time.Time) Option[T] {
	return func(c *LRUCache[T]) { c.now = now }
}

// NewLRUCache creates a new LRU cache with TTL
func NewLRUCache[T any](maxSize int, ttl time.Duration, opts ...Option[T]) *LRUCache[T] {
	c := &LRUCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get retrieves a value and extends its expiry.
func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()

	var zero T
	elem, exists := c.items[key]
	if !exists {
		c.mu.Unlock()
		return zero, false
	}

	item := elem.Value.(*cacheItem[T])
	now := c.now()
	if now.After(item.expiresAt) {
		c.removeElement(elem)
		c.mu.Unlock()
		c.evicted(item)
		return zero, false
	}

	item.expiresAt = now.Add(c.ttl)
	c.lru.MoveToFront(elem)
	c.mu.Unlock()
	return item.data, true
}

// Set stores a value in the cache
func (c *LRUCache[T]) Set(key string, data T) {
	c.mu.Lock()

	item := &cacheItem[T]{
		key:       key,
		data:      data,
		expiresAt: c.now().Add(c.ttl),
	}

	var dropped []*cacheItem[T]
	if elem, exists := c.items[key]; exists {
		dropped = append(dropped, elem.Value.(*cacheItem[T]))
		elem.Value = item
		c.lru.MoveToFront(elem)
	} else {
		elem := c.lru.PushFront(item)
		c.items[key] = elem
		for c.maxSize > 0 && c.lru.Len() > c.maxSize {
			oldest := c.lru.Back()
			dropped = append(dropped, oldest.Value.(*cacheItem[T]))
			c.removeElement(oldest)
		}
	}
	c.mu.Unlock()

	for _, it := range dropped {
		c.evicted(it)
	}
}

// Delete removes a key from the cache
func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	elem, exists := c.items[key]
	if !exists {
		c.mu.Unlock()
		return
	}
	item := elem.Value.(*cacheItem[T])
	c.removeElement(elem)
	c.mu.Unlock()
	c.evicted(item)
}

// Purge empties the cache.
func (c *LRUCache[T]) Purge() {
	c.mu.Lock()
	var dropped []*cacheItem[T]
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		dropped = append(dropped, elem.Value.(*cacheItem[T]))
	}
	c.items = make(map[string]*list.Element)
	c.lru.Init()
	c.mu.Unlock()

	for _, it := range dropped {
		c.evicted(it)
	}
}

func (c *LRUCache[T]) removeElement(elem *list.Element) {
	item := elem.Value.(*cacheItem[T])
	delete(c.items, item.key)
	c.lru.Remove(elem)
}

func (c *LRUCache[T]) evicted(item *cacheItem[T]) {
	if c.onEvict != nil {
		c.onEvict(item.key, item.data)
	}
}

// CleanExpired removes all expired entries and returns count of removed items
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()

	now := c.now()
	var dropped []*cacheItem[T]
	for elem := c.lru.Front(); elem != nil; {
		next := elem.Next()
		item := elem.Value.(*cacheItem[T])
		if now.After(item.expiresAt) {
			dropped = append(dropped, item)
			c.removeElement(elem)
		}
		elem = next
	}
	c.mu.Unlock()

	for _, it := range dropped {
		c.evicted(it)
	}
	return len(dropped)
}

// Size returns the current number of items in the cache
func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
