package mapbox

import (
	"context"
	"fmt"
	"sync"

	"github.com/Arham-Git047/Project-Sentinel/internal/domain"
	"github.com/Arham-Git047/Project-Sentinel/internal/observability"
)

// CachedResolver wraps a ZoneResolver with an in-memory LRU cache keyed by
// coordinates rounded to three decimals (about 100 m).
type CachedResolver struct {
	inner   domain.ZoneResolver
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedResolver creates a cache decorator around a resolver.
func NewCachedResolver(inner domain.ZoneResolver, maxEntries int, metrics *observability.Metrics) *CachedResolver {
	return &CachedResolver{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedResolver) ResolveZone(ctx context.Context, lat, lon float64) (string, error) {
	key := fmt.Sprintf("%.3f,%.3f", lat, lon)
	if zone, ok := c.cache.get(key); ok {
		c.metrics.ZoneCache.WithLabelValues("hit").Inc()
		return zone, nil
	}
	c.metrics.ZoneCache.WithLabelValues("miss").Inc()

	zone, err := c.inner.ResolveZone(ctx, lat, lon)
	if err != nil {
		// Failures are not cached so a transient outage can be retried.
		return "", err
	}
	c.cache.put(key, zone)
	return zone, nil
}

// lruCache is a simple thread-safe LRU cache of zone names.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value string
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
