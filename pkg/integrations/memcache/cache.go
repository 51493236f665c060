package memcache

import (
	"sync"
	"time"

	"priceoracle/pkg/types/cache"
)

var _ cache.Cache[string, any] = (*Cache[string, any])(nil)

type entry[V any] struct {
	value   V
	expires time.Time
}

// Cache is a concurrency-safe map. With a TTL set, entries older than the TTL
// are treated as absent and dropped on the next write.
type Cache[K comparable, V any] struct {
	data  map[K]entry[V]
	mutex sync.RWMutex
	ttl   time.Duration
	now   func() time.Time
}

type Option func(*options)

type options struct {
	ttl time.Duration
	now func() time.Time
}

func WithTTL(d time.Duration) Option {
	return func(o *options) {
		o.ttl = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func New[K comparable, V any](opts ...Option) *Cache[K, V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[K, V]{
		data: make(map[K]entry[V]),
		ttl:  o.ttl,
		now:  o.now,
	}
}

func (c *Cache[K, V]) expired(e entry[V], now time.Time) bool {
	return c.ttl > 0 && now.After(e.expires)
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	e, ok := c.data[key]
	if !ok || c.expired(e, c.now()) {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *Cache[K, V]) Set(key K, value V) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	now := c.now()
	c.evictLocked(now)
	c.data[key] = entry[V]{value: value, expires: now.Add(c.ttl)}
}

func (c *Cache[K, V]) evictLocked(now time.Time) {
	if c.ttl <= 0 {
		return
	}
	for k, e := range c.data {
		if c.expired(e, now) {
			delete(c.data, k)
		}
	}
}

func (c *Cache[K, V]) Delete(key K) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.data, key)
}

func (c *Cache[K, V]) Keys() []K {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	now := c.now()
	keys := make([]K, 0, len(c.data))
	for k, e := range c.data {
		if c.expired(e, now) {
			continue
		}
		keys = append(keys, k)
	}
	return keys
}

func (c *Cache[K, V]) Values() []V {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	now := c.now()
	values := make([]V, 0, len(c.data))
	for _, e := range c.data {
		if c.expired(e, now) {
			continue
		}
		values = append(values, e.value)
	}
	return values
}

func (c *Cache[K, V]) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.data = make(map[K]entry[V])
}

func (c *Cache[K, V]) Len() int {
	return len(c.Keys())
}
