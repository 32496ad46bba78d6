// Package cache provides a small in-memory TTL cache with
// stale-while-revalidate semantics and singleflight loading. The wallet uses
// it for store-price lookups, where overlapping product sets are requested by
// different sheets and prices change rarely.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Options tune cache behavior.
type Options struct {
	TTL                  time.Duration
	StaleWhileRevalidate time.Duration
	NegativeTTL          time.Duration
	MaxEntries           int
}

// Hooks are optional observation callbacks, keyed by cache key.
type Hooks struct {
	OnHit   func(key string)
	OnMiss  func(key string)
	OnStale func(key string)
	OnStore func(key string, ok bool)
}

type entry[V any] struct {
	value     V
	err       error
	expiresAt time.Time
	staleAt   time.Time
	negative  bool
}

// Cache is a TTL cache over values of type V.
type Cache[V any] struct {
	mu    sync.RWMutex
	items map[string]*entry[V]
	order []string
	opts  Options
	hooks Hooks
	sf    singleflight.Group
}

// New builds an empty cache.
func New[V any](opts Options, hooks Hooks) *Cache[V] {
	return &Cache[V]{
		items: make(map[string]*entry[V]),
		order: make([]string, 0, 64),
		opts:  opts,
		hooks: hooks,
	}
}

// Loader fetches the value for a key on a miss. ok=false with an error caches
// a negative entry (when NegativeTTL > 0).
type Loader[V any] func(ctx context.Context, key string) (V, bool, error)

type loadResult[V any] struct {
	val V
	ok  bool
	err error
}

// Get returns the cached value for key, loading it on a miss. A stale entry
// is returned immediately while one background refresh runs.
func (c *Cache[V]) Get(ctx context.Context, key string, loader Loader[V]) (V, bool, error) {
	now := time.Now()
	c.mu.RLock()
	if e, ok := c.items[key]; ok {
		if now.Before(e.expiresAt) {
			val, neg, err := e.value, e.negative, e.err
			c.mu.RUnlock()
			if c.hooks.OnHit != nil {
				c.hooks.OnHit(key)
			}
			if neg {
				var zero V
				return zero, false, err
			}
			return val, true, nil
		}
		if now.Before(e.staleAt) {
			val, neg, err := e.value, e.negative, e.err
			c.mu.RUnlock()
			if c.hooks.OnStale != nil {
				c.hooks.OnStale(key)
			}
			go func() {
				_, _, _ = c.sf.Do("refresh:"+key, func() (interface{}, error) {
					v, ok, lerr := loader(context.WithoutCancel(ctx), key)
					c.store(key, v, ok, lerr)
					return nil, nil
				})
			}()
			if neg {
				var zero V
				return zero, false, err
			}
			return val, true, nil
		}
		// Hard expired: drop and load synchronously
		c.mu.RUnlock()
		c.mu.Lock()
		delete(c.items, key)
		c.removeFromOrder(key)
		c.mu.Unlock()
	} else {
		c.mu.RUnlock()
	}

	if c.hooks.OnMiss != nil {
		c.hooks.OnMiss(key)
	}
	result, _, _ := c.sf.Do(key, func() (interface{}, error) {
		val, ok, err := loader(ctx, key)
		c.store(key, val, ok, err)
		return loadResult[V]{val: val, ok: ok, err: err}, nil
	})
	res := result.(loadResult[V])
	if !res.ok {
		var zero V
		return zero, false, res.err
	}
	return res.val, true, nil
}

func (c *Cache[V]) store(key string, val V, ok bool, err error) {
	now := time.Now()
	e := &entry[V]{}
	if ok {
		e.value = val
		e.expiresAt = now.Add(c.opts.TTL)
		e.staleAt = e.expiresAt.Add(c.opts.StaleWhileRevalidate)
	} else {
		if c.opts.NegativeTTL <= 0 {
			// Do not store negatives
			return
		}
		e.err = err
		e.negative = true
		e.expiresAt = now.Add(c.opts.NegativeTTL)
		e.staleAt = e.expiresAt
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.items[key]; !exists {
		c.order = append(c.order, key)
	}
	c.items[key] = e
	c.evictIfNeeded()
	if c.hooks.OnStore != nil {
		c.hooks.OnStore(key, ok)
	}
}

func (c *Cache[V]) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func (c *Cache[V]) evictIfNeeded() {
	if c.opts.MaxEntries <= 0 || len(c.items) <= c.opts.MaxEntries {
		return
	}
	// FIFO eviction
	excess := len(c.items) - c.opts.MaxEntries
	for excess > 0 && len(c.order) > 0 {
		victim := c.order[0]
		c.order = c.order[1:]
		delete(c.items, victim)
		excess--
	}
}

// Set stores a value directly with the given ttl.
func (c *Cache[V]) Set(key string, val V, ttl time.Duration) {
	now := time.Now()
	e := &entry[V]{value: val, expiresAt: now.Add(ttl), staleAt: now.Add(ttl).Add(c.opts.StaleWhileRevalidate)}
	c.mu.Lock()
	if _, exists := c.items[key]; !exists {
		c.order = append(c.order, key)
	}
	c.items[key] = e
	c.evictIfNeeded()
	c.mu.Unlock()
}

// Peek returns a cached value without triggering a load. Stale entries are allowed.
func (c *Cache[V]) Peek(key string) (V, bool) {
	now := time.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.items[key]
	if !ok || e.negative || now.After(e.staleAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Delete drops a key.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.removeFromOrder(key)
	c.mu.Unlock()
}

// Len reports the number of live entries.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
