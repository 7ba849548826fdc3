// Package cache holds the last-known list of records per scope key (a user id
// for notifications, an org id for the feed). Entries live only for the
// process lifetime and are evicted after a fixed idle period.
package cache

import (
	"sync"
	"time"
)

type entry[T any] struct {
	records []T
	touched time.Time
}

// Cache is a keyed store of ordered record lists. Get, Set and Patch each run
// under the lock, so concurrent writers never observe a torn intermediate
// list; updates are last-writer-wins per scope key.
type Cache[T any] struct {
	mu      sync.Mutex
	entries map[string]*entry[T]
	idleTTL time.Duration

	stopOnce sync.Once
	stop     chan struct{}
}

// New creates a Cache whose entries are garbage-collected after idleTTL
// without access. An idleTTL of zero disables eviction.
func New[T any](idleTTL time.Duration) *Cache[T] {
	c := &Cache[T]{
		entries: make(map[string]*entry[T]),
		idleTTL: idleTTL,
		stop:    make(chan struct{}),
	}
	if idleTTL > 0 {
		go c.janitor()
	}
	return c
}

// Get returns a copy of the list stored under scope, or false when the scope
// has no entry. The copy keeps callers from aliasing the cached slice.
func (c *Cache[T]) Get(scope string) ([]T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[scope]
	if !ok {
		return nil, false
	}
	e.touched = time.Now()
	out := make([]T, len(e.records))
	copy(out, e.records)
	return out, true
}

// Set fully replaces the list stored under scope.
func (c *Cache[T]) Set(scope string, records []T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[scope] = &entry[T]{records: records, touched: time.Now()}
}

// Patch applies fn to the list stored under scope and stores the result. When
// the scope has no entry the patch is a no-op: a patch never fabricates a
// list from nothing, which also silently drops results that resolve after
// their scope was evicted. fn must treat its input as read-only and return a
// fresh slice when it changes anything.
func (c *Cache[T]) Patch(scope string, fn func([]T) []T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[scope]
	if !ok {
		return
	}
	e.records = fn(e.records)
	e.touched = time.Now()
}

// Delete removes the entry stored under scope, if any.
func (c *Cache[T]) Delete(scope string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, scope)
}

// Close stops the janitor goroutine.
func (c *Cache[T]) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache[T]) janitor() {
	interval := c.idleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.evictIdle(time.Now())
		case <-c.stop:
			return
		}
	}
}

func (c *Cache[T]) evictIdle(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for scope, e := range c.entries {
		if now.Sub(e.touched) > c.idleTTL {
			delete(c.entries, scope)
		}
	}
}
