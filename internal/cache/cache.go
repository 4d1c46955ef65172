// Package cache holds read responses for a caller-chosen time-to-live.
package cache

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type entry[V any] struct {
	val V
	at  time.Time
}

// Cache maps request keys to their last fetched value. Entries are only
// judged stale on lookup; nothing is swept or evicted.
type Cache[V any] struct {
	clock  Clock
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]entry[V]
}

func New[V any]() *Cache[V] {
	return NewWithClock[V](realClock{})
}

// NewWithClock creates a Cache with a custom clock (for testing).
func NewWithClock[V any](clock Clock) *Cache[V] {
	return &Cache[V]{
		clock:   clock,
		logger:  slog.Default(),
		entries: make(map[string]entry[V]),
	}
}

// Key builds the cache key for a request. The query string is part of path.
func Key(method, path string) string {
	if method == "" {
		method = "GET"
	}
	return strings.ToUpper(method) + ":" + path
}

// GetOrFetch returns the cached value for key when it is younger than ttl,
// otherwise it calls fetch and stores the result. force skips the lookup.
// Failed fetches are not stored.
//
// The lock is not held across fetch: concurrent misses on one key may both
// fetch, and the last write wins.
func (c *Cache[V]) GetOrFetch(ctx context.Context, key string, ttl time.Duration, force bool, fetch func(context.Context) (V, error)) (V, error) {
	if !force {
		c.mu.RLock()
		e, ok := c.entries[key]
		c.mu.RUnlock()
		if ok && c.clock.Now().Sub(e.at) < ttl {
			c.logger.Debug("cache hit", "key", key)
			return e.val, nil
		}
	}

	v, err := fetch(ctx)
	if err != nil {
		var zero V
		return zero, err
	}

	c.mu.Lock()
	c.entries[key] = entry[V]{val: v, at: c.clock.Now()}
	c.mu.Unlock()
	return v, nil
}

// Len reports the number of stored entries, stale ones included.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Purge drops every entry.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	c.entries = make(map[string]entry[V])
	c.mu.Unlock()
}
