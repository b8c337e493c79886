// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package memcache is an in-memory, TTL-expiring reference implementation
// of conncache.Cache, grounded on the teacher's flow manager shape: a
// simple mutex-guarded map good enough for tests and the demo binary, not
// for production (no eviction beyond lazy expiry-on-read).
package memcache

import (
	"sync"
	"time"

	"grimm.is/midonet/internal/conncache"
)

type entry struct {
	marker  conncache.Marker
	expires time.Time
}

// Cache is a thread-safe in-memory conncache.Cache.
type Cache struct {
	mu      sync.Mutex
	entries map[conncache.Key]entry
	now     func() time.Time
}

// New returns an empty Cache using wall-clock time.
func New() *Cache {
	return &Cache{
		entries: make(map[conncache.Key]entry),
		now:     time.Now,
	}
}

// NewWithClock returns an empty Cache whose notion of "now" is supplied by
// now, for deterministic tests.
func NewWithClock(now func() time.Time) *Cache {
	return &Cache{
		entries: make(map[conncache.Key]entry),
		now:     now,
	}
}

func (c *Cache) Put(key conncache.Key, marker conncache.Marker, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{marker: marker, expires: c.now().Add(ttl)}
}

func (c *Cache) Get(key conncache.Key) (conncache.Marker, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return conncache.Marker{}, false
	}
	if c.now().After(e.expires) {
		delete(c.entries, key)
		return conncache.Marker{}, false
	}
	return e.marker, true
}
