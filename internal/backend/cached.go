// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package backend

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"
)

// cacheValue is a cached lookup result. Found=false entries cache absence.
type cacheValue struct {
	Value any
	Found bool
}

// Cached wraps another backend with a TTL cache. Absent names are cached
// too, writes through Cached invalidate the written name, and backend
// errors are never cached. Concurrent misses for one name share a single
// inner Get. A read that overlaps a write or invalidation returns what it
// read but does not cache it.
type Cached struct {
	inner Backend
	cache *ttlcache.Cache[string, cacheValue]
	loads singleflight.Group

	// mu orders cache fills against invalidations; generation counts
	// invalidations.
	mu         sync.Mutex
	generation uint64
}

var (
	_ Backend = (*Cached)(nil)
	_ Lister  = (*Cached)(nil)
	_ Deleter = (*Cached)(nil)
)

// NewCached starts the cache's expiry goroutine; call Close to stop it.
func NewCached(inner Backend, ttl time.Duration) *Cached {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, cacheValue](ttl),
		ttlcache.WithDisableTouchOnHit[string, cacheValue](),
	)
	go cache.Start()
	return &Cached{
		inner: inner,
		cache: cache,
	}
}

// Close stops the cache background goroutine and releases resources.
func (c *Cached) Close() {
	c.cache.Stop()
}

// Get reads through the cache.
func (c *Cached) Get(ctx context.Context, name string) (any, bool, error) {
	if item := c.cache.Get(name); item != nil {
		recordLookups(ctx, "hit", 1)
		cached := item.Value()
		return cached.Value, cached.Found, nil
	}
	recordLookups(ctx, "miss", 1)

	res, err, _ := c.loads.Do(name, func() (any, error) {
		gen := c.currentGeneration()
		v, found, err := c.inner.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		cv := cacheValue{Value: v, Found: found}
		c.fill(gen, map[string]cacheValue{name: cv})
		return cv, nil
	})
	if err != nil {
		return nil, false, err
	}
	cached := res.(cacheValue)
	return cached.Value, cached.Found, nil
}

// GetMany serves what it can from the cache and fetches every miss with a
// single inner GetMany.
func (c *Cached) GetMany(ctx context.Context, names []string) (map[string]any, error) {
	out := make(map[string]any, len(names))
	var misses []string
	for _, name := range names {
		item := c.cache.Get(name)
		if item == nil {
			misses = append(misses, name)
			continue
		}
		if cached := item.Value(); cached.Found {
			out[name] = cached.Value
		}
	}
	recordLookups(ctx, "hit", len(names)-len(misses))
	recordLookups(ctx, "miss", len(misses))
	if len(misses) == 0 {
		return out, nil
	}

	gen := c.currentGeneration()
	fetched, err := c.inner.GetMany(ctx, misses)
	if err != nil {
		return nil, err
	}
	entries := make(map[string]cacheValue, len(misses))
	for _, name := range misses {
		v, found := fetched[name]
		entries[name] = cacheValue{Value: v, Found: found}
		if found {
			out[name] = v
		}
	}
	c.fill(gen, entries)
	return out, nil
}

func (c *Cached) currentGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// fill caches entries read at generation gen, unless an invalidation has
// happened since.
func (c *Cached) fill(gen uint64, entries map[string]cacheValue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return
	}
	for name, cv := range entries {
		c.cache.Set(name, cv, ttlcache.DefaultTTL)
	}
}

// invalidate drops names, or every entry when names is nil, and makes
// in-flight reads skip caching.
func (c *Cached) invalidate(names []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	if names == nil {
		c.cache.DeleteAll()
		return
	}
	for _, name := range names {
		c.loads.Forget(name)
		c.cache.Delete(name)
	}
}

// Set writes through to the inner backend and drops the cached entry.
func (c *Cached) Set(ctx context.Context, name string, value any) error {
	if err := c.inner.Set(ctx, name, value); err != nil {
		return err
	}
	c.invalidate([]string{name})
	return nil
}

// Keys lists the inner backend's stored names, bypassing the cache.
func (c *Cached) Keys(ctx context.Context) ([]string, error) {
	l, ok := c.inner.(Lister)
	if !ok {
		return nil, ErrUnsupported
	}
	return l.Keys(ctx)
}

// Delete removes names from the inner backend and the cache.
func (c *Cached) Delete(ctx context.Context, names []string) (int64, error) {
	d, ok := c.inner.(Deleter)
	if !ok {
		return 0, ErrUnsupported
	}
	n, err := d.Delete(ctx, names)
	c.invalidate(names)
	return n, err
}

// InvalidateCache drops every cached entry.
func (c *Cached) InvalidateCache() {
	c.invalidate(nil)
}
