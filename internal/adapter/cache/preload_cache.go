package cache

import (
	"strings"
	"sync"

	"github.com/zeebo/xxh3"
)

// PreloadCache memoises preload lists per requested path. Entries are tied
// to a registry generation; Invalidate starts a new one.
type PreloadCache struct {
	mu      sync.RWMutex
	entries map[uint64]*cacheEntry
	order   []uint64
	maxSize int
	gen     uint64
}

type cacheEntry struct {
	deps []string
	gen  uint64
}

func NewPreloadCache(maxSize int) *PreloadCache {
	if maxSize <= 0 {
		maxSize = 256
	}
	return &PreloadCache{
		entries: make(map[uint64]*cacheEntry),
		order:   make([]uint64, 0, maxSize),
		maxSize: maxSize,
	}
}

func cacheKey(requested string, nativeDeps []string) uint64 {
	return xxh3.HashString(requested + "\x00" + strings.Join(nativeDeps, "\x00"))
}

func (c *PreloadCache) Get(requested string, nativeDeps []string) ([]string, bool) {
	key := cacheKey(requested, nativeDeps)

	c.mu.RLock()
	entry, exists := c.entries[key]
	currentGen := c.gen
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}

	if entry.gen != currentGen {
		c.mu.Lock()
		if c.entries[key] == entry {
			delete(c.entries, key)
			c.removeFromOrder(key)
		}
		c.mu.Unlock()
		return nil, false
	}

	// The entry may have been evicted or invalidated since the read lock was
	// released; only live keys are reordered.
	c.mu.Lock()
	if _, live := c.entries[key]; live {
		c.moveToEnd(key)
	}
	c.mu.Unlock()

	deps := make([]string, len(entry.deps))
	copy(deps, entry.deps)
	return deps, true
}

// orderLen reports the length of the recency list.
func (c *PreloadCache) orderLen() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

func (c *PreloadCache) Put(requested string, nativeDeps []string, deps []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(requested, nativeDeps)
	stored := &cacheEntry{deps: make([]string, len(deps)), gen: c.gen}
	copy(stored.deps, deps)

	if _, exists := c.entries[key]; exists {
		c.entries[key] = stored
		c.moveToEnd(key)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[key] = stored
	c.order = append(c.order, key)
}

// Invalidate drops every entry. Call it when a new registry is installed.
func (c *PreloadCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[uint64]*cacheEntry)
	c.order = c.order[:0]
	c.gen++
}

func (c *PreloadCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *PreloadCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *PreloadCache) moveToEnd(key uint64) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *PreloadCache) removeFromOrder(key uint64) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// Resolver is anything that answers preload queries.
type Resolver interface {
	ResolvePreloads(requested string, nativeDeps []string) []string
}

type CachedResolver struct {
	resolver Resolver
	cache    *PreloadCache
}

func NewCachedResolver(resolver Resolver, cache *PreloadCache) *CachedResolver {
	return &CachedResolver{
		resolver: resolver,
		cache:    cache,
	}
}

func (r *CachedResolver) ResolvePreloads(requested string, nativeDeps []string) []string {
	if deps, hit := r.cache.Get(requested, nativeDeps); hit {
		return deps
	}

	deps := r.resolver.ResolvePreloads(requested, nativeDeps)
	r.cache.Put(requested, nativeDeps, deps)
	return deps
}
