package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type countingResolver struct {
	calls int
}

func (r *countingResolver) ResolvePreloads(requested string, nativeDeps []string) []string {
	r.calls++
	return append([]string{requested}, nativeDeps...)
}

func TestPreloadCacheHitAndMiss(t *testing.T) {
	c := NewPreloadCache(4)

	_, hit := c.Get("a.js", nil)
	assert.False(t, hit)

	c.Put("a.js", nil, []string{"x"})
	deps, hit := c.Get("a.js", nil)
	assert.True(t, hit)
	assert.Equal(t, []string{"x"}, deps)

	_, hit = c.Get("a.js", []string{"b.js"})
	assert.False(t, hit, "native deps are part of the key")

	c.Put("missing.js", nil, []string{})
	deps, hit = c.Get("missing.js", nil)
	assert.True(t, hit)
	assert.NotNil(t, deps)
	assert.Empty(t, deps)
}

func TestPreloadCacheReturnsCopies(t *testing.T) {
	c := NewPreloadCache(4)
	c.Put("a.js", nil, []string{"x"})

	deps, _ := c.Get("a.js", nil)
	deps[0] = "mutated"

	again, _ := c.Get("a.js", nil)
	assert.Equal(t, []string{"x"}, again)
}

func TestPreloadCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewPreloadCache(2)
	c.Put("a", nil, []string{"a"})
	c.Put("b", nil, []string{"b"})

	c.Get("a", nil)
	c.Put("c", nil, []string{"c"})

	assert.Equal(t, 2, c.Size())
	_, hit := c.Get("b", nil)
	assert.False(t, hit)
	_, hit = c.Get("a", nil)
	assert.True(t, hit)
}

func TestPreloadCacheInvalidate(t *testing.T) {
	c := NewPreloadCache(2)
	c.Put("a", nil, []string{"a"})
	c.Invalidate()

	assert.Equal(t, 0, c.Size())
	_, hit := c.Get("a", nil)
	assert.False(t, hit)
}

func TestPreloadCacheOrderTracksEntriesUnderContention(t *testing.T) {
	c := NewPreloadCache(8)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("chunk-%d.js", (i+w)%16)
				c.Put(key, nil, []string{key})
				c.Get(key, nil)
				if i%50 == 0 {
					c.Invalidate()
				}
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, c.Size(), c.orderLen())
	assert.LessOrEqual(t, c.orderLen(), 8)
}

func TestCachedResolver(t *testing.T) {
	inner := &countingResolver{}
	r := NewCachedResolver(inner, NewPreloadCache(8))

	first := r.ResolvePreloads("a.js", []string{"n"})
	second := r.ResolvePreloads("a.js", []string{"n"})

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)

	r.ResolvePreloads("b.js", nil)
	assert.Equal(t, 2, inner.calls)
}
