package cache

import (
	"sync"
	"sync/atomic"
)

// DefaultShards is the shard count used when a caller asks for zero or fewer.
const DefaultShards = 16

type shard[V any] struct {
	items   sync.Map   // string -> V
	buildMu sync.Mutex // guards the build step only, never reads
}

// Compiled caches callables whose construction is comparatively expensive.
//
// Reads are lock-free. A miss takes the build mutex of the key's shard,
// re-checks, builds and stores, so concurrent misses on one shard wait for
// each other while other shards proceed. Builders must not call back into the
// same Compiled cache: they run while the shard mutex is held.
type Compiled[V any] struct {
	shards []*shard[V]
	builds atomic.Int64
}

// NewCompiled creates a cache split into n shards.
func NewCompiled[V any](n int) *Compiled[V] {
	if n <= 0 {
		n = DefaultShards
	}
	c := &Compiled[V]{shards: make([]*shard[V], n)}
	for i := range c.shards {
		c.shards[i] = &shard[V]{}
	}
	return c
}

func (c *Compiled[V]) shardFor(key string) *shard[V] {
	return c.shards[Fingerprint(key)%uint64(len(c.shards))]
}

// Load returns the callable cached under key.
func (c *Compiled[V]) Load(key string) (V, bool) {
	if raw, ok := c.shardFor(key).items.Load(key); ok {
		return raw.(V), true
	}
	var zero V
	return zero, false
}

// Store caches value under key, replacing any earlier entry.
func (c *Compiled[V]) Store(key string, value V) {
	c.shardFor(key).items.Store(key, value)
}

// GetOrBuild returns the cached callable for key or builds and caches it.
// A failed build caches nothing.
func (c *Compiled[V]) GetOrBuild(key string, build func() (V, error)) (V, error) {
	s := c.shardFor(key)

	// Fast path: lock-free read
	if raw, ok := s.items.Load(key); ok {
		return raw.(V), nil
	}

	// Slow path: build under the shard lock
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	// Double-check after acquiring the lock
	if raw, ok := s.items.Load(key); ok {
		return raw.(V), nil
	}

	value, err := build()
	if err != nil {
		var zero V
		return zero, err
	}
	c.builds.Add(1)
	s.items.Store(key, value)
	return value, nil
}

// Builds returns how many successful builds were stored.
func (c *Compiled[V]) Builds() int64 {
	return c.builds.Load()
}

// Len counts cached callables across all shards.
func (c *Compiled[V]) Len() int {
	n := 0
	for _, s := range c.shards {
		s.items.Range(func(_, _ any) bool {
			n++
			return true
		})
	}
	return n
}

// Clear drops every cached callable.
func (c *Compiled[V]) Clear() {
	for _, s := range c.shards {
		s.items.Clear()
	}
}
