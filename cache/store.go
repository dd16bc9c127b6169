package cache

import (
	"sync"
	"sync/atomic"
)

// entry is what a Store keeps per key. found=false is a negative entry:
// the key was resolved and nothing exists for it.
type entry[V any] struct {
	value V
	found bool
}

// Store is an append-only, lock-free cache for plain metadata lookups.
//
// A miss runs the resolver without any exclusion and stores its outcome,
// including "not found". Two goroutines missing the same key at once may both
// resolve it; the resolver must be a pure function of the key so the last
// write is equivalent to the first.
type Store[K comparable, V any] struct {
	m      sync.Map // map[K]entry[V]
	misses atomic.Int64
}

// Load returns the cached outcome for key. cached reports whether the key has
// been resolved at all; found is the stored outcome.
func (s *Store[K, V]) Load(key K) (value V, found, cached bool) {
	raw, ok := s.m.Load(key)
	if !ok {
		return value, false, false
	}
	e := raw.(entry[V])
	return e.value, e.found, true
}

// LoadOrResolve returns the cached outcome for key, calling resolve on a miss
// and caching whatever it returns.
func (s *Store[K, V]) LoadOrResolve(key K, resolve func() (V, bool)) (V, bool) {
	if raw, ok := s.m.Load(key); ok {
		e := raw.(entry[V])
		return e.value, e.found
	}

	s.misses.Add(1)
	value, found := resolve()
	s.m.Store(key, entry[V]{value: value, found: found})
	return value, found
}

// Put stores a found value for key, replacing any earlier entry.
func (s *Store[K, V]) Put(key K, value V) {
	s.m.Store(key, entry[V]{value: value, found: true})
}

// Misses returns how many times a resolver ran.
func (s *Store[K, V]) Misses() int64 {
	return s.misses.Load()
}

// Len counts cached keys, negative entries included.
func (s *Store[K, V]) Len() int {
	n := 0
	s.m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Clear drops every entry. The miss counter is kept so probes stay monotonic.
func (s *Store[K, V]) Clear() {
	s.m.Clear()
}
