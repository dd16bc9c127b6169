package cache

import (
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =========================================================================
// Store Tests
// =========================================================================

func TestStoreCachesNegativeEntries(t *testing.T) {
	var s Store[string, int]
	calls := 0
	resolve := func() (int, bool) {
		calls++
		return 0, false
	}

	_, found := s.LoadOrResolve("missing", resolve)
	assert.False(t, found)
	_, found = s.LoadOrResolve("missing", resolve)
	assert.False(t, found)

	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(1), s.Misses())

	_, found, cached := s.Load("missing")
	assert.False(t, found)
	assert.True(t, cached)
}

func TestStoreClear(t *testing.T) {
	var s Store[string, int]
	s.Put("a", 1)
	s.LoadOrResolve("b", func() (int, bool) { return 2, true })
	assert.Equal(t, 2, s.Len())

	s.Clear()
	assert.Equal(t, 0, s.Len())

	_, _, cached := s.Load("a")
	assert.False(t, cached)
}

// =========================================================================
// Compiled Tests
// =========================================================================

func TestCompiledGetOrBuild(t *testing.T) {
	c := NewCompiled[string](4)

	v, err := c.GetOrBuild("k", func() (string, error) { return "built", nil })
	require.NoError(t, err)
	assert.Equal(t, "built", v)

	v, err = c.GetOrBuild("k", func() (string, error) { return "rebuilt", nil })
	require.NoError(t, err)
	assert.Equal(t, "built", v)
	assert.Equal(t, int64(1), c.Builds())
}

func TestCompiledFailedBuildIsNotCached(t *testing.T) {
	c := NewCompiled[int](0)
	boom := errors.New("boom")

	_, err := c.GetOrBuild("k", func() (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)

	_, ok := c.Load("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCompiledConcurrentBuilds(t *testing.T) {
	const numGoroutines = 32

	c := NewCompiled[int](8)
	var built atomic.Int64
	var wg sync.WaitGroup
	startBarrier := make(chan struct{})
	results := make(chan int, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-startBarrier
			v, err := c.GetOrBuild("shared", func() (int, error) {
				built.Add(1)
				return 42, nil
			})
			if err == nil {
				results <- v
			}
		}()
	}

	close(startBarrier)
	wg.Wait()
	close(results)

	count := 0
	for v := range results {
		assert.Equal(t, 42, v)
		count++
	}
	assert.Equal(t, numGoroutines, count)
	assert.GreaterOrEqual(t, built.Load(), int64(1))
	assert.Equal(t, 1, c.Len())
}

func TestKeyAndFingerprint(t *testing.T) {
	k1 := Key(KindGetter, "geo.Point", "X", "int")
	k2 := Key(KindSetter, "geo.Point", "X", "int")

	assert.Equal(t, "get|geo.Point|X|int", k1)
	assert.NotEqual(t, k1, k2)
	assert.Equal(t, Fingerprint(k1), Fingerprint("get|geo.Point|X|int"))
	assert.Equal(t, "unknown", Kind(200).String())
}

func TestTypeID(t *testing.T) {
	type local struct{ A int }
	outer := reflect.TypeFor[local]()

	func() {
		type local struct{ B string }
		inner := reflect.TypeFor[local]()
		assert.Equal(t, outer.String(), inner.String())
		assert.NotEqual(t, TypeID(outer), TypeID(inner))
	}()

	assert.Equal(t, TypeID(outer), TypeID(outer))
	assert.Equal(t, "nil", TypeID(nil))
}
