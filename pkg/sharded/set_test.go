package sharded

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSet_Basic tests the fundamental Store, Has, and Take operations.
func TestSet_Basic(t *testing.T) {
	s := NewSet()
	key := "test_key"

	// 1. Has on a non-existent key
	assert.False(t, s.Has(key))

	// 2. Store and Has
	s.Store(key)
	assert.True(t, s.Has(key))

	// 3. Store on an existing key
	s.Store(key)
	assert.Equal(t, 1, s.Count())

	// 4. Take
	assert.True(t, s.Take(key))
	assert.False(t, s.Has(key))

	// 5. Take on a non-existent key
	assert.False(t, s.Take(key))
	assert.Equal(t, 0, s.Count())
}

func TestSet_Keys(t *testing.T) {
	s := NewSetWithShards(8)
	keys := []string{"key1", "key2", "another_key", "long/path/style/key"}
	for _, key := range keys {
		s.Store(key)
	}

	got := s.Keys()
	sort.Strings(got)
	want := append([]string(nil), keys...)
	sort.Strings(want)
	assert.Equal(t, want, got)
	assert.Equal(t, len(keys), s.Count())
}

func TestNewSetWithShards_PanicsOnBadCount(t *testing.T) {
	assert.Panics(t, func() { NewSetWithShards(3) })
	assert.Panics(t, func() { NewSetWithShards(0) })
	assert.NotPanics(t, func() { NewSetWithShards(8) })
}

// TestSet_ConcurrentTake checks that concurrent erasure of overlapping keys
// never hands the same key to two goroutines.
func TestSet_ConcurrentTake(t *testing.T) {
	s := NewSet()
	const numKeys = 2000
	for i := 0; i < numKeys; i++ {
		s.Store(fmt.Sprintf("dir/file_%d", i))
	}

	var taken atomic.Int64
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < numKeys; i++ {
				if s.Take(fmt.Sprintf("dir/file_%d", i)) {
					taken.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(numKeys), taken.Load())
	assert.Equal(t, 0, s.Count())
}

func TestMap_Basic(t *testing.T) {
	m := NewMap[error]()
	_, ok := m.Load("a")
	assert.False(t, ok)

	errA := fmt.Errorf("boom")
	m.Store("a", errA)
	v, ok := m.Load("a")
	require.True(t, ok)
	assert.Equal(t, errA, v)

	m.Store("b", nil)
	assert.Equal(t, 2, m.Count())

	seen := map[string]bool{}
	m.Range(func(k string, _ error) bool {
		seen[k] = true
		return true
	})
	assert.Equal(t, map[string]bool{"a": true, "b": true}, seen)

	visited := 0
	m.Range(func(string, error) bool {
		visited++
		return false
	})
	assert.Equal(t, 1, visited)
}

func TestMap_LoadAndDeleteKeys(t *testing.T) {
	m := NewMapWithShards[int](4)
	m.Store("x", 1)
	m.Store("y", 2)
	assert.ElementsMatch(t, []string{"x", "y"}, m.Keys())

	v, loaded := m.LoadAndDelete("x")
	assert.True(t, loaded)
	assert.Equal(t, 1, v)
	_, loaded = m.LoadAndDelete("x")
	assert.False(t, loaded)
	assert.Equal(t, 1, m.Count())

	assert.Panics(t, func() { NewMapWithShards[int](6) })
}
