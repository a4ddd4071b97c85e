package sharded

import "sync"

type mapShard[V any] struct {
	mu    sync.RWMutex
	items map[string]V
}

// Map is a concurrent string-keyed map.
type Map[V any] struct {
	shards []*mapShard[V]
}

// NewMap returns an empty Map with DefaultShards shards.
func NewMap[V any]() *Map[V] {
	return NewMapWithShards[V](DefaultShards)
}

// NewMapWithShards returns an empty Map. numShards must be a power of two.
func NewMapWithShards[V any](numShards int) *Map[V] {
	checkShardCount(numShards)
	m := &Map[V]{shards: make([]*mapShard[V], numShards)}
	for i := range m.shards {
		m.shards[i] = &mapShard[V]{items: make(map[string]V)}
	}
	return m
}

func (m *Map[V]) shardFor(key string) *mapShard[V] {
	return m.shards[getShardIndex(key, len(m.shards))]
}

func (m *Map[V]) Store(key string, value V) {
	shard := m.shardFor(key)
	shard.mu.Lock()
	shard.items[key] = value
	shard.mu.Unlock()
}

func (m *Map[V]) Load(key string) (value V, ok bool) {
	shard := m.shardFor(key)
	shard.mu.RLock()
	value, ok = shard.items[key]
	shard.mu.RUnlock()
	return value, ok
}

// LoadAndDelete removes key and returns its previous value. Check and removal
// happen under the shard lock, so concurrent callers for one key see loaded
// true exactly once.
func (m *Map[V]) LoadAndDelete(key string) (value V, loaded bool) {
	shard := m.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	value, loaded = shard.items[key]
	if loaded {
		delete(shard.items, key)
	}
	return value, loaded
}

// Count returns the total number of entries. It is not a consistent snapshot
// while writers are active.
func (m *Map[V]) Count() int {
	count := 0
	for i := range m.shards {
		count += m.shardLen(i)
	}
	return count
}

func (m *Map[V]) shardLen(i int) int {
	shard := m.shards[i]
	shard.mu.RLock()
	defer shard.mu.RUnlock()
	return len(shard.items)
}

// Keys returns all keys in no particular order.
func (m *Map[V]) Keys() []string {
	keys := make([]string, 0, m.Count())
	m.Range(func(k string, _ V) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

// Range calls f for each entry, one shard at a time, until f returns false.
// f must not modify the map.
func (m *Map[V]) Range(f func(key string, value V) bool) {
	for _, shard := range m.shards {
		shard.mu.RLock()
		for k, v := range shard.items {
			if !f(k, v) {
				shard.mu.RUnlock()
				return
			}
		}
		shard.mu.RUnlock()
	}
}
