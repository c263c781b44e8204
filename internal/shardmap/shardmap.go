// Package shardmap implements a fixed-shard concurrent map, the Go analogue
// of the original server's DashMap-backed stores. Each key hashes to one of
// a fixed number of shards; only that shard's mutex is held for a single-key
// operation, so unrelated keys never contend.
package shardmap

import (
	"hash/maphash"
	"sync"
)

const defaultShardCount = 32

// Map is a sharded map[string]V safe for concurrent use. The zero value is
// not usable; construct with New.
type Map[V any] struct {
	seed   maphash.Seed
	shards []*shard[V]
}

type shard[V any] struct {
	mu   sync.RWMutex
	data map[string]V
}

// New creates a Map with the default shard count.
func New[V any]() *Map[V] {
	return NewSized[V](defaultShardCount)
}

// NewSized creates a Map with the given number of shards. n is rounded up
// to at least 1.
func NewSized[V any](n int) *Map[V] {
	if n < 1 {
		n = 1
	}
	m := &Map[V]{
		seed:   maphash.MakeSeed(),
		shards: make([]*shard[V], n),
	}
	for i := range m.shards {
		m.shards[i] = &shard[V]{data: make(map[string]V)}
	}
	return m
}

func (m *Map[V]) shardFor(key string) *shard[V] {
	var h maphash.Hash
	h.SetSeed(m.seed)
	h.WriteString(key)
	return m.shards[h.Sum64()%uint64(len(m.shards))]
}

// Get returns the value stored for key, if any.
func (m *Map[V]) Get(key string) (v V, ok bool) {
	s := m.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok = s.data[key]
	return
}

// Set stores value for key, returning the previous value if one existed.
func (m *Map[V]) Set(key string, value V) (prev V, existed bool) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, existed = s.data[key]
	s.data[key] = value
	return
}

// Delete removes key, returning the removed value if one existed.
func (m *Map[V]) Delete(key string) (prev V, existed bool) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, existed = s.data[key]
	if existed {
		delete(s.data, key)
	}
	return
}

// Contains reports whether key is present.
func (m *Map[V]) Contains(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Update atomically loads, mutates, and stores the value for key under a
// single shard lock, letting callers implement read-modify-write operations
// (INCRBY, JSET, GEOADD) without a lost-update race. fn receives the current
// value and whether it existed, and returns the value to store and whether
// it should be stored at all.
func (m *Map[V]) Update(key string, fn func(cur V, existed bool) (next V, store bool)) (result V, existed bool) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, existed := s.data[key]
	next, store := fn(cur, existed)
	if store {
		s.data[key] = next
	}
	result = next
	return
}

// Len returns the total number of entries across all shards. It is an
// approximation under concurrent mutation.
func (m *Map[V]) Len() int {
	n := 0
	for _, s := range m.shards {
		s.mu.RLock()
		n += len(s.data)
		s.mu.RUnlock()
	}
	return n
}

// Clear removes every entry and returns the count removed.
func (m *Map[V]) Clear() int {
	n := 0
	for _, s := range m.shards {
		s.mu.Lock()
		n += len(s.data)
		s.data = make(map[string]V)
		s.mu.Unlock()
	}
	return n
}

// Keys returns a snapshot slice of all keys. It is an approximation under
// concurrent mutation, consistent with the logical-copy discipline used by
// the snapshot engine.
func (m *Map[V]) Keys() []string {
	keys := make([]string, 0, m.Len())
	for _, s := range m.shards {
		s.mu.RLock()
		for k := range s.data {
			keys = append(keys, k)
		}
		s.mu.RUnlock()
	}
	return keys
}

// Clone returns a shallow copy of the whole map as a plain Go map, taking
// each shard's read lock in turn. This is the "logical copy" the snapshot
// engine relies on: consistent per-key, not a single cross-shard critical
// section.
func (m *Map[V]) Clone() map[string]V {
	out := make(map[string]V, m.Len())
	for _, s := range m.shards {
		s.mu.RLock()
		for k, v := range s.data {
			out[k] = v
		}
		s.mu.RUnlock()
	}
	return out
}

// Range calls fn for every entry, stopping early if fn returns false. As
// with Keys and Clone, this walks shard by shard and is not a single
// atomic snapshot of the whole map.
func (m *Map[V]) Range(fn func(key string, value V) bool) {
	for _, s := range m.shards {
		s.mu.RLock()
		for k, v := range s.data {
			if !fn(k, v) {
				s.mu.RUnlock()
				return
			}
		}
		s.mu.RUnlock()
	}
}
