// Package safemap provides a generic, sharded, thread-safe map used
// wherever a set or map is genuinely accessed from more than one goroutine
// (for instance the client workqueue's active-id set).
package safemap

import (
	"fmt"
	"runtime"

	csmap "github.com/mhmtszr/concurrent-swiss-map"
	"github.com/zeebo/xxh3"
)

// Map is a thread-safe generic map sharded for concurrent access.
type Map[K comparable, V any] struct {
	internal *csmap.CsMap[K, V]
}

// New creates a Map sharded across GOMAXPROCS shards, hashed with xxh3.
func New[K comparable, V any]() *Map[K, V] {
	shards := uint64(runtime.GOMAXPROCS(0))
	return &Map[K, V]{
		internal: csmap.Create(
			csmap.WithShardCount[K, V](shards),
			csmap.WithCustomHasher[K, V](func(key K) uint64 {
				return xxh3.HashString(fmt.Sprintf("%v", key))
			}),
		),
	}
}

// Set stores value under key.
func (m *Map[K, V]) Set(key K, value V) {
	m.internal.Store(key, value)
}

// SetIfAbsent stores value under key and reports true only if key was not
// already present, atomically with respect to other callers. Callers that
// need a check-then-set (the workqueue's dedup push) must use this instead
// of a separate Has/Set pair, which races under concurrent callers. Built
// on the shard's own SetIf, the same primitive the teacher's GetOrCompute
// uses to make its set conditional on the previous value.
func (m *Map[K, V]) SetIfAbsent(key K, value V) bool {
	var inserted bool
	m.internal.SetIf(key, func(_ V, found bool) (V, bool) {
		if found {
			return value, false
		}
		inserted = true
		return value, true
	})
	return inserted
}

// Get retrieves the value for key, if present.
func (m *Map[K, V]) Get(key K) (V, bool) {
	return m.internal.Load(key)
}

// Has reports whether key is present.
func (m *Map[K, V]) Has(key K) bool {
	_, ok := m.internal.Load(key)
	return ok
}

// Del removes key from the map.
func (m *Map[K, V]) Del(key K) {
	m.internal.Delete(key)
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int {
	return m.internal.Count()
}
