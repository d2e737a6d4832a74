// Package keylock serializes work per key while letting different keys proceed in parallel.
package keylock

import (
	"hash/fnv"
	"sync"
)

const defaultStripes = 256

// Map is a fixed set of mutexes selected by key hash. Two keys may share a stripe;
// that only costs parallelism, never correctness.
type Map struct {
	stripes []sync.Mutex
}

// New returns a Map with n stripes; n <= 0 selects a default.
func New(n int) *Map {
	if n <= 0 {
		n = defaultStripes
	}
	return &Map{stripes: make([]sync.Mutex, n)}
}

// Lock acquires the lock for key and returns its release func.
func (m *Map) Lock(key string) (unlock func()) {
	mu := &m.stripes[m.index(key)]
	mu.Lock()
	return mu.Unlock
}

func (m *Map) index(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(m.stripes)))
}
