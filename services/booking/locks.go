package booking

import "sync"

// keyedMutex serializes callers per key so transitions on different slots or
// bookings never block each other. Entries are created on first use and kept
// for the life of the engine; cardinality is bounded by live slot and
// booking ids.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) Lock(key string) {
	k.get(key).Lock()
}

func (k *keyedMutex) Unlock(key string) {
	k.get(key).Unlock()
}

func (k *keyedMutex) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}
