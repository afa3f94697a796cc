// Package locks provides mutexes keyed by an identifier.
package locks

import "sync"

// Keyed hands out one mutex per key. A key's mutex exists only while some caller
// holds it or waits for it, so the map never grows past the keys in use.
// The zero value is ready to use.
type Keyed[K comparable] struct {
	mu      sync.Mutex
	entries map[K]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// Lock blocks until the mutex of key is held and returns the function that
// releases it.
func (k *Keyed[K]) Lock(key K) (unlock func()) {
	k.mu.Lock()
	if k.entries == nil {
		k.entries = make(map[K]*entry)
	}
	e, ok := k.entries[key]
	if !ok {
		e = &entry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}

// Len is the number of keys currently held or waited on.
func (k *Keyed[K]) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
