package resolver

import "sync"

// keyedLocks serializes work per package identity: only one in-flight
// transfer+install for a given owner/name at a time, while unrelated
// packages proceed concurrently.
type keyedLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func (k *keyedLocks) lock(id string) func() {
	k.mu.Lock()

	if k.m == nil {
		k.m = make(map[string]*sync.Mutex)
	}

	l, ok := k.m[id]
	if !ok {
		l = new(sync.Mutex)
		k.m[id] = l
	}

	k.mu.Unlock()

	l.Lock()

	return l.Unlock
}
