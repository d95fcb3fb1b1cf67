package orders

import "sync"

// keyedMutex hands out one mutex per string key so unrelated keys never block
// each other. Entries are reference-counted and dropped when idle.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{entries: make(map[string]*keyLock)}
}

func (k *keyedMutex) lock(key string) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &keyLock{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
}

func (k *keyedMutex) unlock(key string) {
	k.mu.Lock()
	e := k.entries[key]
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
	k.mu.Unlock()

	e.mu.Unlock()
}

// lockAll acquires the given keys in sorted order, which makes concurrent
// multi-key holders deadlock-free. Keys must be pre-sorted and deduplicated.
func (k *keyedMutex) lockAll(keys []string) {
	for _, key := range keys {
		k.lock(key)
	}
}

func (k *keyedMutex) unlockAll(keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		k.unlock(keys[i])
	}
}
