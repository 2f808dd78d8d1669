package store

import "sync"

// KeyedLock serializes work on a per-key basis. The reconciler and
// UI-originated record writes both acquire the lock for a record-set's key,
// so a sync pass and an edit can never interleave a read-merge-write on the
// same set.
type KeyedLock struct {
	mu    sync.Mutex
	locks map[Key]*sync.Mutex
}

func NewKeyedLock() *KeyedLock {
	return &KeyedLock{locks: make(map[Key]*sync.Mutex)}
}

// Acquire blocks until the lock for key is held and returns the release
// function. Mutexes are retained for the process lifetime; the key space is
// bounded by users x record-sets.
func (l *KeyedLock) Acquire(key Key) func() {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
