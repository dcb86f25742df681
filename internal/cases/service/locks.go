package service

import (
	"sync"

	"github.com/google/uuid"
)

// caseLocks is a keyed mutex: one lock per case id, dropped when the last
// holder or waiter leaves.
type caseLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*caseLock
}

type caseLock struct {
	sync.Mutex
	refs int
}

func newCaseLocks() *caseLocks {
	return &caseLocks{locks: make(map[uuid.UUID]*caseLock)}
}

// lock blocks until the caller holds id and returns the matching unlock.
func (l *caseLocks) lock(id uuid.UUID) func() {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &caseLock{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.Lock()
	return func() {
		entry.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *caseLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
