package api

import (
	"sync"

	"github.com/google/uuid"
)

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// sessionLocks serializes transitions per session id. Entries are dropped
// once nobody holds or waits on them.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sessionLock
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{
		locks: map[uuid.UUID]*sessionLock{},
	}
}

// lock blocks until the session is free and returns the matching unlock.
func (l *sessionLocks) lock(id uuid.UUID) func() {
	l.mu.Lock()
	sl, ok := l.locks[id]
	if !ok {
		sl = &sessionLock{}
		l.locks[id] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()

	return func() {
		sl.mu.Unlock()

		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *sessionLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
