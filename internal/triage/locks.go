package triage

import (
	"sync"

	"github.com/google/uuid"
)

// issueLocks hands out one mutex per issue so mutations on the same issue
// serialize while different issues proceed concurrently. Locks live for the
// process lifetime; the map grows with the issue count.
type issueLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newIssueLocks() *issueLocks {
	return &issueLocks{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (l *issueLocks) get(id uuid.UUID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[id] = lock
	}
	return lock
}
