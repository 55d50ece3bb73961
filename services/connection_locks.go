package services

import (
	"slices"
	"sync"

	"github.com/samber/lo"
)

// connectionLocks hands out one mutex per connection id. A caller takes every lock it
// needs in a single call so that ids are always acquired in the same order.
type connectionLocks struct {
	mu    sync.Mutex
	locks map[string]*connectionLock
}

type connectionLock struct {
	mu   sync.Mutex
	refs int
}

func newConnectionLocks() *connectionLocks {
	return &connectionLocks{locks: make(map[string]*connectionLock)}
}

// lock blocks until the lock of every non-empty id is held and returns the function
// releasing them. Never call it while already holding a lock from the same set.
func (l *connectionLocks) lock(ids ...string) func() {
	ids = lo.Uniq(lo.Compact(ids))
	slices.Sort(ids)

	held := make([]*connectionLock, len(ids))
	l.mu.Lock()
	for i, id := range ids {
		entry, ok := l.locks[id]
		if !ok {
			entry = &connectionLock{}
			l.locks[id] = entry
		}
		entry.refs++
		held[i] = entry
	}
	l.mu.Unlock()

	for _, entry := range held {
		entry.mu.Lock()
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
		}
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, id := range ids {
			held[i].refs--
			if held[i].refs == 0 {
				delete(l.locks, id)
			}
		}
	}
}

func (l *connectionLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
