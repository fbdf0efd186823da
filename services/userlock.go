package services

import "sync"

// userLocks serializes work per user id. Unlike a plain mutex per key, the
// lock hands off to waiters in strict FIFO order, which is what gives the
// dispatcher its same-user arrival-order guarantee; different users never
// contend with each other.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	held    bool
	waiters []chan struct{}
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*userLock)}
}

// acquire blocks until the caller holds the lock for userID. Callers queued
// behind a holder are released one at a time in arrival order.
func (l *userLocks) acquire(userID string) {
	l.mu.Lock()
	entry, ok := l.locks[userID]
	if !ok {
		entry = &userLock{}
		l.locks[userID] = entry
	}
	if !entry.held {
		entry.held = true
		l.mu.Unlock()
		return
	}
	ch := make(chan struct{})
	entry.waiters = append(entry.waiters, ch)
	l.mu.Unlock()
	<-ch
}

// release passes the lock to the next waiter, or frees it when the queue is
// empty.
func (l *userLocks) release(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.locks[userID]
	if !ok {
		return
	}
	if len(entry.waiters) > 0 {
		next := entry.waiters[0]
		entry.waiters = entry.waiters[1:]
		close(next)
		return
	}
	delete(l.locks, userID)
}
