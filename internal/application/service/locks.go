package service

import "sync"

// requestLocker serializes state mutations per request id. Two approvers
// acting on different lines of the same request must not recompute the
// aggregate status from a stale line snapshot, so every submit / action /
// cancel / integrity append for one request runs under the same lock.
type requestLocker struct {
	mu    sync.Mutex
	locks map[string]*requestLock
}

type requestLock struct {
	mu   sync.Mutex
	refs int
}

func newRequestLocker() *requestLocker {
	return &requestLocker{
		locks: make(map[string]*requestLock),
	}
}

// Lock acquires the lock for a request id and returns the unlock func.
func (l *requestLocker) Lock(requestID string) func() {
	l.mu.Lock()
	entry, ok := l.locks[requestID]
	if !ok {
		entry = &requestLock{}
		l.locks[requestID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, requestID)
		}
		l.mu.Unlock()
	}
}
