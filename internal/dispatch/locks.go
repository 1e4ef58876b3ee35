package dispatch

import "sync"

// userLocks serializes event handling per user.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*userLock)}
}

// lock acquires the user's lock and returns its release func.
func (u *userLocks) lock(userID string) func() {
	u.mu.Lock()
	l, ok := u.locks[userID]
	if !ok {
		l = &userLock{}
		u.locks[userID] = l
	}
	l.refs++
	u.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		u.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(u.locks, userID)
		}
		u.mu.Unlock()
	}
}
