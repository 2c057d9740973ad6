package profiler

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// userLocks serializes work per user id. Entries live only while someone
// holds or waits for them.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	sem  *semaphore.Weighted
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*userLock)}
}

// Lock blocks until the lock for userID is held or ctx ends.
func (u *userLocks) Lock(ctx context.Context, userID string) (unlock func(), err error) {
	u.mu.Lock()
	l, ok := u.locks[userID]
	if !ok {
		l = &userLock{sem: semaphore.NewWeighted(1)}
		u.locks[userID] = l
	}
	l.refs++
	u.mu.Unlock()

	if err := l.sem.Acquire(ctx, 1); err != nil {
		u.release(userID, l)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.sem.Release(1)
			u.release(userID, l)
		})
	}, nil
}

func (u *userLocks) release(userID string, l *userLock) {
	u.mu.Lock()
	defer u.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(u.locks, userID)
	}
}
