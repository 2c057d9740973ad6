package profiler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (u *userLocks) size() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.locks)
}

func TestUserLocks(t *testing.T) {
	t.Parallel()

	t.Run("serializes one user", func(t *testing.T) {
		t.Parallel()
		locks := newUserLocks()
		var (
			inside  atomic.Int32
			maxSeen atomic.Int32
			wg      sync.WaitGroup
		)
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock, err := locks.Lock(context.Background(), "u")
				if !assert.NoError(t, err) {
					return
				}
				n := inside.Add(1)
				if n > maxSeen.Load() {
					maxSeen.Store(n)
				}
				time.Sleep(time.Millisecond)
				inside.Add(-1)
				unlock()
			}()
		}
		wg.Wait()
		assert.EqualValues(t, 1, maxSeen.Load())
		assert.Zero(t, locks.size())
	})

	t.Run("different users do not block", func(t *testing.T) {
		t.Parallel()
		locks := newUserLocks()
		unlockA, err := locks.Lock(context.Background(), "a")
		require.NoError(t, err)
		defer unlockA()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		unlockB, err := locks.Lock(ctx, "b")
		require.NoError(t, err)
		unlockB()
		assert.Equal(t, 1, locks.size())
	})

	t.Run("cancelled wait releases entry", func(t *testing.T) {
		t.Parallel()
		locks := newUserLocks()
		unlock, err := locks.Lock(context.Background(), "u")
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err = locks.Lock(ctx, "u")
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		unlock()
		unlock()
		assert.Zero(t, locks.size())
	})
}
