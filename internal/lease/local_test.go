package lease

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_MutualExclusion(t *testing.T) {
	l := NewLocal()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), RoomKey("r1"))
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, l.size(), "entries should be dropped once released")
}

func TestLocal_DisjointKeysDoNotBlock(t *testing.T) {
	l := NewLocal()
	unlockRoom, err := l.Lock(context.Background(), RoomKey("r1"))
	require.NoError(t, err)
	defer unlockRoom()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	unlockUser, err := l.Lock(ctx, UserKey("r1"))
	require.NoError(t, err)
	unlockUser()
}

func TestLocal_BoundedWait(t *testing.T) {
	l := NewLocal()
	unlock, err := l.Lock(context.Background(), RoomKey("r1"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, RoomKey("r1"))
	assert.ErrorIs(t, err, ErrTimeout)

	unlock()
	unlock() // second call is a no-op
	assert.Equal(t, 0, l.size())

	unlock, err = l.Lock(context.Background(), RoomKey("r1"))
	require.NoError(t, err)
	unlock()
}

func TestLockAll_ReleasesOnFailure(t *testing.T) {
	l := NewLocal()
	held, err := l.Lock(context.Background(), UserKey("u1"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = LockAll(ctx, l, RoomKey("r1"), UserKey("u1"))
	assert.ErrorIs(t, err, ErrTimeout)

	// The room lease taken before the failure must have been released.
	unlock, err := l.Lock(context.Background(), RoomKey("r1"))
	require.NoError(t, err)
	unlock()
	held()
}
