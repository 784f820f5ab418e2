// Package lease provides exclusive, bounded-wait leases over string keys.
// Booking operations take a room lease and then a user lease so that
// conflicting check-then-act sequences never interleave.
package lease

import (
	"context"
	"errors"
)

// ErrTimeout is returned when a lease could not be acquired before the
// context was done.
var ErrTimeout = errors.New("lease wait exceeded")

// Locker grants exclusive leases. The returned unlock func is safe to call
// more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// RoomKey and UserKey live in disjoint key spaces.
func RoomKey(roomID string) string { return "room:" + roomID }

func UserKey(userID string) string { return "user:" + userID }

// LockAll acquires the keys in the given order, releasing everything already
// held if a later key cannot be acquired. Callers must pass keys in one
// canonical order.
func LockAll(ctx context.Context, l Locker, keys ...string) (func(), error) {
	unlocks := make([]func(), 0, len(keys))
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	for _, key := range keys {
		unlock, err := l.Lock(ctx, key)
		if err != nil {
			release()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return release, nil
}
