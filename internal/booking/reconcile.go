package booking

import (
	"context"
	"errors"
	"log"
	"time"

	"room-occupancy-backend/internal/event"
	"room-occupancy-backend/internal/lease"
	"room-occupancy-backend/internal/metrics"
	"room-occupancy-backend/internal/model"
	"room-occupancy-backend/internal/store"
)

// Reconcile re-derives room and user occupancy from the active bookings in
// the ledger and rewrites every row that disagrees. Each room is repaired
// under its room lease and each user under their user lease. It returns the
// number of rows rewritten.
func (s *Service) Reconcile(ctx context.Context) (int, error) {
	rooms, err := s.store.ListRooms(ctx)
	if err != nil {
		return 0, commitErr("reconcile", err)
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return 0, commitErr("reconcile", err)
	}

	roomFixes := 0
	for _, r := range rooms {
		fixed, err := s.reconcileRoom(ctx, r.ID)
		if err != nil {
			return roomFixes, err
		}
		if fixed {
			roomFixes++
		}
	}

	var events []event.Event
	userFixes := 0
	for _, u := range users {
		fixed, err := s.reconcileUser(ctx, u.ID)
		if err != nil {
			return roomFixes + userFixes, err
		}
		if fixed != nil {
			userFixes++
			events = append(events, event.NewUserStatusChanged(fixed.ID, fixed.CurrentStatus, fixed.CurrentRoom, ""))
		}
	}

	metrics.TrackRepair("room", roomFixes)
	metrics.TrackRepair("user", userFixes)
	if roomFixes > 0 {
		events = append(s.roomsSnapshot(ctx, ""), events...)
	}
	s.emit(events...)

	if total := roomFixes + userFixes; total > 0 {
		log.Printf("Reconcile repaired %d room(s) and %d user(s)", roomFixes, userFixes)
	}
	return roomFixes + userFixes, nil
}

func (s *Service) reconcileRoom(ctx context.Context, roomID string) (bool, error) {
	unlock, err := s.acquire(ctx, lease.RoomKey(roomID))
	if err != nil {
		return false, err
	}
	defer unlock()

	fixed := false
	err = s.store.WithinTx(context.WithoutCancel(ctx), func(tx store.Tx) error {
		room, err := tx.Room(roomID)
		if err != nil {
			return err
		}
		active, err := tx.ActiveBookingsForRoom(roomID)
		if err != nil {
			return err
		}
		if len(active) > 1 {
			log.Printf("Room %s has %d active bookings; keeping the earliest as occupant", room.Number, len(active))
		}

		var want *string
		if len(active) > 0 {
			want = &active[0].UserID
		}
		if room.IsOccupied == (want != nil) && sameOccupant(room.CurrentOccupantID, want) {
			return nil
		}
		fixed = true
		return tx.SyncRoom(roomID, want)
	})
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, commitErr("reconcile room", err)
	}
	return fixed, nil
}

// reconcileUser returns the repaired user, or nil when nothing changed.
func (s *Service) reconcileUser(ctx context.Context, userID string) (*model.User, error) {
	unlock, err := s.acquire(ctx, lease.UserKey(userID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var fixed *model.User
	err = s.store.WithinTx(context.WithoutCancel(ctx), func(tx store.Tx) error {
		user, err := tx.User(userID)
		if err != nil {
			return err
		}
		active, err := tx.ActiveBookingForUser(userID)
		if err != nil {
			return err
		}

		wantStatus, wantRoom := model.StatusAvailable, ""
		if active != nil {
			wantStatus, wantRoom = model.StatusInRoom, active.RoomNumber
		}
		if user.CurrentStatus == wantStatus && user.CurrentRoom == wantRoom {
			return nil
		}
		if err := tx.SyncUser(userID, wantRoom); err != nil {
			return err
		}
		user.CurrentStatus, user.CurrentRoom = wantStatus, wantRoom
		fixed = user
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, commitErr("reconcile user", err)
	}
	return fixed, nil
}

func sameOccupant(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// ForceEndOverdue force-ends active bookings whose requested end plus grace
// has passed. It returns how many were ended.
func (s *Service) ForceEndOverdue(ctx context.Context, grace time.Duration) (int, error) {
	cutoff := s.now().UTC().Add(-grace)
	overdue, err := s.store.OverdueBookings(ctx, cutoff)
	if err != nil {
		return 0, commitErr("list overdue bookings", err)
	}

	ended := 0
	for _, b := range overdue {
		res, err := s.ForceEndBooking(ctx, b.ID)
		if errors.Is(err, ErrBookingNotFound) {
			continue // ended by someone else meanwhile
		}
		if err != nil {
			log.Printf("Failed to auto-end overdue booking %s in room %s: %v", b.ID, b.RoomNumber, err)
			continue
		}
		log.Printf("Auto-ended overdue booking %s in room %s after %d minutes", b.ID, b.RoomNumber, res.Duration)
		ended++
	}
	return ended, nil
}
