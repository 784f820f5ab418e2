package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"room-occupancy-backend/internal/event"
	"room-occupancy-backend/internal/lease"
	"room-occupancy-backend/internal/metrics"
	"room-occupancy-backend/internal/model"
	"room-occupancy-backend/internal/store"
)

// CreateRequest asks for a room over the half-open window [StartTime, EndTime).
type CreateRequest struct {
	UserID    string
	RoomID    string
	Purpose   string
	Notes     string
	StartTime time.Time
	EndTime   time.Time
}

func (r CreateRequest) validate() error {
	switch {
	case strings.TrimSpace(r.UserID) == "":
		return &ValidationError{Field: "professor", Reason: "is required"}
	case strings.TrimSpace(r.RoomID) == "":
		return &ValidationError{Field: "roomId", Reason: "is required"}
	case strings.TrimSpace(r.Purpose) == "":
		return &ValidationError{Field: "purpose", Reason: "is required"}
	case r.StartTime.IsZero():
		return &ValidationError{Field: "startTime", Reason: "is required"}
	case r.EndTime.IsZero():
		return &ValidationError{Field: "endTime", Reason: "is required"}
	case !r.EndTime.After(r.StartTime):
		return &ValidationError{Field: "endTime", Reason: "must be after startTime"}
	}
	return nil
}

// CreateBooking admits a booking or rejects it. On success the booking is
// Active, the room is occupied by the user and the user is "In Room", all in
// one commit; the booking is returned with user and room resolved.
func (s *Service) CreateBooking(ctx context.Context, req CreateRequest) (*model.Booking, error) {
	if err := req.validate(); err != nil {
		metrics.TrackAdmission(outcome(err))
		return nil, err
	}
	start, end := req.StartTime.UTC(), req.EndTime.UTC()

	unlock, err := s.acquire(ctx, lease.RoomKey(req.RoomID), lease.UserKey(req.UserID))
	if err != nil {
		metrics.TrackAdmission(outcome(err))
		return nil, err
	}
	defer unlock()

	// Once leased the operation runs to completion.
	commitCtx := context.WithoutCancel(ctx)

	var created *model.Booking
	err = s.store.WithinTx(commitCtx, func(tx store.Tx) error {
		room, user, err := admit(tx, req.UserID, req.RoomID, start, end)
		if err != nil {
			return err
		}

		b := &model.Booking{
			ID:         uuid.NewString(),
			UserID:     user.ID,
			RoomID:     room.ID,
			RoomNumber: room.Number,
			Purpose:    strings.TrimSpace(req.Purpose),
			Notes:      req.Notes,
			StartTime:  start,
			EndTime:    end,
			Status:     model.BookingActive,
		}
		if err := tx.CreateBooking(b); err != nil {
			return err
		}
		if err := tx.Occupy(room, user.ID); err != nil {
			return err
		}

		created, err = tx.Booking(b.ID)
		return err
	})
	unlock()
	if err != nil {
		metrics.TrackAdmission(outcome(err))
		return nil, commitErr("create booking", err)
	}
	metrics.TrackAdmission("admitted")

	events := []event.Event{event.NewBookingCreated(created)}
	events = append(events, s.roomsSnapshot(commitCtx, req.UserID)...)
	s.emit(events...)

	return created, nil
}

// admit runs the admission checks in order; the first failure wins. The room
// and user rows stay locked until commit, so exclusion does not depend on the
// leases alone.
func admit(tx store.Tx, userID, roomID string, start, end time.Time) (*model.Room, *model.User, error) {
	if err := tx.LockOccupancy(roomID, userID); err != nil {
		return nil, nil, err
	}

	existing, err := tx.ActiveBookingForUser(userID)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		return nil, nil, &UserAlreadyBookedError{RoomNumber: existing.RoomNumber, StartTime: existing.StartTime}
	}

	room, err := tx.Room(roomID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	// The flag and the ledger are stored separately; both are checked.
	if room.IsOccupied {
		return nil, nil, ErrRoomOccupied
	}

	active, err := tx.ActiveBookingsForRoom(roomID)
	if err != nil {
		return nil, nil, err
	}
	for i := range active {
		if active[i].Overlaps(start, end) {
			return nil, nil, ErrTimeConflict
		}
	}

	user, err := tx.User(userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, ErrUserNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	return room, user, nil
}
