package booking

import (
	"context"
	"errors"
	"math"
	"time"

	"room-occupancy-backend/internal/event"
	"room-occupancy-backend/internal/lease"
	"room-occupancy-backend/internal/metrics"
	"room-occupancy-backend/internal/model"
	"room-occupancy-backend/internal/store"
)

// EndResult reports the recorded length of an ended booking in minutes.
type EndResult struct {
	Duration int `json:"duration"`
}

// EndBooking completes the caller's own active booking. A booking owned by
// someone else is reported as not found.
func (s *Service) EndBooking(ctx context.Context, bookingID, userID string) (*EndResult, error) {
	return s.endBooking(ctx, bookingID, userID, false)
}

// ForceEndBooking completes any active booking regardless of owner.
func (s *Service) ForceEndBooking(ctx context.Context, bookingID string) (*EndResult, error) {
	return s.endBooking(ctx, bookingID, "", true)
}

func (s *Service) endBooking(ctx context.Context, bookingID, userID string, forced bool) (*EndResult, error) {
	mode := "end"
	if forced {
		mode = "force_end"
	}

	closed, err := s.closeBooking(ctx, bookingID, userID, forced, func(b *model.Booking) error {
		actualEnd := s.now().UTC()
		duration := durationMinutes(b.StartTime, actualEnd)
		b.Status = model.BookingCompleted
		b.ActualEndTime = &actualEnd
		b.Duration = &duration
		return nil
	})
	metrics.TrackTermination(mode, outcome(err))
	if err != nil {
		return nil, err
	}
	return &EndResult{Duration: *closed.Duration}, nil
}

// CancelBooking withdraws the caller's active booking before it starts. It
// records no end time or duration.
func (s *Service) CancelBooking(ctx context.Context, bookingID, userID string) error {
	_, err := s.closeBooking(ctx, bookingID, userID, false, func(b *model.Booking) error {
		if !s.now().Before(b.StartTime) {
			return ErrBookingStarted
		}
		b.Status = model.BookingCancelled
		b.ActualEndTime = nil
		b.Duration = nil
		return nil
	})
	metrics.TrackTermination("cancel", outcome(err))
	return err
}

// closeBooking moves an active booking to a terminal state chosen by
// transition and releases its room and user in the same commit.
func (s *Service) closeBooking(ctx context.Context, bookingID, requesterID string, forced bool, transition func(b *model.Booking) error) (*model.Booking, error) {
	// Room and user of a booking never change, so this read tells us which
	// leases to take; everything is checked again under them.
	current, err := s.store.GetBooking(ctx, bookingID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, commitErr("load booking", err)
	}
	if !closable(current, requesterID, forced) {
		return nil, ErrBookingNotFound
	}

	unlock, err := s.acquire(ctx, lease.RoomKey(current.RoomID), lease.UserKey(current.UserID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	commitCtx := context.WithoutCancel(ctx)

	var closed *model.Booking
	err = s.store.WithinTx(commitCtx, func(tx store.Tx) error {
		b, err := tx.ActiveBooking(bookingID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrBookingNotFound
		}
		if err != nil {
			return err
		}
		if !closable(b, requesterID, forced) {
			return ErrBookingNotFound
		}

		if err := transition(b); err != nil {
			return err
		}
		if err := tx.CloseBooking(b); err != nil {
			return err
		}
		if err := tx.Release(b.RoomID, b.UserID); err != nil {
			return err
		}
		closed = b
		return nil
	})
	unlock()
	if err != nil {
		return nil, commitErr("close booking", err)
	}

	events := []event.Event{event.NewBookingEnded(closed.ID, closed.Status, requesterID)}
	events = append(events, s.roomsSnapshot(commitCtx, requesterID)...)
	events = append(events, userReleased(closed, requesterID))
	s.emit(events...)

	return closed, nil
}

func closable(b *model.Booking, requesterID string, forced bool) bool {
	if b.Status != model.BookingActive {
		return false
	}
	return forced || b.UserID == requesterID
}

// durationMinutes rounds to the nearest minute, halves towards positive
// infinity. Negative values (clock skew) are kept as computed.
func durationMinutes(start, end time.Time) int {
	return int(math.Floor(end.Sub(start).Minutes() + 0.5))
}
