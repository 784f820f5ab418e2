// Package booking implements booking admission and the booking lifecycle:
// it decides whether a request may hold a room, ends or cancels bookings, and
// keeps room and user occupancy consistent with the ledger.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"room-occupancy-backend/internal/event"
	"room-occupancy-backend/internal/lease"
	"room-occupancy-backend/internal/metrics"
	"room-occupancy-backend/internal/model"
	"room-occupancy-backend/internal/store"
)

// Notifier receives committed changes. Publish must not block.
type Notifier interface {
	Publish(events ...event.Event)
}

// Service is the admission and lifecycle controller.
type Service struct {
	store    store.Store
	leases   lease.Locker
	notifier Notifier

	now             func() time.Time
	leaseWait       time.Duration
	defaultPageSize int
	maxPageSize     int
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLeaseWait bounds how long an operation waits for its leases.
func WithLeaseWait(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.leaseWait = d
		}
	}
}

// WithHistoryPageSize sets the page size used when none is given and the
// largest page size accepted.
func WithHistoryPageSize(defaultSize, maxSize int) Option {
	return func(s *Service) {
		if defaultSize > 0 {
			s.defaultPageSize = defaultSize
		}
		if maxSize > 0 {
			s.maxPageSize = maxSize
		}
	}
}

// NewService creates a Service. All three collaborators are required.
func NewService(s store.Store, l lease.Locker, n Notifier, opts ...Option) (*Service, error) {
	if s == nil {
		return nil, errors.New("booking: store is required")
	}
	if l == nil {
		return nil, errors.New("booking: lease locker is required")
	}
	if n == nil {
		return nil, errors.New("booking: change notifier is required")
	}

	svc := &Service{
		store:           s,
		leases:          l,
		notifier:        n,
		now:             time.Now,
		leaseWait:       5 * time.Second,
		defaultPageSize: 20,
		maxPageSize:     100,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.defaultPageSize > svc.maxPageSize {
		svc.defaultPageSize = svc.maxPageSize
	}
	return svc, nil
}

// acquire takes the leases for keys in the given order, waiting at most
// leaseWait.
func (s *Service) acquire(ctx context.Context, keys ...string) (func(), error) {
	start := time.Now()
	waitCtx, cancel := context.WithTimeout(ctx, s.leaseWait)
	defer cancel()

	unlock, err := lease.LockAll(waitCtx, s.leases, keys...)
	metrics.TrackLeaseWait(time.Since(start))
	if err != nil {
		if errors.Is(err, lease.ErrTimeout) {
			return nil, ErrBusy
		}
		return nil, fmt.Errorf("%w: acquire lease: %w", ErrOperationFailed, err)
	}
	return unlock, nil
}

// commitErr passes rejections through and marks everything else as a fault.
func commitErr(op string, err error) error {
	if IsRejection(err) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrOperationFailed, op, err)
}

// roomsSnapshot builds the post-commit rooms event. A failed read only
// costs the snapshot.
func (s *Service) roomsSnapshot(ctx context.Context, actorID string) []event.Event {
	rooms, err := s.store.ListRooms(ctx)
	if err != nil {
		metrics.TrackNotifierFailure("rooms_snapshot")
		log.Printf("Could not load rooms snapshot after commit: %v", err)
		return nil
	}

	occupied := 0
	for _, r := range rooms {
		if r.IsOccupied {
			occupied++
		}
	}
	metrics.SetOccupiedRooms(occupied)
	return []event.Event{event.NewRoomsUpdated(rooms, actorID)}
}

// emit hands events to the notifier. It runs after commit and never fails
// the operation.
func (s *Service) emit(events ...event.Event) {
	defer func() {
		if r := recover(); r != nil {
			metrics.TrackNotifierFailure("publish")
			log.Printf("Change notifier panicked: %v", r)
		}
	}()
	if len(events) > 0 {
		s.notifier.Publish(events...)
	}
}

func userReleased(b *model.Booking, actorID string) event.Event {
	return event.NewUserStatusChanged(b.UserID, model.StatusAvailable, "", actorID)
}
