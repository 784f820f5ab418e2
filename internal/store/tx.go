package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"room-occupancy-backend/internal/model"
)

// Tx is the view of the ledger, registry and directory inside one
// transaction. Reads observe the transaction's own writes.
type Tx interface {
	ActiveBookingForUser(userID string) (*model.Booking, error)
	ActiveBookingsForRoom(roomID string) ([]model.Booking, error)
	ActiveBooking(id string) (*model.Booking, error)
	Booking(id string) (*model.Booking, error)
	Room(id string) (*model.Room, error)
	User(id string) (*model.User, error)

	CreateBooking(b *model.Booking) error
	CloseBooking(b *model.Booking) error

	LockOccupancy(roomID, userID string) error
	Occupy(room *model.Room, userID string) error
	Release(roomID, userID string) error
	SyncRoom(roomID string, occupantID *string) error
	SyncUser(userID, roomNumber string) error
}

type gormTx struct {
	db *gorm.DB
}

// ActiveBookingForUser returns the user's active booking, or nil if none.
func (t *gormTx) ActiveBookingForUser(userID string) (*model.Booking, error) {
	var booking model.Booking
	err := t.db.Where("user_id = ? AND status = ?", userID, model.BookingActive).
		Order("start_time").
		First(&booking).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up active booking for user %s: %w", userID, err)
	}
	return &booking, nil
}

func (t *gormTx) ActiveBookingsForRoom(roomID string) ([]model.Booking, error) {
	var bookings []model.Booking
	if err := t.db.Where("room_id = ? AND status = ?", roomID, model.BookingActive).
		Order("start_time").
		Find(&bookings).Error; err != nil {
		return nil, fmt.Errorf("failed to look up active bookings for room %s: %w", roomID, err)
	}
	return bookings, nil
}

func (t *gormTx) ActiveBooking(id string) (*model.Booking, error) {
	var booking model.Booking
	if err := t.db.First(&booking, "id = ? AND status = ?", id, model.BookingActive).Error; err != nil {
		return nil, notFound(err)
	}
	return &booking, nil
}

// Booking returns the booking with its user and room resolved.
func (t *gormTx) Booking(id string) (*model.Booking, error) {
	var booking model.Booking
	if err := t.db.Preload("User").Preload("Room").First(&booking, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &booking, nil
}

// Room reads a room, holding its row lock until the transaction ends on
// databases that support row locking.
func (t *gormTx) Room(id string) (*model.Room, error) {
	q := t.db
	if t.db.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var room model.Room
	if err := q.First(&room, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &room, nil
}

func (t *gormTx) User(id string) (*model.User, error) {
	var user model.User
	if err := t.db.First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (t *gormTx) CreateBooking(b *model.Booking) error {
	if err := t.db.Create(b).Error; err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

// CloseBooking persists a terminal status together with its end fields. It
// only applies to a booking that is still active.
func (t *gormTx) CloseBooking(b *model.Booking) error {
	var actualEnd, duration any
	if b.ActualEndTime != nil {
		actualEnd = *b.ActualEndTime
	}
	if b.Duration != nil {
		duration = *b.Duration
	}

	result := t.db.Model(&model.Booking{}).
		Where("id = ? AND status = ?", b.ID, model.BookingActive).
		Updates(map[string]any{
			"status":          b.Status,
			"actual_end_time": actualEnd,
			"duration":        duration,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to close booking %s: %w", b.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("booking %s is no longer active", b.ID)
	}
	return nil
}
