package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"room-occupancy-backend/internal/model"
	"room-occupancy-backend/internal/parse"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("record not found")

// Store defines the non-transactional database operations. Anything that
// changes booking or occupancy state goes through WithinTx.
type Store interface {
	DB() *gorm.DB

	UpsertRooms(ctx context.Context, rooms []model.Room) error
	UpsertUsers(ctx context.Context, users []model.User) error
	ListRooms(ctx context.Context) ([]model.Room, error)
	GetRoom(ctx context.Context, id string) (*model.Room, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	GetUser(ctx context.Context, id string) (*model.User, error)

	GetBooking(ctx context.Context, id string) (*model.Booking, error)
	ActiveBookings(ctx context.Context) ([]model.Booking, error)
	BookingsForUser(ctx context.Context, userID string) ([]model.Booking, error)
	History(ctx context.Context, offset, limit int) ([]model.Booking, int64, error)
	OverdueBookings(ctx context.Context, cutoff time.Time) ([]model.Booking, error)

	SaveSubscription(ctx context.Context, sub *model.PushSubscription) error
	DeleteSubscription(ctx context.Context, userID string) error
	SubscriptionsExcept(ctx context.Context, userID string) ([]model.PushSubscription, error)

	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// WithinTx runs fn in a single database transaction. Any error returned by fn
// rolls the transaction back and is returned unchanged.
func (s *gormStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	})
}

// UpsertRooms inserts configured rooms or refreshes their descriptive
// columns. Occupancy columns are never touched here.
func (s *gormStore) UpsertRooms(ctx context.Context, rooms []model.Room) error {
	if len(rooms) == 0 {
		return nil
	}
	prepared := make([]model.Room, 0, len(rooms))
	for _, r := range rooms {
		prepared = append(prepared, prepareRoom(r))
	}

	log.Printf("Batch upserting %d rooms...", len(prepared))
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"number", "floor", "updated_at"}),
	}).Create(&prepared).Error
}

// UpsertUsers inserts configured users or refreshes their descriptive columns.
func (s *gormStore) UpsertUsers(ctx context.Context, users []model.User) error {
	if len(users) == 0 {
		return nil
	}
	prepared := make([]model.User, 0, len(users))
	for _, u := range users {
		u.CurrentStatus = model.StatusAvailable
		u.CurrentRoom = ""
		prepared = append(prepared, u)
	}

	log.Printf("Batch upserting %d users...", len(prepared))
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "department", "updated_at"}),
	}).Create(&prepared).Error
}

func prepareRoom(r model.Room) model.Room {
	if r.Floor == 0 {
		if parsed, err := parse.ParseRoomLabel(r.Number); err == nil {
			r.Floor = parsed.Floor
		} else {
			log.Printf("Could not derive floor for room %s: %v", r.ID, err)
		}
	}
	r.IsOccupied = false
	r.CurrentOccupantID = nil
	return r
}

func (s *gormStore) ListRooms(ctx context.Context) ([]model.Room, error) {
	var rooms []model.Room
	if err := s.db.WithContext(ctx).Preload("CurrentOccupant").Order("number").Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return rooms, nil
}

func (s *gormStore) GetRoom(ctx context.Context, id string) (*model.Room, error) {
	var room model.Room
	if err := s.db.WithContext(ctx).Preload("CurrentOccupant").First(&room, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &room, nil
}

func (s *gormStore) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := s.db.WithContext(ctx).Order("name").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (s *gormStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *gormStore) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	var booking model.Booking
	if err := s.db.WithContext(ctx).First(&booking, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &booking, nil
}

// ActiveBookings returns every active booking, earliest start first.
func (s *gormStore) ActiveBookings(ctx context.Context) ([]model.Booking, error) {
	var bookings []model.Booking
	err := s.populated(ctx).
		Where("status = ?", model.BookingActive).
		Order("start_time ASC").Order("id ASC").
		Find(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active bookings: %w", err)
	}
	return bookings, nil
}

// BookingsForUser returns all of a user's bookings, latest start first.
func (s *gormStore) BookingsForUser(ctx context.Context, userID string) ([]model.Booking, error) {
	var bookings []model.Booking
	err := s.db.WithContext(ctx).Preload("Room").
		Where("user_id = ?", userID).
		Order("start_time DESC").Order("id DESC").
		Find(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings for user %s: %w", userID, err)
	}
	return bookings, nil
}

var finishedStatuses = []model.BookingStatus{model.BookingCompleted, model.BookingCancelled}

// History returns one page of finished bookings and the total number of
// finished bookings. Bookings without an actual end time (cancelled) sort
// after those with one regardless of the database's NULL ordering.
func (s *gormStore) History(ctx context.Context, offset, limit int) ([]model.Booking, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&model.Booking{}).
		Where("status IN ?", finishedStatuses).
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count booking history: %w", err)
	}

	var bookings []model.Booking
	err := s.populated(ctx).
		Where("status IN ?", finishedStatuses).
		Order("actual_end_time IS NULL").
		Order("actual_end_time DESC").
		Order("end_time DESC").
		Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&bookings).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch booking history: %w", err)
	}
	return bookings, total, nil
}

// OverdueBookings returns active bookings whose requested end is before cutoff.
func (s *gormStore) OverdueBookings(ctx context.Context, cutoff time.Time) ([]model.Booking, error) {
	var bookings []model.Booking
	err := s.db.WithContext(ctx).
		Where("status = ? AND end_time < ?", model.BookingActive, cutoff).
		Order("end_time ASC").
		Find(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue bookings: %w", err)
	}
	return bookings, nil
}

func (s *gormStore) populated(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Preload("User").Preload("Room")
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
