package booking

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"room-occupancy-backend/internal/db"
	"room-occupancy-backend/internal/event"
	"room-occupancy-backend/internal/lease"
	"room-occupancy-backend/internal/model"
	"room-occupancy-backend/internal/store"
)

var base = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return time.Date(2026, 10, 19, hour, minute, 0, 0, time.UTC)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []event.Event
}

func (n *recordingNotifier) Publish(events ...event.Event) {
	n.mu.Lock()
	n.events = append(n.events, events...)
	n.mu.Unlock()
}

func (n *recordingNotifier) types() []event.Type {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]event.Type, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev.Type)
	}
	return out
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	n.events = nil
	n.mu.Unlock()
}

type panickingNotifier struct{}

func (panickingNotifier) Publish(...event.Event) { panic("sink exploded") }

type fixture struct {
	svc      *Service
	db       *gorm.DB
	store    store.Store
	notifier *recordingNotifier
	clock    *testClock
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(gormDB))
	return gormDB
}

func seed(t *testing.T, st store.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.UpsertRooms(ctx, []model.Room{
		{ID: "r101", Number: "R101"},
		{ID: "r102", Number: "R102"},
		{ID: "r103", Number: "R103"},
	}))
	require.NoError(t, st.UpsertUsers(ctx, []model.User{
		{ID: "u1", Name: "Ada Lovelace", Department: "Mathematics"},
		{ID: "u2", Name: "Grace Hopper", Department: "Computer Science"},
		{ID: "u3", Name: "Alan Turing", Department: "Computer Science"},
	}))
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	gormDB := openTestDB(t)
	st := store.NewGormStore(gormDB)
	seed(t, st)

	f := &fixture{db: gormDB, store: st, notifier: &recordingNotifier{}, clock: &testClock{now: base}}
	opts = append([]Option{WithClock(f.clock.Now)}, opts...)
	svc, err := NewService(st, lease.NewLocal(), f.notifier, opts...)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) book(t *testing.T, userID, roomID string, start, end time.Time) *model.Booking {
	t.Helper()
	b, err := f.svc.CreateBooking(context.Background(), CreateRequest{
		UserID: userID, RoomID: roomID, Purpose: "Office hours", StartTime: start, EndTime: end,
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) room(t *testing.T, id string) model.Room {
	t.Helper()
	var r model.Room
	require.NoError(t, f.db.First(&r, "id = ?", id).Error)
	return r
}

func (f *fixture) user(t *testing.T, id string) model.User {
	t.Helper()
	var u model.User
	require.NoError(t, f.db.First(&u, "id = ?", id).Error)
	return u
}

func (f *fixture) booking(t *testing.T, id string) model.Booking {
	t.Helper()
	var b model.Booking
	require.NoError(t, f.db.First(&b, "id = ?", id).Error)
	return b
}

func (f *fixture) countBookings(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&model.Booking{}).Count(&n).Error)
	return n
}

// failingStore wraps a store so that occupancy writes fail mid-transaction.
type failingStore struct {
	store.Store
}

func (s failingStore) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.Store.WithinTx(ctx, func(tx store.Tx) error {
		return fn(failingTx{Tx: tx})
	})
}

type failingTx struct {
	store.Tx
}

func (failingTx) Occupy(*model.Room, string) error { return fmt.Errorf("disk full") }

func (failingTx) Release(string, string) error { return fmt.Errorf("disk full") }

// callRecordingStore records the order of row locks and reads during admission.
type callRecordingStore struct {
	store.Store
	calls *[]string
}

func (s callRecordingStore) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.Store.WithinTx(ctx, func(tx store.Tx) error {
		return fn(callRecordingTx{Tx: tx, calls: s.calls})
	})
}

type callRecordingTx struct {
	store.Tx
	calls *[]string
}

func (t callRecordingTx) LockOccupancy(roomID, userID string) error {
	*t.calls = append(*t.calls, "lock "+roomID+" "+userID)
	return t.Tx.LockOccupancy(roomID, userID)
}

func (t callRecordingTx) ActiveBookingForUser(userID string) (*model.Booking, error) {
	*t.calls = append(*t.calls, "active "+userID)
	return t.Tx.ActiveBookingForUser(userID)
}

// heldLocker never grants a lease.
type heldLocker struct{}

func (heldLocker) Lock(ctx context.Context, key string) (func(), error) {
	<-ctx.Done()
	return nil, lease.ErrTimeout
}
