package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"room-occupancy-backend/config"
	"room-occupancy-backend/internal/booking"
	"room-occupancy-backend/internal/db"
	"room-occupancy-backend/internal/event"
	"room-occupancy-backend/internal/lease"
	"room-occupancy-backend/internal/model"
	"room-occupancy-backend/internal/realtime"
	"room-occupancy-backend/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var now = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

type nopNotifier struct{}

func (nopNotifier) Publish(...event.Event) {}

var testServerConfig = config.ServerConfig{
	UserIDHeader:    "X-User-ID",
	RateLimitPerSec: 1000,
	RateLimitBurst:  1000,
	CacheTTLSeconds: 60,
}

type testAPI struct {
	router *gin.Engine
	db     *gorm.DB
	store  store.Store
}

func newTestAPI(t *testing.T, pushOptions *webpush.Options) *testAPI {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(gormDB))

	st := store.NewGormStore(gormDB)
	ctx := context.Background()
	require.NoError(t, st.UpsertRooms(ctx, []model.Room{{ID: "r101", Number: "101"}, {ID: "r102", Number: "102"}}))
	require.NoError(t, st.UpsertUsers(ctx, []model.User{{ID: "u1", Name: "Ada Lovelace"}, {ID: "u2", Name: "Grace Hopper"}}))

	svc, err := booking.NewService(st, lease.NewLocal(), nopNotifier{}, booking.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	responseCache := cache.New(time.Minute, time.Minute)
	h := NewHandler(svc, st, pushOptions, responseCache)
	return &testAPI{
		router: NewRouter(testServerConfig, h, realtime.NewHub(4, time.Minute), responseCache),
		db:     gormDB,
		store:  st,
	}
}

func (a *testAPI) do(method, path, userID string, body any) *httptest.ResponseRecorder {
	return serve(a.router, method, path, userID, body)
}

func serve(r *gin.Engine, method, path, userID string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func bookingBody(roomID string, start, end time.Time) gin.H {
	return gin.H{"roomId": roomID, "purpose": "Office hours", "startTime": start, "endTime": end}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestBookingFlow(t *testing.T) {
	a := newTestAPI(t, nil)
	start, end := now.Add(time.Hour), now.Add(2*time.Hour)

	w := a.do(http.MethodPost, "/api/bookings", "u1", bookingBody("r101", start, end))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	assert.Equal(t, "Room booked successfully", created["message"])
	b := created["booking"].(map[string]any)
	id := b["id"].(string)
	assert.Equal(t, "Active", b["status"])
	assert.Equal(t, "101", b["roomNumber"])
	assert.Equal(t, "Ada Lovelace", b["professor"].(map[string]any)["name"])

	w = a.do(http.MethodPost, "/api/bookings", "u1", bookingBody("r102", start, end))
	require.Equal(t, http.StatusConflict, w.Code)
	conflict := decode(t, w)
	assert.Equal(t, "you already have an active booking", conflict["error"])
	assert.Equal(t, "101", conflict["currentBooking"].(map[string]any)["roomNumber"])

	w = a.do(http.MethodPost, "/api/bookings", "u2", bookingBody("r101", start, end))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"room is currently occupied"}`, w.Body.String())

	w = a.do(http.MethodGet, "/api/bookings/active", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["bookings"], 1)

	w = a.do(http.MethodGet, "/api/bookings/my", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["bookings"], 1)

	w = a.do(http.MethodPut, "/api/bookings/"+id+"/end", "u2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(http.MethodPut, "/api/bookings/"+id+"/end", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Booking ended successfully","duration":-60}`, w.Body.String())

	w = a.do(http.MethodGet, "/api/bookings/history?page=0&limit=abc", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode(t, w)
	assert.Len(t, history["bookings"], 1)
	assert.Equal(t, map[string]any{"page": 1.0, "limit": 20.0, "total": 1.0, "pages": 1.0}, history["pagination"])
}

func TestCreateBooking_BadRequests(t *testing.T) {
	a := newTestAPI(t, nil)
	start, end := now.Add(time.Hour), now.Add(2*time.Hour)

	tests := []struct {
		name   string
		userID string
		body   any
		want   int
	}{
		{"no identity", "", bookingBody("r101", start, end), http.StatusUnauthorized},
		{"malformed json", "u1", "{", http.StatusBadRequest},
		{"missing purpose", "u1", gin.H{"roomId": "r101", "startTime": start, "endTime": end}, http.StatusBadRequest},
		{"end before start", "u1", bookingBody("r101", end, start), http.StatusBadRequest},
		{"unknown room", "u1", bookingBody("nope", start, end), http.StatusNotFound},
		{"unknown professor", "ghost", bookingBody("r101", start, end), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := a.do(http.MethodPost, "/api/bookings", tt.userID, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}

	var n int64
	require.NoError(t, a.db.Model(&model.Booking{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestCancelAndForceEnd(t *testing.T) {
	a := newTestAPI(t, nil)

	w := a.do(http.MethodPost, "/api/bookings", "u1", bookingBody("r101", now.Add(time.Hour), now.Add(2*time.Hour)))
	require.Equal(t, http.StatusCreated, w.Code)
	future := decode(t, w)["booking"].(map[string]any)["id"].(string)

	w = a.do(http.MethodPut, "/api/bookings/"+future+"/cancel", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = a.do(http.MethodPost, "/api/bookings", "u2", bookingBody("r102", now.Add(-30*time.Minute), now.Add(time.Hour)))
	require.Equal(t, http.StatusCreated, w.Code)
	started := decode(t, w)["booking"].(map[string]any)["id"].(string)

	w = a.do(http.MethodPut, "/api/bookings/"+started+"/cancel", "u2", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = a.do(http.MethodPut, "/api/bookings/"+started+"/force-end", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 30, decode(t, w)["duration"])

	w = a.do(http.MethodPut, "/api/bookings/"+started+"/force-end", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetRooms_CacheInvalidatedByWrites(t *testing.T) {
	a := newTestAPI(t, nil)

	w := a.do(http.MethodGet, "/api/rooms", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rooms []model.Room
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rooms))
	require.Len(t, rooms, 2)
	assert.False(t, rooms[0].IsOccupied)

	w = a.do(http.MethodPost, "/api/bookings", "u1", bookingBody("r101", now, now.Add(time.Hour)))
	require.Equal(t, http.StatusCreated, w.Code)

	w = a.do(http.MethodGet, "/api/rooms", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rooms))
	assert.True(t, rooms[0].IsOccupied)
	require.NotNil(t, rooms[0].CurrentOccupant)
	assert.Equal(t, "Ada Lovelace", rooms[0].CurrentOccupant.Name)

	w = a.do(http.MethodGet, "/api/professors", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var users []model.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	require.Len(t, users, 2)
	assert.Equal(t, model.StatusInRoom, users[0].CurrentStatus)
	assert.Equal(t, "101", users[0].CurrentRoom)
}

func TestSubscriptions(t *testing.T) {
	a := newTestAPI(t, nil)
	body := gin.H{"endpoint": "https://push.example.com/abc", "keys": gin.H{"p256dh": "key", "auth": "secret"}}

	w := a.do(http.MethodPost, "/api/notifications/subscribe", "u1", body)
	require.Equal(t, http.StatusCreated, w.Code)

	// Subscribing again replaces the earlier subscription.
	body["endpoint"] = "https://push.example.com/def"
	w = a.do(http.MethodPost, "/api/notifications/subscribe", "u1", body)
	require.Equal(t, http.StatusCreated, w.Code)

	subs, err := a.store.SubscriptionsExcept(context.Background(), "u2")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "https://push.example.com/def", subs[0].Endpoint)

	w = a.do(http.MethodPost, "/api/notifications/subscribe", "u1", gin.H{"endpoint": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid request"}`, w.Body.String())

	w = a.do(http.MethodDelete, "/api/notifications/subscribe", "u1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	subs, err = a.store.SubscriptionsExcept(context.Background(), "u2")
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestGetVAPIDPublicKey(t *testing.T) {
	w := newTestAPI(t, nil).do(http.MethodGet, "/api/notifications/vapid-public-key", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = newTestAPI(t, &webpush.Options{VAPIDPublicKey: "pub"}).do(http.MethodGet, "/api/notifications/vapid-public-key", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"publicKey":"pub"}`, w.Body.String())
}

func TestMetricsAndHealth(t *testing.T) {
	a := newTestAPI(t, nil)
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/health", "", nil).Code)

	w := a.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestCORSPreflight(t *testing.T) {
	a := newTestAPI(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/bookings", nil)
	req.Header.Set("Origin", "https://rooms.example.edu")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "X-User-ID")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

// stubBookings fails every call with err.
type stubBookings struct {
	Bookings
	err error
}

func (s stubBookings) ListActiveBookings(context.Context) ([]model.Booking, error) {
	return nil, s.err
}

func TestWriteError_StatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{booking.ErrBusy, http.StatusServiceUnavailable},
		{fmt.Errorf("%w: db down", booking.ErrOperationFailed), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
		{booking.ErrTimeConflict, http.StatusConflict},
		{&booking.ValidationError{Field: "purpose", Reason: "is required"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			h := NewHandler(stubBookings{err: tt.err}, nil, nil, nil)
			r := NewRouter(testServerConfig, h, realtime.NewHub(1, time.Minute), cache.New(time.Minute, time.Minute))
			w := serve(r, http.MethodGet, "/api/bookings/active", "", nil)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
