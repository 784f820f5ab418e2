package api

import (
	"context"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/patrickmn/go-cache"

	"room-occupancy-backend/internal/booking"
	"room-occupancy-backend/internal/model"
	"room-occupancy-backend/internal/store"
)

// Bookings is the booking service as seen by the HTTP layer.
type Bookings interface {
	CreateBooking(ctx context.Context, req booking.CreateRequest) (*model.Booking, error)
	EndBooking(ctx context.Context, bookingID, userID string) (*booking.EndResult, error)
	ForceEndBooking(ctx context.Context, bookingID string) (*booking.EndResult, error)
	CancelBooking(ctx context.Context, bookingID, userID string) error
	ListActiveBookings(ctx context.Context) ([]model.Booking, error)
	ListUserBookings(ctx context.Context, userID string) ([]model.Booking, error)
	ListHistory(ctx context.Context, page, pageSize int) (*booking.HistoryPage, error)
	ListRooms(ctx context.Context) ([]model.Room, error)
	ListUsers(ctx context.Context) ([]model.User, error)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	bookings Bookings
	store    store.Store
	webpush  *webpush.Options
	cache    *cache.Cache
}

// NewHandler creates a new API handler. responseCache may be nil.
func NewHandler(b Bookings, s store.Store, webpushOptions *webpush.Options, responseCache *cache.Cache) *Handler {
	return &Handler{
		bookings: b,
		store:    s,
		webpush:  webpushOptions,
		cache:    responseCache,
	}
}

// invalidate drops cached reads after a successful write so the caller sees
// its own change on the next request.
func (h *Handler) invalidate() {
	if h.cache != nil {
		h.cache.Flush()
	}
}

type bookingRequest struct {
	RoomID    string    `json:"roomId" binding:"required"`
	Purpose   string    `json:"purpose" binding:"required"`
	Notes     string    `json:"notes"`
	StartTime time.Time `json:"startTime" binding:"required"`
	EndTime   time.Time `json:"endTime" binding:"required"`
}
