package booking

import (
	"context"
	"math"

	"room-occupancy-backend/internal/model"
)

// HistoryPage is one page of finished bookings.
type HistoryPage struct {
	Items      []model.Booking `json:"bookings"`
	Page       int             `json:"page"`
	PageSize   int             `json:"limit"`
	Total      int64           `json:"total"`
	TotalPages int             `json:"pages"`
}

// ListActiveBookings returns all active bookings, earliest start first.
func (s *Service) ListActiveBookings(ctx context.Context) ([]model.Booking, error) {
	bookings, err := s.store.ActiveBookings(ctx)
	if err != nil {
		return nil, commitErr("list active bookings", err)
	}
	return bookings, nil
}

// ListUserBookings returns every booking of a user, latest start first.
func (s *Service) ListUserBookings(ctx context.Context, userID string) ([]model.Booking, error) {
	bookings, err := s.store.BookingsForUser(ctx, userID)
	if err != nil {
		return nil, commitErr("list user bookings", err)
	}
	return bookings, nil
}

// ListHistory returns completed and cancelled bookings, most recently ended
// first. A page below 1 is treated as 1; a page size below 1 becomes the
// default and one above the maximum is capped. A page past the end is empty.
// The page and page size actually used are returned.
func (s *Service) ListHistory(ctx context.Context, page, pageSize int) (*HistoryPage, error) {
	page, pageSize = s.normalizePage(page, pageSize)

	items, total, err := s.store.History(ctx, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, commitErr("list history", err)
	}
	if items == nil {
		items = []model.Booking{}
	}

	return &HistoryPage{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: int((total + int64(pageSize) - 1) / int64(pageSize)),
	}, nil
}

func (s *Service) normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = s.defaultPageSize
	}
	if pageSize > s.maxPageSize {
		pageSize = s.maxPageSize
	}
	// Keeps the offset within int; such a page is past the end anyway.
	if maxPage := math.MaxInt / pageSize; page > maxPage {
		page = maxPage
	}
	return page, pageSize
}

// ListRooms returns the room registry with occupants resolved.
func (s *Service) ListRooms(ctx context.Context) ([]model.Room, error) {
	rooms, err := s.store.ListRooms(ctx)
	if err != nil {
		return nil, commitErr("list rooms", err)
	}
	return rooms, nil
}

// ListUsers returns the user directory.
func (s *Service) ListUsers(ctx context.Context) ([]model.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, commitErr("list users", err)
	}
	return users, nil
}
