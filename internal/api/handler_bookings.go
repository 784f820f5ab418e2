package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"room-occupancy-backend/internal/booking"
	"room-occupancy-backend/internal/mw"
)

// CreateBooking handles POST /api/bookings.
func (h *Handler) CreateBooking(c *gin.Context) {
	var req bookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	b, err := h.bookings.CreateBooking(c.Request.Context(), booking.CreateRequest{
		UserID:    mw.UserID(c),
		RoomID:    req.RoomID,
		Purpose:   req.Purpose,
		Notes:     req.Notes,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	h.invalidate()

	c.JSON(http.StatusCreated, gin.H{"message": "Room booked successfully", "booking": b})
}

// GetActiveBookings handles GET /api/bookings/active.
func (h *Handler) GetActiveBookings(c *gin.Context) {
	bookings, err := h.bookings.ListActiveBookings(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

// GetMyBookings handles GET /api/bookings/my.
func (h *Handler) GetMyBookings(c *gin.Context) {
	bookings, err := h.bookings.ListUserBookings(c.Request.Context(), mw.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

// GetHistory handles GET /api/bookings/history?page=&limit=. Unparseable
// values fall back to the defaults.
func (h *Handler) GetHistory(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	history, err := h.bookings.ListHistory(c.Request.Context(), page, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"bookings": history.Items,
		"pagination": gin.H{
			"page":  history.Page,
			"limit": history.PageSize,
			"total": history.Total,
			"pages": history.TotalPages,
		},
	})
}

// EndBooking handles PUT /api/bookings/:id/end.
func (h *Handler) EndBooking(c *gin.Context) {
	res, err := h.bookings.EndBooking(c.Request.Context(), c.Param("id"), mw.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	h.invalidate()
	c.JSON(http.StatusOK, gin.H{"message": "Booking ended successfully", "duration": res.Duration})
}

// ForceEndBooking handles PUT /api/bookings/:id/force-end.
func (h *Handler) ForceEndBooking(c *gin.Context) {
	res, err := h.bookings.ForceEndBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	h.invalidate()
	c.JSON(http.StatusOK, gin.H{"message": "Booking force-ended", "duration": res.Duration})
}

// CancelBooking handles PUT /api/bookings/:id/cancel.
func (h *Handler) CancelBooking(c *gin.Context) {
	if err := h.bookings.CancelBooking(c.Request.Context(), c.Param("id"), mw.UserID(c)); err != nil {
		writeError(c, err)
		return
	}
	h.invalidate()
	c.JSON(http.StatusOK, gin.H{"message": "Booking cancelled"})
}
