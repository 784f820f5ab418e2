package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"room-occupancy-backend/internal/booking"
)

// writeError maps service errors onto HTTP responses.
func writeError(c *gin.Context, err error) {
	var verr *booking.ValidationError
	var booked *booking.UserAlreadyBookedError

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
	case errors.As(err, &booked):
		c.JSON(http.StatusConflict, gin.H{
			"error": booking.ErrUserAlreadyBooked.Error(),
			"currentBooking": gin.H{
				"roomNumber": booked.RoomNumber,
				"startTime":  booked.StartTime,
			},
		})
	case errors.Is(err, booking.ErrRoomOccupied),
		errors.Is(err, booking.ErrTimeConflict),
		errors.Is(err, booking.ErrBookingStarted):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, booking.ErrRoomNotFound),
		errors.Is(err, booking.ErrUserNotFound),
		errors.Is(err, booking.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, booking.ErrBusy):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		log.Printf("Request %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
