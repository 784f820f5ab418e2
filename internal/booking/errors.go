package booking

import (
	"errors"
	"fmt"
	"time"
)

// Rejections: the request cannot be admitted as given. Nothing was changed
// and the system does not retry.
var (
	ErrUserAlreadyBooked = errors.New("you already have an active booking")
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomOccupied      = errors.New("room is currently occupied")
	ErrTimeConflict      = errors.New("room is already booked for this time")
	ErrUserNotFound      = errors.New("professor not found")
	ErrBookingNotFound   = errors.New("active booking not found")
	ErrBookingStarted    = errors.New("booking has already started")
)

var (
	// ErrBusy means the room or user lease could not be taken in time.
	ErrBusy = errors.New("room or professor is busy, try again")

	// ErrOperationFailed wraps storage faults. No partial state is left behind.
	ErrOperationFailed = errors.New("operation failed")
)

// UserAlreadyBookedError identifies the active booking that blocks a new one.
type UserAlreadyBookedError struct {
	RoomNumber string
	StartTime  time.Time
}

func (e *UserAlreadyBookedError) Error() string {
	return fmt.Sprintf("%s (room %s since %s)", ErrUserAlreadyBooked, e.RoomNumber, e.StartTime.Format(time.RFC3339))
}

func (e *UserAlreadyBookedError) Is(target error) bool {
	return target == ErrUserAlreadyBooked
}

// ValidationError reports malformed input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

var rejections = []error{
	ErrUserAlreadyBooked,
	ErrRoomNotFound,
	ErrRoomOccupied,
	ErrTimeConflict,
	ErrUserNotFound,
	ErrBookingNotFound,
	ErrBookingStarted,
}

// IsRejection reports whether err is a rejection rather than a fault.
func IsRejection(err error) bool {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return true
	}
	for _, r := range rejections {
		if errors.Is(err, r) {
			return true
		}
	}
	return false
}

// outcome is the metrics label for an error.
func outcome(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &verr):
		return "invalid"
	case errors.Is(err, ErrUserAlreadyBooked):
		return "user_already_booked"
	case errors.Is(err, ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, ErrRoomOccupied):
		return "room_occupied"
	case errors.Is(err, ErrTimeConflict):
		return "time_conflict"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrBookingNotFound):
		return "booking_not_found"
	case errors.Is(err, ErrBookingStarted):
		return "booking_started"
	case errors.Is(err, ErrBusy):
		return "busy"
	default:
		return "failed"
	}
}
