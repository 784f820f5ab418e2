package model

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingActive    BookingStatus = "Active"
	BookingCompleted BookingStatus = "Completed"
	BookingCancelled BookingStatus = "Cancelled"
)

// Booking is a ledger entry. Bookings are never deleted.
type Booking struct {
	ID            string        `gorm:"primaryKey;size:36" json:"id"`
	UserID        string        `gorm:"size:64;not null;index:idx_bookings_user_status" json:"professorId"`
	RoomID        string        `gorm:"size:64;not null;index:idx_bookings_room_status" json:"roomId"`
	RoomNumber    string        `gorm:"size:64;not null" json:"roomNumber"`
	Purpose       string        `gorm:"size:512;not null" json:"purpose"`
	Notes         string        `gorm:"type:text" json:"notes"`
	StartTime     time.Time     `gorm:"not null;index" json:"startTime"`
	EndTime       time.Time     `gorm:"not null" json:"endTime"`
	Status        BookingStatus `gorm:"size:16;not null;index:idx_bookings_user_status;index:idx_bookings_room_status" json:"status"`
	ActualEndTime *time.Time    `json:"actualEndTime,omitempty"`
	Duration      *int          `json:"duration,omitempty"` // minutes
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`

	// Associations
	User *User `gorm:"foreignKey:UserID" json:"professor,omitempty"`
	Room *Room `gorm:"foreignKey:RoomID" json:"room,omitempty"`
}

// Overlaps reports whether the half-open windows [start, end) of b and the
// given window intersect. Back-to-back windows do not overlap.
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.StartTime.Before(end) && start.Before(b.EndTime)
}
