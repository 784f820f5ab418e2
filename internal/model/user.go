package model

import "time"

const (
	StatusAvailable = "Available"
	StatusInRoom    = "In Room"
)

// User is a professor who may hold at most one active booking.
type User struct {
	ID            string    `gorm:"primaryKey;size:64" json:"id"`
	Name          string    `gorm:"size:256;not null" json:"name"`
	Email         string    `gorm:"size:256" json:"email,omitempty"`
	Department    string    `gorm:"size:256" json:"department,omitempty"`
	CurrentStatus string    `gorm:"size:32;not null;default:Available" json:"currentStatus"`
	CurrentRoom   string    `gorm:"size:64" json:"currentRoom"`
	CreatedAt     time.Time `json:"-"`
	UpdatedAt     time.Time `json:"-"`
}
