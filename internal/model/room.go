package model

import "time"

// Room is a physical room that can be held by at most one active booking.
type Room struct {
	ID                string    `gorm:"primaryKey;size:64" json:"id"`
	Number            string    `gorm:"uniqueIndex;size:64;not null" json:"roomNumber"`
	Floor             int       `json:"floor"`
	IsOccupied        bool      `gorm:"not null;default:false" json:"isOccupied"`
	CurrentOccupantID *string   `gorm:"size:64;index" json:"-"`
	CreatedAt         time.Time `json:"-"`
	UpdatedAt         time.Time `json:"-"`

	// Associations
	CurrentOccupant *User `gorm:"foreignKey:CurrentOccupantID" json:"currentUser"`
}
