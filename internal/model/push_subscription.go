package model

import "time"

// PushSubscription holds a user's browser push subscription. A user has at
// most one; subscribing again replaces it.
type PushSubscription struct {
	UserID    string    `gorm:"primaryKey;size:64"`
	Endpoint  string    `gorm:"type:text;not null"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time
}

// Valid reports whether the subscription carries everything needed to send.
func (s *PushSubscription) Valid() bool {
	return s.Endpoint != "" && s.P256DH != "" && s.Auth != ""
}
