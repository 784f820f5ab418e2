// Package event carries booking lifecycle changes from the booking service to
// the notifier sinks (real-time stream, push notifications, cache).
package event

import "room-occupancy-backend/internal/model"

// Type is the wire name of an event.
type Type string

const (
	BookingCreated    Type = "bookingCreated"
	BookingEnded      Type = "bookingEnded"
	RoomsUpdated      Type = "roomsUpdated"
	UserStatusChanged Type = "professorsUpdated"
)

// Event is a committed change. ActorID is the user whose request caused it
// (empty for administrative or background changes).
type Event struct {
	Type    Type
	ActorID string
	Payload any
}

// BookingEndedPayload identifies a booking that left the Active state.
type BookingEndedPayload struct {
	BookingID string              `json:"bookingId"`
	Status    model.BookingStatus `json:"status"`
}

// UserStatusPayload is a user's occupancy after a change.
type UserStatusPayload struct {
	ID            string `json:"id"`
	CurrentStatus string `json:"currentStatus"`
	CurrentRoom   string `json:"currentRoom"`
}

// NewBookingCreated carries the full booking with user and room resolved.
func NewBookingCreated(b *model.Booking) Event {
	return Event{Type: BookingCreated, ActorID: b.UserID, Payload: b}
}

func NewBookingEnded(bookingID string, status model.BookingStatus, actorID string) Event {
	return Event{Type: BookingEnded, ActorID: actorID, Payload: BookingEndedPayload{BookingID: bookingID, Status: status}}
}

// NewRoomsUpdated carries the full room list with occupants resolved.
func NewRoomsUpdated(rooms []model.Room, actorID string) Event {
	return Event{Type: RoomsUpdated, ActorID: actorID, Payload: rooms}
}

func NewUserStatusChanged(userID, status, room, actorID string) Event {
	return Event{
		Type:    UserStatusChanged,
		ActorID: actorID,
		Payload: UserStatusPayload{ID: userID, CurrentStatus: status, CurrentRoom: room},
	}
}
