package store

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"room-occupancy-backend/internal/model"
)

// The two setters below are the only writers of room and user occupancy
// columns. A room is occupied iff it has an occupant; a user is "In Room" iff
// they have a current room.

func setRoomOccupancy(tx *gorm.DB, roomID string, occupantID *string) error {
	var occupant any
	if occupantID != nil {
		occupant = *occupantID
	}
	err := tx.Model(&model.Room{}).Where("id = ?", roomID).Updates(map[string]any{
		"is_occupied":         occupantID != nil,
		"current_occupant_id": occupant,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to update occupancy of room %s: %w", roomID, err)
	}
	return nil
}

func setUserOccupancy(tx *gorm.DB, userID, roomNumber string) error {
	status := model.StatusAvailable
	if roomNumber != "" {
		status = model.StatusInRoom
	}
	err := tx.Model(&model.User{}).Where("id = ?", userID).Updates(map[string]any{
		"current_status": status,
		"current_room":   roomNumber,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to update status of user %s: %w", userID, err)
	}
	return nil
}

// LockOccupancy takes the room row lock and then the user row lock, in the
// same order Release writes them, and holds both until the transaction ends.
// Missing rows are not an error. SQLite serializes writers on its own.
func (t *gormTx) LockOccupancy(roomID, userID string) error {
	if t.db.Dialector.Name() == "sqlite" {
		return nil
	}
	var ids []string
	err := t.db.Model(&model.Room{}).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", roomID).Pluck("id", &ids).Error
	if err != nil {
		return fmt.Errorf("failed to lock room %s: %w", roomID, err)
	}
	err = t.db.Model(&model.User{}).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", userID).Pluck("id", &ids).Error
	if err != nil {
		return fmt.Errorf("failed to lock user %s: %w", userID, err)
	}
	return nil
}

// Occupy marks the room as held by the user and the user as in that room.
func (t *gormTx) Occupy(room *model.Room, userID string) error {
	if err := setRoomOccupancy(t.db, room.ID, &userID); err != nil {
		return err
	}
	return setUserOccupancy(t.db, userID, room.Number)
}

// Release frees the room and makes the user available again.
func (t *gormTx) Release(roomID, userID string) error {
	if err := setRoomOccupancy(t.db, roomID, nil); err != nil {
		return err
	}
	return setUserOccupancy(t.db, userID, "")
}

// SyncRoom overwrites only the room side, for repairing drift.
func (t *gormTx) SyncRoom(roomID string, occupantID *string) error {
	return setRoomOccupancy(t.db, roomID, occupantID)
}

// SyncUser overwrites only the user side, for repairing drift.
func (t *gormTx) SyncUser(userID, roomNumber string) error {
	return setUserOccupancy(t.db, userID, roomNumber)
}
