package store

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"room-occupancy-backend/internal/model"
)

// SaveSubscription creates or replaces the user's push subscription.
func (s *gormStore) SaveSubscription(ctx context.Context, sub *model.PushSubscription) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"endpoint", "p256dh", "auth", "updated_at"}),
	}).Create(sub).Error
	if err != nil {
		return fmt.Errorf("failed to save subscription for user %s: %w", sub.UserID, err)
	}
	return nil
}

func (s *gormStore) DeleteSubscription(ctx context.Context, userID string) error {
	if err := s.db.WithContext(ctx).Delete(&model.PushSubscription{}, "user_id = ?", userID).Error; err != nil {
		return fmt.Errorf("failed to delete subscription for user %s: %w", userID, err)
	}
	return nil
}

// SubscriptionsExcept returns every subscription not owned by userID.
func (s *gormStore) SubscriptionsExcept(ctx context.Context, userID string) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Where("user_id <> ?", userID).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch subscriptions: %w", err)
	}
	return subs, nil
}
