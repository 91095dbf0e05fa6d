package services

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/database"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/errs"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/models"
)

const (
	defaultInboxLimit = 50
	maxInboxLimit     = 200
)

type InboxFilter struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}

// NotificationService is a user's inbox.
type NotificationService struct {
	db *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{db: db}
}

// List returns the newest notifications first together with the total that
// matched the filter.
func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, f InboxFilter) ([]models.Notification, int64, error) {
	if f.Limit <= 0 {
		f.Limit = defaultInboxLimit
	}
	if f.Limit > maxInboxLimit {
		f.Limit = maxInboxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	inbox := func() *gorm.DB {
		q := database.Conn(ctx, s.db).Model(&models.Notification{}).Where("user_id = ?", userID)
		if f.UnreadOnly {
			q = q.Where("read = ?", false)
		}
		return q
	}

	var total int64
	if err := inbox().Count(&total).Error; err != nil {
		return nil, 0, errs.Wrap(err, "count notifications")
	}

	var items []models.Notification
	if err := inbox().Order("created_at DESC").Limit(f.Limit).Offset(f.Offset).Find(&items).Error; err != nil {
		return nil, 0, errs.Wrap(err, "list notifications")
	}
	return items, total, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := database.Conn(ctx, s.db).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, errs.Wrap(err, "count unread notifications")
	}
	return count, nil
}

// MarkRead flags one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	result := database.Conn(ctx, s.db).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read", true)
	if result.Error != nil {
		return errs.Wrap(result.Error, "mark notification read")
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	result := database.Conn(ctx, s.db).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Update("read", true)
	if result.Error != nil {
		return 0, errs.Wrap(result.Error, "mark notifications read")
	}
	return result.RowsAffected, nil
}

// Clear deletes every notification of the user.
func (s *NotificationService) Clear(ctx context.Context, userID uuid.UUID) (int64, error) {
	result := database.Conn(ctx, s.db).Where("user_id = ?", userID).Delete(&models.Notification{})
	if result.Error != nil {
		return 0, errs.Wrap(result.Error, "clear notifications")
	}
	return result.RowsAffected, nil
}
