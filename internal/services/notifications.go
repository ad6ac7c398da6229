package services

import (
	"errors"
	"time"

	"taskflow/backend/internal/apperrors"
	"taskflow/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type NotificationService interface {
	Create(db *gorm.DB, recipientID uuid.UUID, taskID *uuid.UUID, notifType, message string) (models.Notification, error)
	ListForUser(db *gorm.DB, userID uuid.UUID, unreadOnly bool) ([]models.Notification, error)
	UnreadCount(db *gorm.DB, userID uuid.UUID) (int64, error)
	MarkRead(db *gorm.DB, notificationID, userID uuid.UUID) error
	MarkAllRead(db *gorm.DB, userID uuid.UUID) (int64, error)
}

type NotificationServiceImpl struct {
	feed FeedPublisher
}

func NewNotificationService(feed FeedPublisher) *NotificationServiceImpl {
	return &NotificationServiceImpl{feed: feed}
}

func (s *NotificationServiceImpl) Create(db *gorm.DB, recipientID uuid.UUID, taskID *uuid.UUID, notifType, message string) (models.Notification, error) {
	if message == "" {
		return models.Notification{}, apperrors.ErrValidation.WithMessage("notification message is required")
	}
	id, err := uuid.NewV4()
	if err != nil {
		return models.Notification{}, err
	}
	notification := models.Notification{
		ID:          id,
		RecipientID: recipientID,
		TaskID:      taskID,
		Type:        notifType,
		Message:     message,
	}
	if err := db.Create(&notification).Error; err != nil {
		return models.Notification{}, err
	}
	publish(s.feed, "notifications", FeedInsert, notification.ID, notification)
	return notification, nil
}

func (s *NotificationServiceImpl) ListForUser(db *gorm.DB, userID uuid.UUID, unreadOnly bool) ([]models.Notification, error) {
	query := db.Where("recipient_id = ?", userID)
	if unreadOnly {
		query = query.Where("read = ?", false)
	}
	var notifications []models.Notification
	err := query.Order("created_at desc").Limit(200).Find(&notifications).Error
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

func (s *NotificationServiceImpl) UnreadCount(db *gorm.DB, userID uuid.UUID) (int64, error) {
	var count int64
	err := db.Model(&models.Notification{}).
		Where("recipient_id = ? AND read = ?", userID, false).
		Count(&count).Error
	return count, err
}

func (s *NotificationServiceImpl) MarkRead(db *gorm.DB, notificationID, userID uuid.UUID) error {
	var notification models.Notification
	err := db.First(&notification, "id = ? AND recipient_id = ?", notificationID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound.WithMessage("notification not found")
		}
		return err
	}
	if notification.Read {
		return nil
	}
	now := time.Now()
	err = db.Model(&models.Notification{}).Where("id = ?", notificationID).Updates(map[string]interface{}{
		"read":    true,
		"read_at": now,
	}).Error
	if err != nil {
		return err
	}
	notification.Read = true
	notification.ReadAt = &now
	publish(s.feed, "notifications", FeedUpdate, notificationID, notification)
	return nil
}

func (s *NotificationServiceImpl) MarkAllRead(db *gorm.DB, userID uuid.UUID) (int64, error) {
	now := time.Now()
	res := db.Model(&models.Notification{}).
		Where("recipient_id = ? AND read = ?", userID, false).
		Updates(map[string]interface{}{"read": true, "read_at": now})
	return res.RowsAffected, res.Error
}
