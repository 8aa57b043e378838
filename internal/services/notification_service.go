package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pampermomma/backend/internal/dto"
	"github.com/pampermomma/backend/internal/events"
	"github.com/pampermomma/backend/internal/models"
	"gorm.io/gorm"
)

var ErrNotificationNotFound = errors.New("notification not found")

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// NotificationService stores in-app notifications and fans new ones out to
// the event bus.
type NotificationService struct {
	db        *gorm.DB
	publisher events.Publisher
}

func NewNotificationService(db *gorm.DB, publisher events.Publisher) *NotificationService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &NotificationService{db: db, publisher: publisher}
}

// List returns the user's own notifications and active general ones, newest
// first.
func (s *NotificationService) List(userID uuid.UUID, page, pageSize int) (*dto.NotificationListResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	visible := s.db.Model(&models.Notification{}).
		Where("user_id = ? OR (user_id IS NULL AND is_active = ?)", userID, true)

	var count int64
	if err := visible.Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to count notifications: %w", err)
	}

	results := []models.Notification{}
	err := s.db.Where("user_id = ? OR (user_id IS NULL AND is_active = ?)", userID, true).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	return &dto.NotificationListResponse{
		Count:    count,
		Page:     page,
		PageSize: pageSize,
		Results:  results,
	}, nil
}

// MarkRead flags one of the user's own notifications as read.
func (s *NotificationService) MarkRead(userID, id uuid.UUID) (*models.Notification, error) {
	var n models.Notification
	if err := s.db.Where("user_id = ?", userID).First(&n, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}
	if err := s.db.Model(&n).Update("is_read", true).Error; err != nil {
		return nil, fmt.Errorf("failed to mark notification read: %w", err)
	}
	n.IsRead = true
	return &n, nil
}

// CreateForUser inserts a notification addressed to userID using tx. Call
// Publish after the surrounding transaction commits.
func (s *NotificationService) CreateForUser(tx *gorm.DB, userID uuid.UUID, kind, title, message string) (*models.Notification, error) {
	n := models.Notification{
		Type:     kind,
		Title:    title,
		Message:  message,
		UserID:   &userID,
		IsActive: true,
	}
	if err := tx.Create(&n).Error; err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	return &n, nil
}

// Publish sends n on its subject. Failures are logged; the row is already
// stored and will be seen on the next list.
func (s *NotificationService) Publish(ctx context.Context, n *models.Notification) {
	subject := events.GeneralNotificationSubject
	if n.UserID != nil {
		subject = events.UserNotificationSubject(n.UserID.String())
	}
	if err := s.publisher.Publish(ctx, subject, n); err != nil {
		slog.Warn("failed to publish notification",
			"action", "publish_notification",
			"subject", subject,
			"error", err.Error())
	}
}
