package notification

import (
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/models"
	"auction-engine/internal/repository"
	"context"
	"fmt"
)

// NotificationService exposes a user's notification inbox
type NotificationService struct {
	repo repository.NotificationRepository
}

// NewNotificationService creates a new NotificationService instance
func NewNotificationService(repo repository.NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

// ListForUser returns the user's notifications, newest first
func (s *NotificationService) ListForUser(ctx context.Context, userID string) ([]models.Notification, error) {
	if userID == "" {
		return nil, fmt.Errorf("notifications: %w - empty user ID", biddingerrors.ErrForbidden)
	}
	list, err := s.repo.GetNotificationsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("notifications: failed to list for user %s: %w", userID, err)
	}
	return list, nil
}

// MarkRead sets the read flag on one of the caller's notifications
func (s *NotificationService) MarkRead(ctx context.Context, notificationID, userID string, read bool) (models.Notification, error) {
	n, err := s.repo.GetNotification(ctx, notificationID)
	if err != nil {
		return models.Notification{}, fmt.Errorf("notifications: failed to get %s: %w", notificationID, err)
	}
	if n.UserID != userID {
		return models.Notification{}, fmt.Errorf("notifications: %w - notification %s belongs to another user", biddingerrors.ErrForbidden, notificationID)
	}

	if err := s.repo.SetNotificationRead(ctx, notificationID, read); err != nil {
		return models.Notification{}, fmt.Errorf("notifications: failed to mark %s: %w", notificationID, err)
	}
	n.Read = read
	return n, nil
}
