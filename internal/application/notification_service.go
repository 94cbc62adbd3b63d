package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// NotificationService manages the notifications of users.
type NotificationService struct {
	notifications NotificationRepository
	now           func() time.Time
	logger        *slog.Logger
}

// NewNotificationService wires dependencies for notification operations.
func NewNotificationService(notifications NotificationRepository, now func() time.Time, logger *slog.Logger) *NotificationService {
	if now == nil {
		now = time.Now
	}
	return &NotificationService{notifications: notifications, now: now, logger: defaultLogger(logger)}
}

// Notify stores a notification for its user.
func (s *NotificationService) Notify(ctx context.Context, notification Notification) error {
	if s == nil {
		return fmt.Errorf("NotificationService is nil")
	}
	if s.notifications == nil {
		return fmt.Errorf("notification repository not configured")
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = s.now()
	}
	if err := s.notifications.CreateNotification(ctx, notification); err != nil {
		return mapRepoError("create notification", err)
	}
	return nil
}

// ListNotifications returns the principal's notifications, newest first.
func (s *NotificationService) ListNotifications(ctx context.Context, principal Principal, unreadOnly bool) ([]Notification, error) {
	if s == nil {
		return nil, fmt.Errorf("NotificationService is nil")
	}
	if s.notifications == nil {
		return nil, fmt.Errorf("notification repository not configured")
	}
	if principal.UserID == "" {
		return nil, ErrUnauthorized
	}
	notifications, err := s.notifications.ListNotifications(ctx, principal.UserID, unreadOnly)
	if err != nil {
		return nil, mapRepoError("list notifications", err)
	}
	return notifications, nil
}

// MarkRead marks one of the principal's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, principal Principal, notificationID string) error {
	if s == nil {
		return fmt.Errorf("NotificationService is nil")
	}
	if s.notifications == nil {
		return fmt.Errorf("notification repository not configured")
	}
	if principal.UserID == "" {
		return ErrUnauthorized
	}
	if err := s.notifications.MarkNotificationRead(ctx, principal.UserID, notificationID, s.now()); err != nil {
		return mapRepoError("mark notification read", err)
	}
	return nil
}

// MarkAllRead marks every unread notification of the principal as read and
// returns how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, principal Principal) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("NotificationService is nil")
	}
	if s.notifications == nil {
		return 0, fmt.Errorf("notification repository not configured")
	}
	if principal.UserID == "" {
		return 0, ErrUnauthorized
	}
	count, err := s.notifications.MarkAllNotificationsRead(ctx, principal.UserID, s.now())
	if err != nil {
		return 0, mapRepoError("mark all notifications read", err)
	}
	return count, nil
}

// PurgeRead deletes notifications read longer ago than retention.
func (s *NotificationService) PurgeRead(ctx context.Context, retention time.Duration) (purged int, err error) {
	if s == nil {
		return 0, fmt.Errorf("NotificationService is nil")
	}
	if s.notifications == nil {
		return 0, fmt.Errorf("notification repository not configured")
	}
	logger := serviceLogger(ctx, s.logger, "NotificationService", "PurgeRead", "retention", retention.String())
	defer func() {
		logOutcome(ctx, logger, err, "read notifications purged", "purged", purged)
	}()

	if retention <= 0 {
		vErr := &ValidationError{}
		vErr.add("retention", "retention must be positive")
		return 0, vErr
	}
	purged, err = s.notifications.PurgeNotifications(ctx, s.now().Add(-retention))
	if err != nil {
		return 0, mapRepoError("purge notifications", err)
	}
	return purged, nil
}
