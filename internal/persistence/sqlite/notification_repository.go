package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Lowii-3dy/campus-sched/internal/persistence"
)

type notificationRow struct {
	ID        string         `db:"id"`
	UserID    string         `db:"user_id"`
	EventID   sql.NullString `db:"event_id"`
	Kind      string         `db:"kind"`
	Message   string         `db:"message"`
	ReadAt    sql.NullString `db:"read_at"`
	CreatedAt string         `db:"created_at"`
}

const notificationColumns = `id, user_id, event_id, kind, message, read_at, created_at`

// CreateNotification stores a notification.
func (s *Storage) CreateNotification(ctx context.Context, notification persistence.Notification) error {
	row := notificationRow{
		ID:        notification.ID,
		UserID:    notification.UserID,
		EventID:   nullString(notification.EventID),
		Kind:      notification.Kind,
		Message:   notification.Message,
		ReadAt:    nullTime(notification.ReadAt),
		CreatedAt: formatTime(notification.CreatedAt),
	}
	const insert = `INSERT INTO notifications (` + notificationColumns + `)
		VALUES (:id, :user_id, :event_id, :kind, :message, :read_at, :created_at)`
	if _, err := s.pool.DB().NamedExecContext(ctx, insert, row); err != nil {
		return mapError(err)
	}
	return nil
}

// ListNotifications returns a user's notifications, newest first.
func (s *Storage) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]persistence.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = ?`
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	var rows []notificationRow
	if err := s.pool.DB().SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, mapError(err)
	}
	notifications := make([]persistence.Notification, 0, len(rows))
	for _, row := range rows {
		createdAt, err := parseTime("created_at", row.CreatedAt)
		if err != nil {
			return nil, err
		}
		readAt, err := parseNullTime("read_at", row.ReadAt)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, persistence.Notification{
			ID:        row.ID,
			UserID:    row.UserID,
			EventID:   stringPtr(row.EventID),
			Kind:      row.Kind,
			Message:   row.Message,
			ReadAt:    readAt,
			CreatedAt: createdAt,
		})
	}
	return notifications, nil
}

// MarkNotificationRead marks one of the user's notifications as read.
// Marking an already read notification keeps its original read time.
func (s *Storage) MarkNotificationRead(ctx context.Context, userID, id string, at time.Time) error {
	result, err := s.pool.DB().ExecContext(ctx,
		`UPDATE notifications SET read_at = COALESCE(read_at, ?) WHERE id = ? AND user_id = ?`,
		formatTime(at), id, userID)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(result)
}

// MarkAllNotificationsRead marks every unread notification of the user and
// returns how many changed.
func (s *Storage) MarkAllNotificationsRead(ctx context.Context, userID string, at time.Time) (int, error) {
	result, err := s.pool.DB().ExecContext(ctx,
		`UPDATE notifications SET read_at = ? WHERE user_id = ? AND read_at IS NULL`,
		formatTime(at), userID)
	if err != nil {
		return 0, mapError(err)
	}
	return affectedCount(result)
}

// PurgeNotifications deletes notifications read before the cutoff.
func (s *Storage) PurgeNotifications(ctx context.Context, readBefore time.Time) (int, error) {
	result, err := s.pool.DB().ExecContext(ctx,
		`DELETE FROM notifications WHERE read_at IS NOT NULL AND read_at < ?`, formatTime(readBefore))
	if err != nil {
		return 0, mapError(err)
	}
	return affectedCount(result)
}

func affectedCount(result sql.Result) (int, error) {
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: rows affected: %w", err)
	}
	return int(affected), nil
}
