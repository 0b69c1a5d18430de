package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/BetterCallFirewall/Pentrack/internal/models"
)

// CreateNotifications inserts a batch of inbox rows in one transaction.
// Missing IDs and creation times are filled in place.
func (s *SQLiteStorage) CreateNotifications(ctx context.Context, batch []models.Notification) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, link, metadata, read, read_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing notification insert: %w", err)
	}
	defer stmt.Close()

	for i := range batch {
		n := &batch[i]
		if n.ID == "" {
			n.ID = uuid.NewString()
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = time.Now().UTC()
		}
		_, err = stmt.ExecContext(ctx,
			n.ID, n.UserID, string(n.Type), n.Title, n.Message,
			n.Link, n.Metadata, boolToInt(n.Read), utcOrNil(n.ReadAt), n.CreatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("inserting notification for user %s: %w", n.UserID, err)
		}
	}

	return tx.Commit()
}

// ListNotifications returns the newest notifications of a user.
func (s *SQLiteStorage) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	query := "SELECT * FROM notifications WHERE user_id = ?"
	if unreadOnly {
		query += " AND read = 0"
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	var out []models.Notification
	if err := s.db.SelectContext(ctx, &out, query, userID); err != nil {
		return nil, fmt.Errorf("listing notifications of %s: %w", userID, err)
	}
	return out, nil
}

// MarkNotificationRead flags one notification as read. The row must belong
// to userID; otherwise models.ErrNotFound is returned and nothing changes.
func (s *SQLiteStorage) MarkNotificationRead(ctx context.Context, id, userID string) (models.Notification, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read = 1, read_at = COALESCE(read_at, ?)
		WHERE id = ? AND user_id = ?`, now, id, userID)
	if err != nil {
		return models.Notification{}, fmt.Errorf("marking notification %s as read: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.Notification{}, models.ErrNotFound
	}

	var n models.Notification
	err = s.db.GetContext(ctx, &n, "SELECT * FROM notifications WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Notification{}, models.ErrNotFound
	}
	if err != nil {
		return models.Notification{}, fmt.Errorf("reloading notification %s: %w", id, err)
	}
	return n, nil
}

// MarkAllNotificationsRead flags every unread notification of the user and
// returns how many rows changed.
func (s *SQLiteStorage) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET read = 1, read_at = ? WHERE user_id = ? AND read = 0",
		time.Now().UTC(), userID)
	if err != nil {
		return 0, fmt.Errorf("marking notifications of %s as read: %w", userID, err)
	}
	return res.RowsAffected()
}

// CountUnreadNotifications returns the unread inbox size of the user.
func (s *SQLiteStorage) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read = 0", userID)
	if err != nil {
		return 0, fmt.Errorf("counting unread notifications of %s: %w", userID, err)
	}
	return n, nil
}
