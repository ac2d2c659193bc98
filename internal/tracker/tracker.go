// Package tracker reads and acknowledges change-log rows in the external
// issue tracker's database. Connections are opened per poll and closed when
// the poll finishes; nothing here is pooled across polls.
package tracker

import (
	"context"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"helpdesk-portal-go/internal/models"
)

// fetchLimit caps how many change-log rows a single poll consumes per table.
const fetchLimit = 50

// Connector opens a fresh connection to the tracker schema.
type Connector func(ctx context.Context) (*sqlx.DB, error)

// MySQLConnector returns a Connector for the tracker's MySQL DSN.
func MySQLConnector(dsn string) Connector {
	return func(ctx context.Context) (*sqlx.DB, error) {
		db, err := sqlx.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("opening tracker database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("pinging tracker database: %w", err)
		}
		return db, nil
	}
}

// Client wraps one open tracker connection.
type Client struct {
	db *sqlx.DB
}

// NewClient wraps an already-open tracker connection.
func NewClient(db *sqlx.DB) *Client {
	return &Client{db: db}
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.db.Close()
}

// RecentStatusChanges returns the newest unconsumed status transitions
// authored against the given email, newest first.
func (c *Client) RecentStatusChanges(ctx context.Context, email string) ([]models.StatusChangeRow, error) {
	var rows []models.StatusChangeRow
	err := c.db.SelectContext(ctx, &rows,
		`SELECT id, issue_id, issue_subject, old_status, new_status, author_email, created_at
		 FROM status_change_log
		 WHERE LOWER(author_email) = LOWER(?)
		 ORDER BY created_at DESC
		 LIMIT ?`, email, fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("reading status change log: %w", err)
	}
	return rows, nil
}

// RecentComments returns the newest unconsumed comment rows authored against
// the given email, newest first.
func (c *Client) RecentComments(ctx context.Context, email string) ([]models.CommentRow, error) {
	var rows []models.CommentRow
	err := c.db.SelectContext(ctx, &rows,
		`SELECT id, issue_id, author, author_email, notes, created_at
		 FROM comment_log
		 WHERE LOWER(author_email) = LOWER(?)
		 ORDER BY created_at DESC
		 LIMIT ?`, email, fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("reading comment log: %w", err)
	}
	return rows, nil
}

// DeleteStatusChanges acknowledges processed status-change rows by primary
// key. Rows not in ids stay behind for the next poll.
func (c *Client) DeleteStatusChanges(ctx context.Context, ids []int64) error {
	return c.deleteRows(ctx, "status_change_log", ids)
}

// DeleteComments acknowledges processed comment rows by primary key.
func (c *Client) DeleteComments(ctx context.Context, ids []int64) error {
	return c.deleteRows(ctx, "comment_log", ids)
}

func (c *Client) deleteRows(ctx context.Context, table string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	_, err := c.db.ExecContext(ctx,
		`DELETE FROM `+table+` WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("deleting %s rows: %w", table, err)
	}
	return nil
}

// NativeNotifications returns the tracker's own notifications for a
// tracker-side user id, newest first.
func (c *Client) NativeNotifications(ctx context.Context, trackerUserID int64) ([]models.NativeNotificationRow, error) {
	var rows []models.NativeNotificationRow
	err := c.db.SelectContext(ctx, &rows,
		`SELECT id, user_id, issue_id, issue_subject, issue_url, is_group, group_name, is_read, created_at
		 FROM notifications
		 WHERE user_id = ?
		 ORDER BY created_at DESC
		 LIMIT ?`, trackerUserID, fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("reading tracker notifications: %w", err)
	}
	return rows, nil
}

// MarkNativeRead flips the tracker's authoritative read flag on one of its
// notifications.
func (c *Client) MarkNativeRead(ctx context.Context, trackerUserID, notificationID int64) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?`,
		notificationID, trackerUserID)
	if err != nil {
		return fmt.Errorf("marking tracker notification read: %w", err)
	}
	return nil
}

// MarkNativeReadMany flips the read flag on a batch of tracker notifications.
func (c *Client) MarkNativeReadMany(ctx context.Context, trackerUserID int64, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, trackerUserID)

	_, err := c.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE id IN (`+placeholders+`) AND user_id = ?`, args...)
	if err != nil {
		return fmt.Errorf("marking tracker notifications read: %w", err)
	}
	return nil
}

// MarkAllNativeRead flips the read flag on every tracker notification of the
// user.
func (c *Client) MarkAllNativeRead(ctx context.Context, trackerUserID int64) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE user_id = ?`, trackerUserID)
	if err != nil {
		return fmt.Errorf("marking tracker notifications read: %w", err)
	}
	return nil
}

// DeleteNative removes one of the tracker's own notification rows.
func (c *Client) DeleteNative(ctx context.Context, trackerUserID, notificationID int64) error {
	_, err := c.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE id = ? AND user_id = ?`,
		notificationID, trackerUserID)
	if err != nil {
		return fmt.Errorf("deleting tracker notification: %w", err)
	}
	return nil
}
