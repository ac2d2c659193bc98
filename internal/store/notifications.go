package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"helpdesk-portal-go/internal/models"
)

// ErrNotFound is returned when a row does not exist or is owned by a
// different user.
var ErrNotFound = errors.New("notification not found")

// SaveStatusChange inserts a status change notification unless an identical
// row already exists. Returns true when a new row was written. The existence
// check is the persistent fallback behind the in-memory deduplicator.
func (s *Store) SaveStatusChange(ctx context.Context, n models.StatusChangeNotification) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM status_change_notifications
		 WHERE user_id = ? AND issue_id = ? AND old_status = ? AND new_status = ?
		   AND old_subject = ? AND created_at = ?`,
		n.UserID, n.IssueID, n.OldStatus, n.NewStatus, n.OldSubject, n.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("checking existing status notification: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO status_change_notifications
		 (user_id, issue_id, old_status, new_status, old_subject, created_at, is_read)
		 VALUES (?, ?, ?, ?, ?, ?, 0)`,
		n.UserID, n.IssueID, n.OldStatus, n.NewStatus, n.OldSubject, n.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("inserting status notification: %w", err)
	}
	return true, nil
}

// SaveComment inserts a comment notification unless an identical row already
// exists. Returns true when a new row was written.
func (s *Store) SaveComment(ctx context.Context, n models.CommentNotification) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM comment_notifications
		 WHERE user_id = ? AND issue_id = ? AND author = ? AND note_text = ? AND created_at = ?`,
		n.UserID, n.IssueID, n.Author, n.NoteText, n.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("checking existing comment notification: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO comment_notifications
		 (user_id, issue_id, author, note_text, created_at, source_id, is_read)
		 VALUES (?, ?, ?, ?, ?, ?, 0)`,
		n.UserID, n.IssueID, n.Author, n.NoteText, n.CreatedAt, n.SourceID,
	)
	if err != nil {
		return false, fmt.Errorf("inserting comment notification: %w", err)
	}
	return true, nil
}

// UpsertTrackerNative mirrors one of the tracker's own notifications into the
// local cache. Uniqueness on (user_id, source_notification_id) makes re-sync
// idempotent; the tracker's is_read flag wins on conflict.
func (s *Store) UpsertTrackerNative(ctx context.Context, n models.TrackerNativeNotification) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tracker_notifications
		 (user_id, tracker_issue_id, issue_subject, issue_url, is_group, group_name,
		  created_at, source_notification_id, is_read)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, source_notification_id) DO UPDATE SET
		  issue_subject = excluded.issue_subject,
		  issue_url = excluded.issue_url,
		  is_group = excluded.is_group,
		  group_name = excluded.group_name,
		  is_read = excluded.is_read`,
		n.UserID, n.TrackerIssueID, n.IssueSubject, n.IssueURL, n.IsGroupNotification,
		n.GroupName, n.CreatedAt, n.SourceNotificationID, n.IsRead,
	)
	if err != nil {
		return fmt.Errorf("upserting tracker notification: %w", err)
	}
	return nil
}

// GetUnreadForWidget returns only unread rows for the live badge endpoint.
// Legacy rows carry NULL in is_read and count as unread.
func (s *Store) GetUnreadForWidget(ctx context.Context, userID int64) (models.Feed, error) {
	return s.feed(ctx, userID, true)
}

// GetAllForPage returns every row regardless of read state, newest first,
// for the full notifications page.
func (s *Store) GetAllForPage(ctx context.Context, userID int64) (models.Feed, error) {
	return s.feed(ctx, userID, false)
}

func (s *Store) feed(ctx context.Context, userID int64, unreadOnly bool) (models.Feed, error) {
	// Empty kinds must serialize as [], not null.
	feed := models.Feed{
		StatusNotifications:  []models.StatusChangeNotification{},
		CommentNotifications: []models.CommentNotification{},
		TrackerNotifications: []models.TrackerNativeNotification{},
	}

	readFilter := ""
	if unreadOnly {
		readFilter = " AND COALESCE(is_read, 0) = 0"
	}

	err := s.db.SelectContext(ctx, &feed.StatusNotifications,
		`SELECT id, user_id, issue_id, old_status, new_status, old_subject, created_at,
		        COALESCE(is_read, 0) AS is_read
		 FROM status_change_notifications
		 WHERE user_id = ?`+readFilter+`
		 ORDER BY created_at DESC`, userID)
	if err != nil {
		return models.Feed{}, fmt.Errorf("loading status notifications: %w", err)
	}

	err = s.db.SelectContext(ctx, &feed.CommentNotifications,
		`SELECT id, user_id, issue_id, author, note_text, created_at, source_id,
		        COALESCE(is_read, 0) AS is_read
		 FROM comment_notifications
		 WHERE user_id = ?`+readFilter+`
		 ORDER BY created_at DESC`, userID)
	if err != nil {
		return models.Feed{}, fmt.Errorf("loading comment notifications: %w", err)
	}

	err = s.db.SelectContext(ctx, &feed.TrackerNotifications,
		`SELECT id, user_id, tracker_issue_id, issue_subject, issue_url, is_group,
		        group_name, created_at, source_notification_id, COALESCE(is_read, 0) AS is_read
		 FROM tracker_notifications
		 WHERE user_id = ?`+readFilter+`
		 ORDER BY created_at DESC`, userID)
	if err != nil {
		return models.Feed{}, fmt.Errorf("loading tracker notifications: %w", err)
	}

	feed.TotalCount = len(feed.StatusNotifications) + len(feed.CommentNotifications) + len(feed.TrackerNotifications)
	return feed, nil
}

// MarkRead flips is_read on a single notification owned by userID.
func (s *Store) MarkRead(ctx context.Context, id int64, kind models.Kind, userID int64) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE `+table+` SET is_read = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("marking notification read: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead flips is_read on every notification of the user, all kinds.
func (s *Store) MarkAllRead(ctx context.Context, userID int64) error {
	for _, table := range allTables {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE `+table+` SET is_read = 1 WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("marking %s read: %w", table, err)
		}
	}
	return nil
}

// ClearAll deletes every local notification of the user, all kinds. Marking
// the tracker's own rows read is the caller's separate best-effort step.
func (s *Store) ClearAll(ctx context.Context, userID int64) error {
	for _, table := range allTables {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return nil
}

// DeleteOne removes a single notification after verifying ownership.
func (s *Store) DeleteOne(ctx context.Context, id int64, kind models.Kind, userID int64) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM `+table+` WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting notification: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// TrackerNativeByID loads one mirror row scoped to its owner.
func (s *Store) TrackerNativeByID(ctx context.Context, id, userID int64) (models.TrackerNativeNotification, error) {
	var n models.TrackerNativeNotification
	err := s.db.GetContext(ctx, &n,
		`SELECT id, user_id, tracker_issue_id, issue_subject, issue_url, is_group,
		        group_name, created_at, source_notification_id, COALESCE(is_read, 0) AS is_read
		 FROM tracker_notifications WHERE id = ? AND user_id = ?`, id, userID)
	if err == sql.ErrNoRows {
		return models.TrackerNativeNotification{}, ErrNotFound
	}
	if err != nil {
		return models.TrackerNativeNotification{}, fmt.Errorf("loading tracker notification: %w", err)
	}
	return n, nil
}

// TrackerNativeSourceIDs lists the tracker-side notification ids mirrored for
// the user, for flipping the remote read flags during a clear.
func (s *Store) TrackerNativeSourceIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := s.db.SelectContext(ctx, &ids,
		`SELECT source_notification_id FROM tracker_notifications WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("loading tracker source ids: %w", err)
	}
	return ids, nil
}

var allTables = []string{
	"status_change_notifications",
	"comment_notifications",
	"tracker_notifications",
}

func tableFor(kind models.Kind) (string, error) {
	switch kind {
	case models.KindStatusChange:
		return "status_change_notifications", nil
	case models.KindComment:
		return "comment_notifications", nil
	case models.KindTrackerNative:
		return "tracker_notifications", nil
	default:
		return "", fmt.Errorf("unknown notification kind %q", kind)
	}
}
