package models

import "time"

// Kind discriminates the three notification record types.
type Kind string

const (
	KindStatusChange  Kind = "status_change"
	KindComment       Kind = "comment"
	KindTrackerNative Kind = "tracker_native"
)

// StatusChangeNotification is one ticket status transition visible to one user.
type StatusChangeNotification struct {
	ID         int64     `db:"id" json:"id"`
	UserID     int64     `db:"user_id" json:"user_id"`
	IssueID    int64     `db:"issue_id" json:"issue_id"`
	OldStatus  string    `db:"old_status" json:"old_status"`
	NewStatus  string    `db:"new_status" json:"new_status"`
	OldSubject string    `db:"old_subject" json:"old_subject"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	IsRead     bool      `db:"is_read" json:"is_read"`
}

// CommentNotification is one new comment on a ticket. SourceID back-references
// the originating tracker row so re-polling stays idempotent.
type CommentNotification struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	IssueID   int64     `db:"issue_id" json:"issue_id"`
	Author    string    `db:"author" json:"author"`
	NoteText  string    `db:"note_text" json:"note_text"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	SourceID  int64     `db:"source_id" json:"source_id"`
	IsRead    bool      `db:"is_read" json:"is_read"`
}

// TrackerNativeNotification mirrors a notification that lives natively in the
// external tracker's own notification table. The tracker's is_read flag stays
// authoritative; the mirror exists for fast widget reads.
type TrackerNativeNotification struct {
	ID                   int64     `db:"id" json:"id"`
	UserID               int64     `db:"user_id" json:"user_id"`
	TrackerIssueID       int64     `db:"tracker_issue_id" json:"tracker_issue_id"`
	IssueSubject         string    `db:"issue_subject" json:"issue_subject"`
	IssueURL             string    `db:"issue_url" json:"issue_url"`
	IsGroupNotification  bool      `db:"is_group" json:"is_group_notification"`
	GroupName            string    `db:"group_name" json:"group_name"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	SourceNotificationID int64     `db:"source_notification_id" json:"source_notification_id"`
	IsRead               bool      `db:"is_read" json:"is_read"`
}

// Feed is the shape returned to the widget poll endpoint and the full
// notifications page.
type Feed struct {
	StatusNotifications  []StatusChangeNotification  `json:"status_notifications"`
	CommentNotifications []CommentNotification       `json:"comment_notifications"`
	TrackerNotifications []TrackerNativeNotification `json:"tracker_native_notifications"`
	TotalCount           int                         `json:"total_count"`
}
