package models

import "time"

// StatusChangeRow is one unconsumed row of the tracker's status change log.
type StatusChangeRow struct {
	ID           int64     `db:"id"`
	IssueID      int64     `db:"issue_id"`
	IssueSubject string    `db:"issue_subject"`
	OldStatus    string    `db:"old_status"`
	NewStatus    string    `db:"new_status"`
	AuthorEmail  string    `db:"author_email"`
	CreatedAt    time.Time `db:"created_at"`
}

// CommentRow is one unconsumed row of the tracker's comment log.
type CommentRow struct {
	ID          int64     `db:"id"`
	IssueID     int64     `db:"issue_id"`
	Author      string    `db:"author"`
	AuthorEmail string    `db:"author_email"`
	Notes       string    `db:"notes"`
	CreatedAt   time.Time `db:"created_at"`
}

// NativeNotificationRow is a row of the tracker's own notification table,
// keyed by the tracker-side user id. The tracker stays authoritative for
// its is_read flag.
type NativeNotificationRow struct {
	ID           int64     `db:"id"`
	UserID       int64     `db:"user_id"`
	IssueID      int64     `db:"issue_id"`
	IssueSubject string    `db:"issue_subject"`
	IssueURL     string    `db:"issue_url"`
	IsGroup      bool      `db:"is_group"`
	GroupName    string    `db:"group_name"`
	IsRead       bool      `db:"is_read"`
	CreatedAt    time.Time `db:"created_at"`
}
