// Package trackertest provides a file-backed SQLite stand-in for the
// external tracker schema, shaped like the tables the tracker client reads.
package trackertest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"helpdesk-portal-go/internal/models"
	"helpdesk-portal-go/internal/tracker"
)

const schema = `
CREATE TABLE IF NOT EXISTS status_change_log (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    issue_id      INTEGER NOT NULL,
    issue_subject TEXT NOT NULL DEFAULT '',
    old_status    TEXT NOT NULL DEFAULT '',
    new_status    TEXT NOT NULL DEFAULT '',
    author_email  TEXT NOT NULL,
    created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS comment_log (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    issue_id     INTEGER NOT NULL,
    author       TEXT NOT NULL DEFAULT '',
    author_email TEXT NOT NULL,
    notes        TEXT NOT NULL DEFAULT '',
    created_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id       INTEGER NOT NULL,
    issue_id      INTEGER NOT NULL,
    issue_subject TEXT NOT NULL DEFAULT '',
    issue_url     TEXT NOT NULL DEFAULT '',
    is_group      INTEGER NOT NULL DEFAULT 0,
    group_name    TEXT NOT NULL DEFAULT '',
    is_read       INTEGER NOT NULL DEFAULT 0,
    created_at    DATETIME NOT NULL
);
`

// New creates a tracker-shaped database in the test's temp directory and
// returns a Connector opening fresh connections against it, plus a handle
// for seeding and asserting.
func New(t *testing.T) (tracker.Connector, *sqlx.DB) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tracker.db")
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		t.Fatalf("opening tracker test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("applying tracker test schema: %v", err)
	}

	connector := func(ctx context.Context) (*sqlx.DB, error) {
		return sqlx.Open("sqlite", path)
	}
	return connector, db
}

// SeedStatusChange inserts one status change log row and returns its id.
func SeedStatusChange(t *testing.T, db *sqlx.DB, row models.StatusChangeRow) int64 {
	t.Helper()

	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	result, err := db.Exec(
		`INSERT INTO status_change_log (issue_id, issue_subject, old_status, new_status, author_email, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		row.IssueID, row.IssueSubject, row.OldStatus, row.NewStatus, row.AuthorEmail, row.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seeding status change row: %v", err)
	}
	id, _ := result.LastInsertId()
	return id
}

// SeedComment inserts one comment log row and returns its id.
func SeedComment(t *testing.T, db *sqlx.DB, row models.CommentRow) int64 {
	t.Helper()

	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	result, err := db.Exec(
		`INSERT INTO comment_log (issue_id, author, author_email, notes, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		row.IssueID, row.Author, row.AuthorEmail, row.Notes, row.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seeding comment row: %v", err)
	}
	id, _ := result.LastInsertId()
	return id
}

// SeedNative inserts one of the tracker's own notification rows and returns
// its id.
func SeedNative(t *testing.T, db *sqlx.DB, row models.NativeNotificationRow) int64 {
	t.Helper()

	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	result, err := db.Exec(
		`INSERT INTO notifications (user_id, issue_id, issue_subject, issue_url, is_group, group_name, is_read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		row.UserID, row.IssueID, row.IssueSubject, row.IssueURL, row.IsGroup, row.GroupName, row.IsRead, row.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seeding tracker notification: %v", err)
	}
	id, _ := result.LastInsertId()
	return id
}

// CountRows returns the number of rows in a tracker table.
func CountRows(t *testing.T, db *sqlx.DB, table string) int {
	t.Helper()

	var count int
	if err := db.Get(&count, `SELECT COUNT(*) FROM `+table); err != nil {
		t.Fatalf("counting %s rows: %v", table, err)
	}
	return count
}
