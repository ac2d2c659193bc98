package models

import (
	"database/sql"
	"time"
)

// User is the slice of the portal's user directory this core consumes.
// TrackerUserID links the portal account to the external tracker's own
// user id; it is NULL for accounts that never touched the tracker.
type User struct {
	ID                          int64         `db:"id" json:"id"`
	Email                       string        `db:"email" json:"email"`
	TrackerUserID               sql.NullInt64 `db:"tracker_user_id" json:"tracker_user_id"`
	BrowserNotificationsEnabled bool          `db:"browser_notifications_enabled" json:"browser_notifications_enabled"`
	CreatedAt                   time.Time     `db:"created_at" json:"created_at"`
}
