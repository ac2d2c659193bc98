package store

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"helpdesk-portal-go/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// NotificationStore is the per-user CRUD surface over the three
// notification kinds, consumed by the poller and the read layer.
type NotificationStore interface {
	SaveStatusChange(ctx context.Context, n models.StatusChangeNotification) (bool, error)
	SaveComment(ctx context.Context, n models.CommentNotification) (bool, error)
	UpsertTrackerNative(ctx context.Context, n models.TrackerNativeNotification) error
	GetUnreadForWidget(ctx context.Context, userID int64) (models.Feed, error)
	GetAllForPage(ctx context.Context, userID int64) (models.Feed, error)
	MarkRead(ctx context.Context, id int64, kind models.Kind, userID int64) error
	MarkAllRead(ctx context.Context, userID int64) error
	ClearAll(ctx context.Context, userID int64) error
	DeleteOne(ctx context.Context, id int64, kind models.Kind, userID int64) error
	TrackerNativeByID(ctx context.Context, id, userID int64) (models.TrackerNativeNotification, error)
	TrackerNativeSourceIDs(ctx context.Context, userID int64) ([]int64, error)
}

// SubscriptionStore maintains the per-user push subscription set.
type SubscriptionStore interface {
	UpsertSubscription(ctx context.Context, sub models.PushSubscription) (models.PushSubscription, error)
	ActiveSubscriptions(ctx context.Context, userID int64) ([]models.PushSubscription, error)
	DeactivateSubscription(ctx context.Context, id int64) error
	DeactivateUserEndpoint(ctx context.Context, userID int64, endpoint string) error
	UpdateSubscriptionEndpoint(ctx context.Context, id int64, endpoint string) error
	TouchSubscription(ctx context.Context, id int64) error
}

// UserDirectory is the read-mostly slice of the portal user table this
// core needs.
type UserDirectory interface {
	GetUser(ctx context.Context, id int64) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	UsersByIDs(ctx context.Context, ids []int64) ([]models.User, error)
}

// Store is the local embedded database shared with the rest of the portal.
type Store struct {
	db *sqlx.DB
}

// New opens (or creates) the SQLite database at dbPath, enables WAL mode,
// and applies the schema.
func New(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database exists per connection; keep the pool at one so
	// every statement sees the same schema.
	if strings.Contains(dbPath, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.RunMigrations(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// RunMigrations creates tables if they don't exist and applies schema updates.
func (s *Store) RunMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
