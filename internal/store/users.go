package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"helpdesk-portal-go/internal/models"
)

// User methods. The users table itself belongs to the portal's account
// management; this core reads it and only writes the notification
// preference flag.

func (s *Store) CreateUser(ctx context.Context, email string, trackerUserID sql.NullInt64, browserEnabled bool) (models.User, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO users (email, tracker_user_id, browser_notifications_enabled)
		 VALUES (?, ?, ?)`,
		email, trackerUserID, browserEnabled,
	)
	if err != nil {
		return models.User{}, fmt.Errorf("creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return models.User{}, err
	}
	return s.GetUser(ctx, id)
}

func (s *Store) GetUser(ctx context.Context, id int64) (models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user,
		`SELECT id, email, tracker_user_id, browser_notifications_enabled, created_at
		 FROM users WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return models.User{}, errors.New("user not found")
	}
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user,
		`SELECT id, email, tracker_user_id, browser_notifications_enabled, created_at
		 FROM users WHERE LOWER(email) = LOWER(?)`, email)
	if err == sql.ErrNoRows {
		return models.User{}, errors.New("user not found")
	}
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

// UsersByIDs loads users in one query; unknown ids are silently skipped.
func (s *Store) UsersByIDs(ctx context.Context, ids []int64) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	var users []models.User
	err := s.db.SelectContext(ctx, &users,
		`SELECT id, email, tracker_user_id, browser_notifications_enabled, created_at
		 FROM users WHERE id IN (`+placeholders+`) ORDER BY id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("loading users: %w", err)
	}
	return users, nil
}

// UpdateBrowserNotifications flips the user's push opt-in preference.
func (s *Store) UpdateBrowserNotifications(ctx context.Context, userID int64, enabled bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET browser_notifications_enabled = ? WHERE id = ?`, enabled, userID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return errors.New("user not found")
	}
	return nil
}
