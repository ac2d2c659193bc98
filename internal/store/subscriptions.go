package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"helpdesk-portal-go/internal/models"
)

// UpsertSubscription registers (or re-activates) a browser's push
// subscription. An endpoint belongs to exactly one user at a time; a
// re-registration refreshes the keys and flips the row back to active.
func (s *Store) UpsertSubscription(ctx context.Context, sub models.PushSubscription) (models.PushSubscription, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO push_subscriptions
		 (user_id, endpoint, p256dh_key, auth_key, user_agent, created_at, last_used, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 1)
		 ON CONFLICT (user_id, endpoint) DO UPDATE SET
		  p256dh_key = excluded.p256dh_key,
		  auth_key = excluded.auth_key,
		  user_agent = excluded.user_agent,
		  is_active = 1`,
		sub.UserID, sub.Endpoint, sub.P256dh, sub.Auth, sub.UserAgent, now, now,
	)
	if err != nil {
		return models.PushSubscription{}, fmt.Errorf("saving push subscription: %w", err)
	}

	var saved models.PushSubscription
	err = s.db.GetContext(ctx, &saved,
		`SELECT id, user_id, endpoint, p256dh_key, auth_key, user_agent, created_at, last_used, is_active
		 FROM push_subscriptions WHERE user_id = ? AND endpoint = ?`,
		sub.UserID, sub.Endpoint,
	)
	if err != nil {
		return models.PushSubscription{}, fmt.Errorf("reloading push subscription: %w", err)
	}
	return saved, nil
}

// ActiveSubscriptions returns the user's active subscriptions only.
// Deactivated rows are never candidates for delivery.
func (s *Store) ActiveSubscriptions(ctx context.Context, userID int64) ([]models.PushSubscription, error) {
	var subs []models.PushSubscription
	err := s.db.SelectContext(ctx, &subs,
		`SELECT id, user_id, endpoint, p256dh_key, auth_key, user_agent, created_at, last_used, is_active
		 FROM push_subscriptions
		 WHERE user_id = ? AND is_active = 1
		 ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("loading active subscriptions: %w", err)
	}
	return subs, nil
}

// DeactivateSubscription retires a subscription whose endpoint the push
// provider reported as gone. The row is kept for history.
func (s *Store) DeactivateSubscription(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE push_subscriptions SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deactivating subscription: %w", err)
	}
	return nil
}

// DeactivateUserEndpoint retires a subscription by its endpoint, scoped to
// the owning user. Used when the browser unsubscribes itself.
func (s *Store) DeactivateUserEndpoint(ctx context.Context, userID int64, endpoint string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE push_subscriptions SET is_active = 0 WHERE user_id = ? AND endpoint = ?`,
		userID, endpoint)
	if err != nil {
		return fmt.Errorf("deactivating subscription: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateSubscriptionEndpoint persists a rewritten endpoint after a delivery
// succeeded against the current gateway URL.
func (s *Store) UpdateSubscriptionEndpoint(ctx context.Context, id int64, endpoint string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE push_subscriptions SET endpoint = ? WHERE id = ?`, endpoint, id)
	if err != nil {
		return fmt.Errorf("updating subscription endpoint: %w", err)
	}
	return nil
}

// TouchSubscription records a successful delivery on the subscription.
func (s *Store) TouchSubscription(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE push_subscriptions SET last_used = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("touching subscription: %w", err)
	}
	return nil
}

// SubscriptionByID loads a single subscription row, active or not.
func (s *Store) SubscriptionByID(ctx context.Context, id int64) (models.PushSubscription, error) {
	var sub models.PushSubscription
	err := s.db.GetContext(ctx, &sub,
		`SELECT id, user_id, endpoint, p256dh_key, auth_key, user_agent, created_at, last_used, is_active
		 FROM push_subscriptions WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return models.PushSubscription{}, ErrNotFound
	}
	if err != nil {
		return models.PushSubscription{}, fmt.Errorf("loading subscription: %w", err)
	}
	return sub, nil
}
