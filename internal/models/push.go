package models

import "time"

// PushSubscription is one browser/device registration for push delivery.
// Unique on (user_id, endpoint). Dead endpoints are deactivated, never
// hard-deleted, so the history survives for audit.
type PushSubscription struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Endpoint  string    `db:"endpoint" json:"endpoint"`
	P256dh    string    `db:"p256dh_key" json:"keys_p256dh"` // Mapped from keys.p256dh
	Auth      string    `db:"auth_key" json:"keys_auth"`     // Mapped from keys.auth
	UserAgent string    `db:"user_agent" json:"user_agent"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	LastUsed  time.Time `db:"last_used" json:"last_used"`
	IsActive  bool      `db:"is_active" json:"is_active"`
}

// PushMessage is the payload handed to the delivery engine after a
// notification has been persisted.
type PushMessage struct {
	UserID  int64
	IssueID int64
	Kind    Kind
	Title   string
	Message string
	URL     string
}

// Delivery report statuses.
const (
	DeliveryAllSucceeded    = "all_succeeded"
	DeliveryPartialFailure  = "partial_failure"
	DeliveryAllFailed       = "all_failed"
	DeliveryNoSubscriptions = "no_subscriptions"
	DeliveryConfigError     = "config_error"
)

// DeliveryResult is the outcome for a single subscription.
type DeliveryResult struct {
	SubscriptionID int64  `json:"subscription_id"`
	Endpoint       string `json:"endpoint"`
	Success        bool   `json:"success"`
	StatusCode     int    `json:"status_code,omitempty"`
	Deactivated    bool   `json:"deactivated"`
	Error          string `json:"error,omitempty"`
}

// DeliveryReport aggregates per-subscription outcomes for one send. It is
// informational: a failed push never un-delivers the stored notification.
type DeliveryReport struct {
	Status  string           `json:"status"`
	Results []DeliveryResult `json:"results"`
}

// Sent reports how many subscriptions accepted the push.
func (r DeliveryReport) Sent() int {
	n := 0
	for _, res := range r.Results {
		if res.Success {
			n++
		}
	}
	return n
}
