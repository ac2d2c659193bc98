// Package push delivers notifications to a user's registered browser
// endpoints and keeps the subscription set healthy: dead endpoints are
// deactivated, legacy gateway URLs are rewritten in place.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"helpdesk-portal-go/internal/metrics"
	"helpdesk-portal-go/internal/models"
	"helpdesk-portal-go/internal/store"
)

const (
	defaultTTL     = 3600
	defaultTimeout = 10 * time.Second

	// The retired GCM gateway still shows up in old subscription rows; the
	// current FCM gateway accepts the same token under a different path.
	legacyGatewayPrefix  = "https://android.googleapis.com/gcm/send/"
	currentGatewayPrefix = "https://fcm.googleapis.com/fcm/send/"
)

// Config carries the server's VAPID signing credentials. Empty keys are a
// soft configuration error, not a startup failure: the engine reports
// config_error instead of contacting any endpoint.
type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
	IconURL         string
	TTL             int
	Timeout         time.Duration
}

// sendFunc matches webpush.SendNotificationWithContext, injectable in tests.
type sendFunc func(ctx context.Context, message []byte, s *webpush.Subscription, options *webpush.Options) (*http.Response, error)

// Engine fans one notification out to every active subscription of its
// target user.
type Engine struct {
	subs store.SubscriptionStore
	cfg  Config
	send sendFunc
}

// NewEngine creates a delivery engine over the given subscription store.
func NewEngine(subs store.SubscriptionStore, cfg Config) *Engine {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Engine{
		subs: subs,
		cfg:  cfg,
		send: webpush.SendNotificationWithContext,
	}
}

// Configured reports whether the signing keypair is present.
func (e *Engine) Configured() bool {
	return e.cfg.VAPIDPublicKey != "" && e.cfg.VAPIDPrivateKey != ""
}

// PublicKey returns the VAPID public key handed to subscribing browsers.
func (e *Engine) PublicKey() string {
	return e.cfg.VAPIDPublicKey
}

// payload is the JSON body pushed to the browser.
type payload struct {
	Title   string      `json:"title"`
	Message string      `json:"message"`
	Icon    string      `json:"icon,omitempty"`
	Data    payloadData `json:"data"`
}

type payloadData struct {
	IssueID   int64       `json:"issue_id"`
	Kind      models.Kind `json:"kind"`
	URL       string      `json:"url"`
	Timestamp string      `json:"timestamp"`
}

// Send delivers msg to every active subscription of its user, sequentially.
// Failures never abort delivery to the remaining subscriptions, and the
// report never rolls back the already-persisted notification.
func (e *Engine) Send(ctx context.Context, msg models.PushMessage) models.DeliveryReport {
	if !e.Configured() {
		return models.DeliveryReport{Status: models.DeliveryConfigError}
	}

	subs, err := e.subs.ActiveSubscriptions(ctx, msg.UserID)
	if err != nil {
		log.Printf("Failed to load subscriptions for user %d: %v", msg.UserID, err)
		return models.DeliveryReport{Status: models.DeliveryAllFailed}
	}
	if len(subs) == 0 {
		return models.DeliveryReport{Status: models.DeliveryNoSubscriptions}
	}

	body, err := json.Marshal(payload{
		Title:   msg.Title,
		Message: msg.Message,
		Icon:    e.cfg.IconURL,
		Data: payloadData{
			IssueID:   msg.IssueID,
			Kind:      msg.Kind,
			URL:       msg.URL,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		log.Printf("Failed to marshal push payload: %v", err)
		return models.DeliveryReport{Status: models.DeliveryAllFailed}
	}

	report := models.DeliveryReport{}
	for _, sub := range subs {
		report.Results = append(report.Results, e.sendOne(ctx, sub, body))
	}
	report.Status = aggregate(report.Results)
	return report
}

func (e *Engine) sendOne(ctx context.Context, sub models.PushSubscription, body []byte) models.DeliveryResult {
	endpoint := NormalizeEndpoint(sub.Endpoint)
	result := models.DeliveryResult{SubscriptionID: sub.ID, Endpoint: endpoint}

	s := &webpush.Subscription{
		Endpoint: endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}

	sendCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	resp, err := e.send(sendCtx, body, s, &webpush.Options{
		Subscriber:      e.cfg.Subscriber,
		VAPIDPublicKey:  e.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: e.cfg.VAPIDPrivateKey,
		TTL:             e.cfg.TTL,
	})
	if err != nil {
		// Transport-level failure: retryable, subscription stays active.
		log.Printf("Failed to send push to subscription %d: %v", sub.ID, err)
		metrics.PushesFailed.Inc()
		result.Error = err.Error()
		return result
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		result.Success = true
		metrics.PushesSent.Inc()
		if err := e.subs.TouchSubscription(ctx, sub.ID); err != nil {
			log.Printf("Failed to update last_used on subscription %d: %v", sub.ID, err)
		}
		if endpoint != sub.Endpoint {
			if err := e.subs.UpdateSubscriptionEndpoint(ctx, sub.ID, endpoint); err != nil {
				log.Printf("Failed to persist rewritten endpoint on subscription %d: %v", sub.ID, err)
			}
		}
	case resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusNotFound,
		resp.StatusCode == http.StatusGone:
		// The endpoint is permanently gone or belongs to another keypair.
		log.Printf("Deactivating subscription %d (endpoint returned %d)", sub.ID, resp.StatusCode)
		metrics.PushesFailed.Inc()
		result.Error = fmt.Sprintf("push endpoint returned %d", resp.StatusCode)
		if err := e.subs.DeactivateSubscription(ctx, sub.ID); err != nil {
			log.Printf("Failed to deactivate subscription %d: %v", sub.ID, err)
		} else {
			result.Deactivated = true
			metrics.SubscriptionsDeactivated.Inc()
		}
	default:
		// 5xx and everything else: retryable next cycle.
		metrics.PushesFailed.Inc()
		result.Error = fmt.Sprintf("push endpoint returned %d", resp.StatusCode)
	}
	return result
}

// NormalizeEndpoint ensures a scheme prefix and migrates legacy GCM gateway
// URLs to the current FCM gateway, preserving the registration token.
func NormalizeEndpoint(endpoint string) string {
	if endpoint == "" {
		return endpoint
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	if token, ok := strings.CutPrefix(endpoint, legacyGatewayPrefix); ok {
		return currentGatewayPrefix + token
	}
	return endpoint
}

func aggregate(results []models.DeliveryResult) string {
	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	switch {
	case len(results) == 0:
		return models.DeliveryNoSubscriptions
	case succeeded == len(results):
		return models.DeliveryAllSucceeded
	case succeeded == 0:
		return models.DeliveryAllFailed
	default:
		return models.DeliveryPartialFailure
	}
}
