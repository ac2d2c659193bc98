package push

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/SherClockHolmes/webpush-go"

	"helpdesk-portal-go/internal/models"
	"helpdesk-portal-go/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "portal.db"))
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()

	s := newTestStore(t)
	e := NewEngine(s, Config{
		VAPIDPublicKey:  "test-public-key",
		VAPIDPrivateKey: "test-private-key",
		Subscriber:      "mailto:helpdesk@example.com",
	})
	return e, s
}

// stubResponse builds a closed-over sender returning the given status and
// recording every endpoint it was asked to contact.
func stubSender(status int, calls *[]string) sendFunc {
	return func(_ context.Context, _ []byte, s *webpush.Subscription, _ *webpush.Options) (*http.Response, error) {
		*calls = append(*calls, s.Endpoint)
		return &http.Response{
			StatusCode: status,
			Body:       io.NopCloser(strings.NewReader("")),
		}, nil
	}
}

func subscribe(t *testing.T, s *store.Store, userID int64, endpoint string) models.PushSubscription {
	t.Helper()

	sub, err := s.UpsertSubscription(context.Background(), models.PushSubscription{
		UserID:   userID,
		Endpoint: endpoint,
		P256dh:   "p256dh-key",
		Auth:     "auth-key",
	})
	if err != nil {
		t.Fatalf("registering test subscription: %v", err)
	}
	return sub
}

func testMessage(userID int64) models.PushMessage {
	return models.PushMessage{
		UserID:  userID,
		IssueID: 500,
		Kind:    models.KindStatusChange,
		Title:   "Issue #500 status changed",
		Message: "Issue #500 moved from \"New\" to \"In Progress\"",
		URL:     "http://localhost:8080/issues/500",
	}
}

func TestSendNoSubscriptions(t *testing.T) {
	e, _ := newTestEngine(t)

	var calls []string
	e.send = stubSender(201, &calls)

	report := e.Send(context.Background(), testMessage(7))
	if report.Status != models.DeliveryNoSubscriptions {
		t.Fatalf("status = %q, want %q", report.Status, models.DeliveryNoSubscriptions)
	}
	if len(calls) != 0 {
		t.Fatalf("made %d outbound calls, want 0", len(calls))
	}
}

func TestSendWithoutCredentialsIsConfigError(t *testing.T) {
	s := newTestStore(t)
	e := NewEngine(s, Config{})
	subscribe(t, s, 7, "https://push.example.com/send/abc")

	var calls []string
	e.send = stubSender(201, &calls)

	report := e.Send(context.Background(), testMessage(7))
	if report.Status != models.DeliveryConfigError {
		t.Fatalf("status = %q, want %q", report.Status, models.DeliveryConfigError)
	}
	if len(calls) != 0 {
		t.Fatalf("made %d outbound calls without credentials, want 0", len(calls))
	}
}

func TestSendSuccessTouchesSubscription(t *testing.T) {
	e, s := newTestEngine(t)
	sub := subscribe(t, s, 7, "https://push.example.com/send/abc")

	var calls []string
	e.send = stubSender(201, &calls)

	report := e.Send(context.Background(), testMessage(7))
	if report.Status != models.DeliveryAllSucceeded {
		t.Fatalf("status = %q, want %q", report.Status, models.DeliveryAllSucceeded)
	}
	if report.Sent() != 1 {
		t.Fatalf("Sent() = %d, want 1", report.Sent())
	}

	got, _ := s.SubscriptionByID(context.Background(), sub.ID)
	if !got.LastUsed.After(sub.LastUsed) && !got.LastUsed.Equal(sub.LastUsed) {
		t.Fatal("last_used not updated after successful delivery")
	}
}

func TestPermanentErrorsDeactivate(t *testing.T) {
	for _, status := range []int{403, 404, 410} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			e, s := newTestEngine(t)
			sub := subscribe(t, s, 7, "https://push.example.com/send/abc")

			var calls []string
			e.send = stubSender(status, &calls)

			report := e.Send(context.Background(), testMessage(7))
			if report.Status != models.DeliveryAllFailed {
				t.Fatalf("status = %q, want %q", report.Status, models.DeliveryAllFailed)
			}
			if !report.Results[0].Deactivated {
				t.Fatal("result not flagged deactivated")
			}

			got, _ := s.SubscriptionByID(context.Background(), sub.ID)
			if got.IsActive {
				t.Fatalf("subscription still active after %d", status)
			}

			// A deactivated subscription is excluded from the next send.
			calls = calls[:0]
			report = e.Send(context.Background(), testMessage(7))
			if report.Status != models.DeliveryNoSubscriptions {
				t.Fatalf("second send status = %q, want %q", report.Status, models.DeliveryNoSubscriptions)
			}
			if len(calls) != 0 {
				t.Fatalf("second send made %d calls to a dead subscription, want 0", len(calls))
			}
		})
	}
}

func TestRetryableErrorKeepsSubscriptionActive(t *testing.T) {
	e, s := newTestEngine(t)
	sub := subscribe(t, s, 7, "https://push.example.com/send/abc")

	var calls []string
	e.send = stubSender(503, &calls)

	report := e.Send(context.Background(), testMessage(7))
	if report.Status != models.DeliveryAllFailed {
		t.Fatalf("status = %q, want %q", report.Status, models.DeliveryAllFailed)
	}
	if report.Results[0].Deactivated {
		t.Fatal("retryable failure deactivated the subscription")
	}

	got, _ := s.SubscriptionByID(context.Background(), sub.ID)
	if !got.IsActive {
		t.Fatal("subscription deactivated after a 503")
	}
}

func TestTransportErrorKeepsSubscriptionActive(t *testing.T) {
	e, s := newTestEngine(t)
	sub := subscribe(t, s, 7, "https://push.example.com/send/abc")

	e.send = func(_ context.Context, _ []byte, _ *webpush.Subscription, _ *webpush.Options) (*http.Response, error) {
		return nil, context.DeadlineExceeded
	}

	report := e.Send(context.Background(), testMessage(7))
	if report.Status != models.DeliveryAllFailed {
		t.Fatalf("status = %q, want %q", report.Status, models.DeliveryAllFailed)
	}

	got, _ := s.SubscriptionByID(context.Background(), sub.ID)
	if !got.IsActive {
		t.Fatal("subscription deactivated after a transport timeout")
	}
}

func TestLegacyEndpointRewritePersistedOnSuccess(t *testing.T) {
	e, s := newTestEngine(t)
	sub := subscribe(t, s, 7, "https://android.googleapis.com/gcm/send/token123")

	var calls []string
	e.send = stubSender(201, &calls)

	e.Send(context.Background(), testMessage(7))

	want := "https://fcm.googleapis.com/fcm/send/token123"
	if len(calls) != 1 || calls[0] != want {
		t.Fatalf("delivery went to %v, want [%s]", calls, want)
	}

	got, _ := s.SubscriptionByID(context.Background(), sub.ID)
	if got.Endpoint != want {
		t.Fatalf("stored endpoint = %q, want rewritten %q", got.Endpoint, want)
	}

	// A second send against the already-current endpoint is a no-op rewrite.
	calls = calls[:0]
	e.Send(context.Background(), testMessage(7))
	if len(calls) != 1 || calls[0] != want {
		t.Fatalf("second delivery went to %v, want [%s]", calls, want)
	}
	got, _ = s.SubscriptionByID(context.Background(), sub.ID)
	if got.Endpoint != want {
		t.Fatalf("endpoint changed on re-send: %q", got.Endpoint)
	}
}

func TestLegacyEndpointNotPersistedOnFailure(t *testing.T) {
	e, s := newTestEngine(t)
	sub := subscribe(t, s, 7, "https://android.googleapis.com/gcm/send/token123")

	var calls []string
	e.send = stubSender(503, &calls)

	e.Send(context.Background(), testMessage(7))

	got, _ := s.SubscriptionByID(context.Background(), sub.ID)
	if got.Endpoint != sub.Endpoint {
		t.Fatalf("endpoint rewritten despite failed delivery: %q", got.Endpoint)
	}
}

func TestPartialFailure(t *testing.T) {
	e, s := newTestEngine(t)
	subscribe(t, s, 7, "https://push.example.com/send/good")
	subscribe(t, s, 7, "https://push.example.com/send/bad")

	e.send = func(_ context.Context, _ []byte, sub *webpush.Subscription, _ *webpush.Options) (*http.Response, error) {
		status := 201
		if strings.HasSuffix(sub.Endpoint, "/bad") {
			status = 500
		}
		return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(""))}, nil
	}

	report := e.Send(context.Background(), testMessage(7))
	if report.Status != models.DeliveryPartialFailure {
		t.Fatalf("status = %q, want %q", report.Status, models.DeliveryPartialFailure)
	}
	if report.Sent() != 1 {
		t.Fatalf("Sent() = %d, want 1", report.Sent())
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"push.example.com/send/abc", "https://push.example.com/send/abc"},
		{"https://push.example.com/send/abc", "https://push.example.com/send/abc"},
		{"https://android.googleapis.com/gcm/send/tok", "https://fcm.googleapis.com/fcm/send/tok"},
		{"android.googleapis.com/gcm/send/tok", "https://fcm.googleapis.com/fcm/send/tok"},
		{"https://fcm.googleapis.com/fcm/send/tok", "https://fcm.googleapis.com/fcm/send/tok"},
	}
	for _, tt := range tests {
		if got := NormalizeEndpoint(tt.in); got != tt.want {
			t.Errorf("NormalizeEndpoint(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
