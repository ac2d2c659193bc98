// Package notify is the notification core's facade: it polls the external
// tracker's change log, deduplicates and persists events, fans them out to
// the user's push subscriptions, and serves the read/clear operations the
// web layer calls.
package notify

import (
	"context"
	"log"
	"time"

	"helpdesk-portal-go/internal/dedup"
	"helpdesk-portal-go/internal/models"
	"helpdesk-portal-go/internal/store"
	"helpdesk-portal-go/internal/tracker"
)

// trackerTimeout bounds every conversation with the tracker database.
const trackerTimeout = 10 * time.Second

// Store is the slice of the local database the service needs.
type Store interface {
	store.NotificationStore
	store.UserDirectory
}

// Pusher delivers one persisted notification to a user's devices.
type Pusher interface {
	Send(ctx context.Context, msg models.PushMessage) models.DeliveryReport
}

// Service wires poller, deduplicator, store and push engine together. One
// instance is constructed at startup and passed by handle to the scheduler
// and the request handlers.
type Service struct {
	store   Store
	connect tracker.Connector
	dedup   *dedup.Deduplicator
	pusher  Pusher
	baseURL string
}

// NewService builds the notification service facade.
func NewService(s Store, connect tracker.Connector, d *dedup.Deduplicator, p Pusher, baseURL string) *Service {
	return &Service{
		store:   s,
		connect: connect,
		dedup:   d,
		pusher:  p,
		baseURL: baseURL,
	}
}

// GetUserNotifications returns the user's unread notifications for the
// widget, refreshing the native-tracker mirror first so the badge reflects
// the freshest tracker state.
func (s *Service) GetUserNotifications(ctx context.Context, userID int64) (models.Feed, error) {
	if user, err := s.store.GetUser(ctx, userID); err == nil {
		s.syncNativeNotifications(ctx, user)
	} else {
		log.Printf("Widget read for unknown user %d: %v", userID, err)
	}
	return s.store.GetUnreadForWidget(ctx, userID)
}

// GetNotificationsForPage returns every notification of the user, read or
// not, for the full notifications page.
func (s *Service) GetNotificationsForPage(ctx context.Context, userID int64) (models.Feed, error) {
	return s.store.GetAllForPage(ctx, userID)
}

// MarkNotificationRead flips the local read flag; for tracker-native rows it
// additionally flips the tracker's authoritative flag, best effort.
func (s *Service) MarkNotificationRead(ctx context.Context, id int64, kind models.Kind, userID int64) error {
	if kind == models.KindTrackerNative {
		return s.MarkTrackerNotificationRead(ctx, userID, id)
	}
	return s.store.MarkRead(ctx, id, kind, userID)
}

// MarkTrackerNotificationRead marks one mirrored tracker notification read
// locally and in the tracker's own table.
func (s *Service) MarkTrackerNotificationRead(ctx context.Context, userID, id int64) error {
	n, err := s.store.TrackerNativeByID(ctx, id, userID)
	if err != nil {
		return err
	}
	if err := s.store.MarkRead(ctx, id, models.KindTrackerNative, userID); err != nil {
		return err
	}

	s.withTrackerUser(ctx, userID, func(ctx context.Context, c *tracker.Client, trackerUserID int64) {
		if err := c.MarkNativeRead(ctx, trackerUserID, n.SourceNotificationID); err != nil {
			log.Printf("Failed to mark tracker notification %d read for user %d: %v",
				n.SourceNotificationID, userID, err)
		}
	})
	return nil
}

// MarkAllNotificationsRead marks everything read locally, then flips the
// tracker's own flags as an independent best-effort step.
func (s *Service) MarkAllNotificationsRead(ctx context.Context, userID int64) error {
	if err := s.store.MarkAllRead(ctx, userID); err != nil {
		return err
	}

	s.withTrackerUser(ctx, userID, func(ctx context.Context, c *tracker.Client, trackerUserID int64) {
		if err := c.MarkAllNativeRead(ctx, trackerUserID); err != nil {
			log.Printf("Failed to mark tracker notifications read for user %d: %v", userID, err)
		}
	})
	return nil
}

// ClearUserNotifications deletes all local rows, mirror included, and marks
// the corresponding tracker rows read. Local deletion and remote mark-read
// are independent best-effort steps: either can succeed without the other,
// and the next widget read re-syncs whatever the tracker still holds.
func (s *Service) ClearUserNotifications(ctx context.Context, userID int64) error {
	sourceIDs, err := s.store.TrackerNativeSourceIDs(ctx, userID)
	if err != nil {
		log.Printf("Failed to list mirrored tracker notifications for user %d: %v", userID, err)
	}

	if err := s.store.ClearAll(ctx, userID); err != nil {
		return err
	}

	s.withTrackerUser(ctx, userID, func(ctx context.Context, c *tracker.Client, trackerUserID int64) {
		if err := c.MarkNativeReadMany(ctx, trackerUserID, sourceIDs); err != nil {
			log.Printf("Failed to mark tracker notifications read for user %d: %v", userID, err)
		}
	})
	return nil
}

// ClearNotificationsForWidget empties the widget without losing page-level
// history: every local row is marked read (the mirror rows survive) and the
// tracker's own rows are flipped read.
func (s *Service) ClearNotificationsForWidget(ctx context.Context, userID int64) error {
	if err := s.store.MarkAllRead(ctx, userID); err != nil {
		return err
	}

	s.withTrackerUser(ctx, userID, func(ctx context.Context, c *tracker.Client, trackerUserID int64) {
		if err := c.MarkAllNativeRead(ctx, trackerUserID); err != nil {
			log.Printf("Failed to mark tracker notifications read for user %d: %v", userID, err)
		}
	})
	return nil
}

// DeleteTrackerNotification removes one mirror row owned by the user and
// marks the tracker's own row read so it does not re-sync as unread.
func (s *Service) DeleteTrackerNotification(ctx context.Context, id, userID int64) error {
	n, err := s.store.TrackerNativeByID(ctx, id, userID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteOne(ctx, id, models.KindTrackerNative, userID); err != nil {
		return err
	}

	s.withTrackerUser(ctx, userID, func(ctx context.Context, c *tracker.Client, trackerUserID int64) {
		if err := c.MarkNativeRead(ctx, trackerUserID, n.SourceNotificationID); err != nil {
			log.Printf("Failed to mark tracker notification %d read for user %d: %v",
				n.SourceNotificationID, userID, err)
		}
	})
	return nil
}

// DeleteNotification removes a single status or comment notification.
func (s *Service) DeleteNotification(ctx context.Context, id int64, kind models.Kind, userID int64) error {
	if kind == models.KindTrackerNative {
		return s.DeleteTrackerNotification(ctx, id, userID)
	}
	return s.store.DeleteOne(ctx, id, kind, userID)
}

// syncNativeNotifications pulls the tracker's own notification rows into the
// local mirror. Best effort: a tracker outage degrades the widget to local
// data instead of failing the read.
func (s *Service) syncNativeNotifications(ctx context.Context, user models.User) {
	if !user.TrackerUserID.Valid {
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, trackerTimeout)
	defer cancel()

	db, err := s.connect(opCtx)
	if err != nil {
		log.Printf("Tracker unreachable during native sync for user %d: %v", user.ID, err)
		return
	}
	client := tracker.NewClient(db)
	defer client.Close()

	rows, err := client.NativeNotifications(opCtx, user.TrackerUserID.Int64)
	if err != nil {
		log.Printf("Failed to read tracker notifications for user %d: %v", user.ID, err)
		return
	}

	for _, row := range rows {
		n := models.TrackerNativeNotification{
			UserID:               user.ID,
			TrackerIssueID:       row.IssueID,
			IssueSubject:         row.IssueSubject,
			IssueURL:             row.IssueURL,
			IsGroupNotification:  row.IsGroup,
			GroupName:            row.GroupName,
			CreatedAt:            row.CreatedAt,
			SourceNotificationID: row.ID,
			IsRead:               row.IsRead,
		}
		if err := s.store.UpsertTrackerNative(ctx, n); err != nil {
			log.Printf("Failed to mirror tracker notification %d for user %d: %v", row.ID, user.ID, err)
		}
	}
}

// withTrackerUser runs fn against a fresh tracker connection when the user
// is linked to a tracker account. Connection failures are logged and
// swallowed; the local operation has already happened.
func (s *Service) withTrackerUser(ctx context.Context, userID int64, fn func(ctx context.Context, c *tracker.Client, trackerUserID int64)) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil || !user.TrackerUserID.Valid {
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, trackerTimeout)
	defer cancel()

	db, err := s.connect(opCtx)
	if err != nil {
		log.Printf("Tracker unreachable for user %d: %v", userID, err)
		return
	}
	client := tracker.NewClient(db)
	defer client.Close()

	fn(opCtx, client, user.TrackerUserID.Int64)
}
