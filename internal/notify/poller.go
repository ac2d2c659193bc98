package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"helpdesk-portal-go/internal/dedup"
	"helpdesk-portal-go/internal/metrics"
	"helpdesk-portal-go/internal/models"
	"helpdesk-portal-go/internal/tracker"
)

// ProcessNotifications runs one poll cycle for a single user: read the
// tracker's change log, deduplicate, persist, push, acknowledge. Returns the
// number of newly stored notifications. Failures are logged and swallowed so
// one user never aborts the scheduler batch.
func (s *Service) ProcessNotifications(ctx context.Context, email string, userID int64) int {
	start := time.Now()
	defer func() {
		metrics.PollDuration.Observe(time.Since(start).Seconds())
	}()

	opCtx, cancel := context.WithTimeout(ctx, trackerTimeout)
	defer cancel()

	db, err := s.connect(opCtx)
	if err != nil {
		log.Printf("Tracker unreachable, skipping poll for %s: %v", email, err)
		metrics.PollFailures.Inc()
		return 0
	}
	client := tracker.NewClient(db)
	defer client.Close()

	pushEnabled := true
	if user, err := s.store.GetUser(ctx, userID); err == nil {
		pushEnabled = user.BrowserNotificationsEnabled
	}

	stored := s.pollStatusChanges(opCtx, client, email, userID, pushEnabled)
	stored += s.pollComments(opCtx, client, email, userID, pushEnabled)
	return stored
}

// pollStatusChanges drains the status change log batch. Each row persists in
// its own statement; a row that fails stays in the source table for the next
// cycle.
func (s *Service) pollStatusChanges(ctx context.Context, client *tracker.Client, email string, userID int64, pushEnabled bool) int {
	rows, err := client.RecentStatusChanges(ctx, email)
	if err != nil {
		log.Printf("Failed to read status change log for %s: %v", email, err)
		return 0
	}

	stored := 0
	var processed []int64
	for _, row := range rows {
		if row.IssueID == 0 || row.CreatedAt.IsZero() {
			log.Printf("Skipping malformed status change row %d for %s", row.ID, email)
			continue
		}

		message := fmt.Sprintf("Issue #%d (%s) moved from %q to %q",
			row.IssueID, row.IssueSubject, row.OldStatus, row.NewStatus)
		if s.dedup.IsDuplicate(dedup.Event{
			UserID:  userID,
			IssueID: row.IssueID,
			Kind:    models.KindStatusChange,
			Message: message,
		}) {
			continue
		}

		saved, err := s.store.SaveStatusChange(ctx, models.StatusChangeNotification{
			UserID:     userID,
			IssueID:    row.IssueID,
			OldStatus:  row.OldStatus,
			NewStatus:  row.NewStatus,
			OldSubject: row.IssueSubject,
			CreatedAt:  row.CreatedAt,
		})
		if err != nil {
			log.Printf("Failed to store status change for issue %d: %v", row.IssueID, err)
			continue
		}
		processed = append(processed, row.ID)

		if !saved {
			continue
		}
		stored++
		metrics.NotificationsStored.WithLabelValues(string(models.KindStatusChange)).Inc()

		if pushEnabled {
			s.pusher.Send(ctx, models.PushMessage{
				UserID:  userID,
				IssueID: row.IssueID,
				Kind:    models.KindStatusChange,
				Title:   fmt.Sprintf("Issue #%d status changed", row.IssueID),
				Message: message,
				URL:     s.issueURL(row.IssueID),
			})
		}
	}

	if err := client.DeleteStatusChanges(ctx, processed); err != nil {
		// Rows will be re-polled; the existence check keeps this idempotent.
		log.Printf("Failed to acknowledge status change rows for %s: %v", email, err)
	}
	return stored
}

// pollComments drains the comment log batch, independent of the status batch.
func (s *Service) pollComments(ctx context.Context, client *tracker.Client, email string, userID int64, pushEnabled bool) int {
	rows, err := client.RecentComments(ctx, email)
	if err != nil {
		log.Printf("Failed to read comment log for %s: %v", email, err)
		return 0
	}

	stored := 0
	var processed []int64
	for _, row := range rows {
		if row.IssueID == 0 || row.CreatedAt.IsZero() {
			log.Printf("Skipping malformed comment row %d for %s", row.ID, email)
			continue
		}

		message := fmt.Sprintf("%s commented on issue #%d: %s", row.Author, row.IssueID, row.Notes)
		if s.dedup.IsDuplicate(dedup.Event{
			UserID:  userID,
			IssueID: row.IssueID,
			Kind:    models.KindComment,
			Message: message,
		}) {
			continue
		}

		saved, err := s.store.SaveComment(ctx, models.CommentNotification{
			UserID:    userID,
			IssueID:   row.IssueID,
			Author:    row.Author,
			NoteText:  row.Notes,
			CreatedAt: row.CreatedAt,
			SourceID:  row.ID,
		})
		if err != nil {
			log.Printf("Failed to store comment for issue %d: %v", row.IssueID, err)
			continue
		}
		processed = append(processed, row.ID)

		if !saved {
			continue
		}
		stored++
		metrics.NotificationsStored.WithLabelValues(string(models.KindComment)).Inc()

		if pushEnabled {
			s.pusher.Send(ctx, models.PushMessage{
				UserID:  userID,
				IssueID: row.IssueID,
				Kind:    models.KindComment,
				Title:   fmt.Sprintf("New comment on issue #%d", row.IssueID),
				Message: message,
				URL:     s.issueURL(row.IssueID),
			})
		}
	}

	if err := client.DeleteComments(ctx, processed); err != nil {
		log.Printf("Failed to acknowledge comment rows for %s: %v", email, err)
	}
	return stored
}

func (s *Service) issueURL(issueID int64) string {
	return fmt.Sprintf("%s/issues/%d", s.baseURL, issueID)
}
