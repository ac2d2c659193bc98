// Package scheduler owns the periodic background trigger that runs the
// notification pipeline once per active user.
package scheduler

import (
	"context"
	"log"
	"time"

	"helpdesk-portal-go/internal/models"
)

// Processor is the single facade operation the scheduler drives.
type Processor interface {
	ProcessNotifications(ctx context.Context, email string, userID int64) int
}

// UserSource lists the users currently flagged active, i.e. worth polling.
type UserSource interface {
	ActiveUsers(ctx context.Context) ([]models.User, error)
}

// Scheduler invokes the processor for every active user on a fixed
// interval, strictly sequentially.
type Scheduler struct {
	processor Processor
	users     UserSource
	interval  time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates a scheduler ticking at the given interval.
func New(p Processor, users UserSource, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		processor: p,
		users:     users,
		interval:  interval,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Start launches the polling loop on its own goroutine, with an immediate
// first run.
func (s *Scheduler) Start() {
	log.Printf("Starting notification scheduler (interval %s)", s.interval)
	go s.run()
}

// Stop shuts the loop down and waits for the in-flight batch to finish.
func (s *Scheduler) Stop() {
	log.Println("Stopping notification scheduler...")
	s.cancel()
	<-s.done
	log.Println("Notification scheduler stopped")
}

func (s *Scheduler) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runBatch()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runBatch()
		}
	}
}

// runBatch processes every active user in turn. One user's failure never
// aborts the batch; outcomes are logged per user.
func (s *Scheduler) runBatch() {
	users, err := s.users.ActiveUsers(s.ctx)
	if err != nil {
		log.Printf("Failed to list active users: %v", err)
		return
	}

	for _, user := range users {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		processed := s.processor.ProcessNotifications(s.ctx, user.Email, user.ID)
		if processed > 0 {
			log.Printf("Processed %d notifications for %s", processed, user.Email)
		}
	}
}
