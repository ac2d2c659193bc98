package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"helpdesk-portal-go/internal/models"
)

type recordingProcessor struct {
	mu     sync.Mutex
	calls  []string
	notify chan struct{}
}

func newRecordingProcessor() *recordingProcessor {
	return &recordingProcessor{notify: make(chan struct{}, 64)}
}

func (p *recordingProcessor) ProcessNotifications(_ context.Context, email string, _ int64) int {
	p.mu.Lock()
	p.calls = append(p.calls, email)
	p.mu.Unlock()
	select {
	case p.notify <- struct{}{}:
	default:
	}
	return 1
}

func (p *recordingProcessor) emails() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

type staticUsers struct {
	users []models.User
	err   error
}

func (s staticUsers) ActiveUsers(context.Context) ([]models.User, error) {
	return s.users, s.err
}

func waitForCalls(t *testing.T, p *recordingProcessor, n int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if len(p.emails()) >= n {
			return
		}
		select {
		case <-p.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %d processor calls, got %d", n, len(p.emails()))
		}
	}
}

func TestImmediateFirstBatchCoversEveryActiveUser(t *testing.T) {
	p := newRecordingProcessor()
	users := staticUsers{users: []models.User{
		{ID: 1, Email: "a@x.com"},
		{ID: 2, Email: "b@x.com"},
	}}

	s := New(p, users, time.Hour)
	s.Start()
	waitForCalls(t, p, 2)
	s.Stop()

	got := p.emails()[:2]
	if got[0] != "a@x.com" || got[1] != "b@x.com" {
		t.Fatalf("batch order = %v, want [a@x.com b@x.com]", got)
	}
}

func TestTickerRunsRepeatedBatches(t *testing.T) {
	p := newRecordingProcessor()
	users := staticUsers{users: []models.User{{ID: 1, Email: "a@x.com"}}}

	s := New(p, users, 10*time.Millisecond)
	s.Start()
	waitForCalls(t, p, 3)
	s.Stop()
}

func TestUserSourceErrorSkipsBatch(t *testing.T) {
	p := newRecordingProcessor()
	s := New(p, staticUsers{err: errors.New("redis down")}, 5*time.Millisecond)

	s.Start()
	time.Sleep(30 * time.Millisecond)
	s.Stop()

	if got := len(p.emails()); got != 0 {
		t.Fatalf("processor called %d times while user source failing, want 0", got)
	}
}

func TestStopWaitsForLoopExit(t *testing.T) {
	p := newRecordingProcessor()
	s := New(p, staticUsers{}, time.Hour)

	s.Start()
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestZeroIntervalFallsBackToDefault(t *testing.T) {
	s := New(newRecordingProcessor(), staticUsers{}, 0)
	if s.interval != time.Minute {
		t.Fatalf("interval = %s, want 1m fallback", s.interval)
	}
}
