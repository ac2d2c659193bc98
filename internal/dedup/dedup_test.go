package dedup

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"helpdesk-portal-go/internal/models"
)

func event(userID, issueID int64, msg string) Event {
	return Event{UserID: userID, IssueID: issueID, Kind: models.KindStatusChange, Message: msg}
}

func TestFirstSightingIsNotDuplicate(t *testing.T) {
	d := New(time.Hour)

	ev := event(7, 500, "moved to In Progress")
	if d.IsDuplicate(ev) {
		t.Fatal("first sighting reported as duplicate")
	}
	if !d.IsDuplicate(ev) {
		t.Fatal("second sighting within window not reported as duplicate")
	}
}

func TestDistinctEventsDoNotCollide(t *testing.T) {
	d := New(time.Hour)

	base := event(7, 500, "moved to In Progress")
	if d.IsDuplicate(base) {
		t.Fatal("first sighting reported as duplicate")
	}

	variants := []Event{
		event(8, 500, "moved to In Progress"),  // different user
		event(7, 501, "moved to In Progress"),  // different issue
		event(7, 500, "moved to Resolved"),     // different message
		{UserID: 7, IssueID: 500, Kind: models.KindComment, Message: "moved to In Progress"}, // different kind
	}
	for i, ev := range variants {
		if d.IsDuplicate(ev) {
			t.Errorf("variant %d incorrectly suppressed", i)
		}
	}
}

func TestWindowExpiryAllowsResend(t *testing.T) {
	d := New(time.Hour)

	now := time.Now()
	d.now = func() time.Time { return now }

	ev := event(7, 500, "moved to In Progress")
	if d.IsDuplicate(ev) {
		t.Fatal("first sighting reported as duplicate")
	}

	now = now.Add(61 * time.Minute)
	if d.IsDuplicate(ev) {
		t.Fatal("sighting after window expiry still suppressed")
	}
}

func TestStaleEntriesEvictedLazily(t *testing.T) {
	d := New(time.Hour)

	now := time.Now()
	d.now = func() time.Time { return now }

	for i := int64(0); i < 10; i++ {
		d.IsDuplicate(event(7, i, "old"))
	}
	if got := d.Len(); got != 10 {
		t.Fatalf("Len() = %d, want 10", got)
	}

	now = now.Add(2 * time.Hour)
	d.IsDuplicate(event(7, 999, "fresh"))

	if got := d.Len(); got != 1 {
		t.Fatalf("Len() after eviction = %d, want 1", got)
	}
}

func TestDefaultWindowFallback(t *testing.T) {
	d := New(0)
	if d.window != DefaultWindow {
		t.Fatalf("window = %s, want %s", d.window, DefaultWindow)
	}
}

func TestConcurrentSightingsSuppressAllButOne(t *testing.T) {
	d := New(time.Hour)
	ev := event(7, 500, "concurrent")

	const workers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	firsts := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !d.IsDuplicate(ev) {
				mu.Lock()
				firsts++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if firsts != 1 {
		t.Fatalf("%d goroutines saw the event as new, want exactly 1", firsts)
	}
}

func TestManyUsersIndependent(t *testing.T) {
	d := New(time.Hour)

	for u := int64(1); u <= 50; u++ {
		if d.IsDuplicate(event(u, 500, fmt.Sprintf("user %d event", u))) {
			t.Fatalf("fresh event for user %d suppressed", u)
		}
	}
}
