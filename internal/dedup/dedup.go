package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"helpdesk-portal-go/internal/models"
)

// DefaultWindow is the trailing interval during which an identical event
// hash is suppressed as a duplicate.
const DefaultWindow = 60 * time.Minute

// Event is the identity of one inbound tracker event. Message carries the
// human-visible text, so distinct messages never collide except through a
// true hash collision.
type Event struct {
	UserID  int64
	IssueID int64
	Kind    models.Kind
	Message string
}

// Deduplicator suppresses repeated sightings of the same event within a
// trailing time window. State is process-local; the store's existence check
// is the persistent second line of defense after a restart.
type Deduplicator struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
	now    func() time.Time
}

// New creates a Deduplicator with the given window. A non-positive window
// falls back to DefaultWindow.
func New(window time.Duration) *Deduplicator {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Deduplicator{
		window: window,
		seen:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// IsDuplicate reports whether ev was already seen within the window. The
// first sighting records the hash and returns false. Stale entries are
// purged lazily on every call.
func (d *Deduplicator) IsDuplicate(ev Event) bool {
	h := hash(ev)

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	cutoff := now.Add(-d.window)
	for k, ts := range d.seen {
		if ts.Before(cutoff) {
			delete(d.seen, k)
		}
	}

	if _, ok := d.seen[h]; ok {
		return true
	}
	d.seen[h] = now
	return false
}

// Len reports the number of recorded hashes, stale entries included.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

func hash(ev Event) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%d|%s|%s", ev.UserID, ev.IssueID, ev.Kind, ev.Message)))
	return hex.EncodeToString(sum[:])
}
