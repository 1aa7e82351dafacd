package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"tutorlink/models"
)

// recordingSink collects published events for assertions. Fan-out happens on
// separate goroutines, so collection is mutex-guarded and tests poll with
// waitFor instead of assuming synchronous delivery.
type recordingSink struct {
	mu     sync.Mutex
	events []models.BookingEvent
}

func newRecordingSink() *recordingSink {
	return &recordingSink{}
}

func (s *recordingSink) BookingTransition(ctx context.Context, event models.BookingEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) snapshot() []models.BookingEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.BookingEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *recordingSink) waitFor(t *testing.T, n int) []models.BookingEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if events := s.snapshot(); len(events) >= n {
			return events
		}
		time.Sleep(5 * time.Millisecond)
	}
	events := s.snapshot()
	t.Fatalf("expected %d events, got %d", n, len(events))
	return events
}
