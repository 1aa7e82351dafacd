package booking

import (
	"context"
	"sync"
	"time"

	"tutorlink/models"
)

// EventSink consumes booking transition events. Delivery is at-least-once
// and asynchronous; sinks must be idempotent per (bookingID, newStatus).
type EventSink interface {
	BookingTransition(ctx context.Context, event models.BookingEvent)
}

type eventPublisher struct {
	mu    sync.RWMutex
	sinks []EventSink
}

func (p *eventPublisher) subscribe(sink EventSink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sinks = append(p.sinks, sink)
}

// publish fans the event out without blocking the transition path. Sink
// failures are the sink's problem; the transition has already committed.
func (p *eventPublisher) publish(bookingID string, old, next models.BookingStatus) {
	event := models.BookingEvent{
		BookingID: bookingID,
		OldStatus: old,
		NewStatus: next,
		Timestamp: time.Now(),
	}

	p.mu.RLock()
	sinks := make([]EventSink, len(p.sinks))
	copy(sinks, p.sinks)
	p.mu.RUnlock()

	for _, sink := range sinks {
		go sink.BookingTransition(context.Background(), event)
	}
}
