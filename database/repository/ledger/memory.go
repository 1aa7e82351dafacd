// File: database/repository/ledger/memory.go
package ledgerRepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tutorlink/models"
)

type memoryBookingLedger struct {
	mu       sync.RWMutex
	bookings map[string]models.Booking
}

// NewMemoryBookingLedger constructs an empty in-memory BookingLedger.
func NewMemoryBookingLedger() BookingLedger {
	return &memoryBookingLedger{bookings: make(map[string]models.Booking)}
}

func (l *memoryBookingLedger) Create(ctx context.Context, booking models.Booking) (string, error) {
	if booking.ID == "" {
		booking.ID = uuid.New().String()
	}
	booking.Status = models.BookingRequested
	now := time.Now()
	booking.CreatedAt = now
	booking.UpdatedAt = now

	l.mu.Lock()
	defer l.mu.Unlock()
	l.bookings[booking.ID] = booking
	return booking.ID, nil
}

func (l *memoryBookingLedger) Get(ctx context.Context, bookingID string) (*models.Booking, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	booking, ok := l.bookings[bookingID]
	if !ok {
		return nil, ErrNotFound
	}
	return &booking, nil
}

func (l *memoryBookingLedger) SetStatus(ctx context.Context, bookingID string, status models.BookingStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	booking, ok := l.bookings[bookingID]
	if !ok {
		return ErrNotFound
	}
	booking.Status = status
	booking.UpdatedAt = time.Now()
	l.bookings[bookingID] = booking
	return nil
}

func (l *memoryBookingLedger) SetMeta(ctx context.Context, bookingID string, meta models.SessionMeta) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	booking, ok := l.bookings[bookingID]
	if !ok {
		return ErrNotFound
	}
	booking.Meta = meta
	booking.UpdatedAt = time.Now()
	l.bookings[bookingID] = booking
	return nil
}

func (l *memoryBookingLedger) ListByTutor(ctx context.Context, tutorID string, statuses ...models.BookingStatus) ([]models.Booking, error) {
	return l.list(func(b models.Booking) bool {
		return b.TutorID == tutorID && statusMatches(b.Status, statuses)
	}), nil
}

func (l *memoryBookingLedger) ListByLearner(ctx context.Context, learnerID string, statuses ...models.BookingStatus) ([]models.Booking, error) {
	return l.list(func(b models.Booking) bool {
		return b.LearnerID == learnerID && statusMatches(b.Status, statuses)
	}), nil
}

func (l *memoryBookingLedger) ListBySlot(ctx context.Context, slotID string) ([]models.Booking, error) {
	return l.list(func(b models.Booking) bool { return b.SlotID == slotID }), nil
}

func (l *memoryBookingLedger) ListActive(ctx context.Context) ([]models.Booking, error) {
	return l.list(func(b models.Booking) bool { return !b.Status.Terminal() }), nil
}

func (l *memoryBookingLedger) list(match func(models.Booking) bool) []models.Booking {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []models.Booking
	for _, b := range l.bookings {
		if match(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
