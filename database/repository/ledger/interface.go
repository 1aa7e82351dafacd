// File: database/repository/ledger/interface.go
package ledgerRepo

import (
	"context"
	"errors"

	"tutorlink/models"
)

var ErrNotFound = errors.New("booking not found")

// BookingLedger owns the booking records. SetStatus is a pure state write:
// transition legality is enforced by the state machine, the ledger trusts
// its caller. List projections are ordered by creation time ascending.
type BookingLedger interface {
	Create(ctx context.Context, booking models.Booking) (string, error)
	Get(ctx context.Context, bookingID string) (*models.Booking, error)
	SetStatus(ctx context.Context, bookingID string, status models.BookingStatus) error
	SetMeta(ctx context.Context, bookingID string, meta models.SessionMeta) error
	ListByTutor(ctx context.Context, tutorID string, statuses ...models.BookingStatus) ([]models.Booking, error)
	ListByLearner(ctx context.Context, learnerID string, statuses ...models.BookingStatus) ([]models.Booking, error)
	ListBySlot(ctx context.Context, slotID string) ([]models.Booking, error)
	ListActive(ctx context.Context) ([]models.Booking, error)
}

func statusMatches(status models.BookingStatus, filter []models.BookingStatus) bool {
	if len(filter) == 0 {
		return true
	}
	for _, s := range filter {
		if s == status {
			return true
		}
	}
	return false
}
