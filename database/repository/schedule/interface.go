// File: database/repository/schedule/interface.go
package scheduleRepo

import (
	"context"
	"errors"
	"time"

	"tutorlink/models"
)

var (
	ErrNotFound      = errors.New("slot not found")
	ErrOverlap       = errors.New("slot overlaps an existing slot for this tutor")
	ErrSlotConflict  = errors.New("slot is already occupied by another booking")
	ErrInvalidWindow = errors.New("slot start must be before slot end")
)

// ScheduleStore owns the availability slots declared per tutor. Occupancy is
// the single source of truth for acceptance conflicts: MarkOccupied succeeds
// for at most one booking at a time, and re-entrantly for the same booking.
type ScheduleStore interface {
	DeclareSlot(ctx context.Context, slot models.Slot) (string, error)
	Get(ctx context.Context, slotID string) (*models.Slot, error)
	Delete(ctx context.Context, tutorID, slotID string) error
	MarkOccupied(ctx context.Context, slotID, bookingID string) error
	MarkFree(ctx context.Context, slotID string) error
	IsAvailable(ctx context.Context, slotID string) (bool, error)
	ListByTutor(ctx context.Context, tutorID string) ([]models.Slot, error)
}

// slotsCollide reports whether two slots for the same tutor claim
// intersecting time. Recurring slots collide with one-off slots whose date
// falls on the same weekday.
func slotsCollide(a, b models.Slot) bool {
	if !a.Overlaps(b) {
		return false
	}
	switch {
	case a.Recurring && b.Recurring:
		return a.Weekday == b.Weekday
	case !a.Recurring && !b.Recurring:
		return a.Date == b.Date
	case a.Recurring:
		return dateWeekday(b.Date) == a.Weekday
	default:
		return dateWeekday(a.Date) == b.Weekday
	}
}

func dateWeekday(date string) time.Weekday {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return -1
	}
	return t.Weekday()
}
