package booking

import (
	"context"

	ledgerRepo "tutorlink/database/repository/ledger"
	scheduleRepo "tutorlink/database/repository/schedule"
	"tutorlink/models"
)

// ConflictResolver decides whether a booking may move to ACCEPTED. Slot
// occupancy is the single source of truth for acceptance, so the accepted-
// booking scan is implied by availability as long as occupancy is written
// atomically with acceptance; the resolver checks both so the invariant is
// independently testable and usable as a dry-run query by availability
// displays, without mutating state.
type ConflictResolver struct {
	Schedule scheduleRepo.ScheduleStore
	Ledger   ledgerRepo.BookingLedger
}

// CanAccept reports whether the booking's target slot is free. Bookings
// whose slot no longer exists are orphaned and never acceptable.
func (r *ConflictResolver) CanAccept(ctx context.Context, bookingID string) (bool, error) {
	booking, err := r.Ledger.Get(ctx, bookingID)
	if err != nil {
		return false, err
	}

	available, err := r.Schedule.IsAvailable(ctx, booking.SlotID)
	if err != nil {
		return false, err
	}
	if !available {
		return false, nil
	}

	siblings, err := r.Ledger.ListBySlot(ctx, booking.SlotID)
	if err != nil {
		return false, err
	}
	for _, other := range siblings {
		if other.ID != bookingID && other.Status == models.BookingAccepted {
			return false, nil
		}
	}
	return true, nil
}
