package booking

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	ledgerRepo "tutorlink/database/repository/ledger"
	scheduleRepo "tutorlink/database/repository/schedule"
	"tutorlink/models"
	"tutorlink/utils"
)

type transitionEvent string

const (
	eventAccept   transitionEvent = "accept"
	eventReject   transitionEvent = "reject"
	eventCancel   transitionEvent = "cancel"
	eventComplete transitionEvent = "complete"
)

// transitionTable is the complete set of legal (status, event) pairs. Every
// pair not listed here fails with an invalid-transition error and leaves the
// booking untouched; terminal statuses have no entries at all.
var transitionTable = map[models.BookingStatus]map[transitionEvent]models.BookingStatus{
	models.BookingRequested: {
		eventAccept: models.BookingAccepted,
		eventReject: models.BookingRejected,
		eventCancel: models.BookingCancelled,
	},
	models.BookingAccepted: {
		eventCancel:   models.BookingCancelled,
		eventComplete: models.BookingCompleted,
	},
}

// StateMachine drives the booking lifecycle and keeps booking status and
// slot occupancy mutually consistent. All booking mutation in the system is
// funneled through its five entry points.
//
// Locking: transitions on one booking are totally ordered by a per-booking
// lock. Accept additionally holds the per-slot lock across the availability
// check and the occupancy write, so two acceptances on the same slot cannot
// interleave; acceptances on different slots do not contend. The slot lock
// is always taken before the booking lock.
type StateMachine struct {
	schedule scheduleRepo.ScheduleStore
	ledger   ledgerRepo.BookingLedger
	resolver *ConflictResolver

	slotLocks    *keyedMutex
	bookingLocks *keyedMutex
	events       *eventPublisher
	logger       *zap.Logger
}

func NewStateMachine(schedule scheduleRepo.ScheduleStore, ledger ledgerRepo.BookingLedger, events *eventPublisher) *StateMachine {
	return &StateMachine{
		schedule:     schedule,
		ledger:       ledger,
		resolver:     &ConflictResolver{Schedule: schedule, Ledger: ledger},
		slotLocks:    newKeyedMutex(),
		bookingLocks: newKeyedMutex(),
		events:       events,
		logger:       utils.GetLogger(),
	}
}

// Request creates a booking in REQUESTED. Slot occupancy is untouched: a
// request never needs availability, only a valid slot for the right tutor.
func (m *StateMachine) Request(ctx context.Context, learnerID, tutorID, slotID string, meta models.SessionMeta) (*models.Booking, error) {
	slot, err := m.schedule.Get(ctx, slotID)
	if errors.Is(err, scheduleRepo.ErrNotFound) {
		return nil, notFoundErr("slot %s not found", slotID)
	}
	if err != nil {
		return nil, err
	}
	if slot.TutorID != tutorID {
		return nil, notFoundErr("slot %s does not belong to tutor %s", slotID, tutorID)
	}

	id, err := m.ledger.Create(ctx, models.Booking{
		LearnerID: learnerID,
		TutorID:   tutorID,
		SlotID:    slotID,
		Meta:      meta,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	booking, err := m.ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	m.events.publish(id, "", models.BookingRequested)
	return booking, nil
}

// Accept moves a REQUESTED booking to ACCEPTED and claims the slot. The
// availability check and the occupancy write form one critical section under
// the slot lock; no caller can observe status without occupancy or the
// reverse.
func (m *StateMachine) Accept(ctx context.Context, bookingID, actorID string) (*models.Booking, error) {
	booking, err := m.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	m.slotLocks.Lock(booking.SlotID)
	defer m.slotLocks.Unlock(booking.SlotID)
	m.bookingLocks.Lock(bookingID)
	defer m.bookingLocks.Unlock(bookingID)

	booking, err = m.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.TutorID != actorID {
		return nil, forbiddenErr("only tutor %s may accept booking %s", booking.TutorID, bookingID)
	}
	next, ok := transitionTable[booking.Status][eventAccept]
	if !ok {
		return nil, invalidTransitionErr("cannot accept booking in status %s", booking.Status)
	}

	if _, err := m.schedule.Get(ctx, booking.SlotID); errors.Is(err, scheduleRepo.ErrNotFound) {
		return nil, &EngineError{Code: CodeOrphan, Message: fmt.Sprintf("booking %s references deleted slot %s", bookingID, booking.SlotID)}
	} else if err != nil {
		return nil, err
	}

	free, err := m.resolver.CanAccept(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !free {
		return nil, slotConflictErr("slot %s is not available", booking.SlotID)
	}

	if err := m.schedule.MarkOccupied(ctx, booking.SlotID, bookingID); err != nil {
		if errors.Is(err, scheduleRepo.ErrSlotConflict) {
			return nil, slotConflictErr("slot %s is not available", booking.SlotID)
		}
		return nil, err
	}
	if err := m.ledger.SetStatus(ctx, bookingID, next); err != nil {
		// roll the occupancy claim back so status and occupancy stay in step
		if freeErr := m.schedule.MarkFree(ctx, booking.SlotID); freeErr != nil {
			m.logger.Error("failed to release slot after status write failure",
				zap.String("slotID", booking.SlotID), zap.Error(freeErr))
		}
		return nil, err
	}

	m.events.publish(bookingID, booking.Status, next)
	return m.getBooking(ctx, bookingID)
}

// Reject moves a REQUESTED booking to REJECTED. The slot was never occupied,
// so the schedule is untouched.
func (m *StateMachine) Reject(ctx context.Context, bookingID, actorID string) (*models.Booking, error) {
	m.bookingLocks.Lock(bookingID)
	defer m.bookingLocks.Unlock(bookingID)

	booking, err := m.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.TutorID != actorID {
		return nil, forbiddenErr("only tutor %s may reject booking %s", booking.TutorID, bookingID)
	}
	next, ok := transitionTable[booking.Status][eventReject]
	if !ok {
		return nil, invalidTransitionErr("cannot reject booking in status %s", booking.Status)
	}

	if err := m.ledger.SetStatus(ctx, bookingID, next); err != nil {
		return nil, err
	}
	m.events.publish(bookingID, booking.Status, next)
	return m.getBooking(ctx, bookingID)
}

// Cancel moves a REQUESTED or ACCEPTED booking to CANCELLED. Either party
// may cancel. Cancelling an accepted booking frees its slot immediately.
func (m *StateMachine) Cancel(ctx context.Context, bookingID, actorID string) (*models.Booking, error) {
	booking, err := m.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	m.slotLocks.Lock(booking.SlotID)
	defer m.slotLocks.Unlock(booking.SlotID)
	m.bookingLocks.Lock(bookingID)
	defer m.bookingLocks.Unlock(bookingID)

	booking, err = m.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if actorID != booking.LearnerID && actorID != booking.TutorID {
		return nil, forbiddenErr("actor %s is not a party to booking %s", actorID, bookingID)
	}
	next, ok := transitionTable[booking.Status][eventCancel]
	if !ok {
		return nil, invalidTransitionErr("cannot cancel booking in status %s", booking.Status)
	}

	if booking.Status == models.BookingAccepted {
		if err := m.releaseSlot(ctx, booking); err != nil {
			return nil, err
		}
	}
	if err := m.ledger.SetStatus(ctx, bookingID, next); err != nil {
		return nil, err
	}
	m.events.publish(bookingID, booking.Status, next)
	return m.getBooking(ctx, bookingID)
}

// Complete is system-triggered by the completion sweep once the session end
// time has passed. The slot is freed for reuse: one-off slots become
// bookable again, recurring slots open for their next cycle.
func (m *StateMachine) Complete(ctx context.Context, bookingID string) (*models.Booking, error) {
	booking, err := m.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	m.slotLocks.Lock(booking.SlotID)
	defer m.slotLocks.Unlock(booking.SlotID)
	m.bookingLocks.Lock(bookingID)
	defer m.bookingLocks.Unlock(bookingID)

	booking, err = m.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	next, ok := transitionTable[booking.Status][eventComplete]
	if !ok {
		return nil, invalidTransitionErr("cannot complete booking in status %s", booking.Status)
	}

	if err := m.releaseSlot(ctx, booking); err != nil {
		return nil, err
	}
	if err := m.ledger.SetStatus(ctx, bookingID, next); err != nil {
		return nil, err
	}
	m.events.publish(bookingID, booking.Status, next)
	return m.getBooking(ctx, bookingID)
}

// releaseSlot frees the slot held by an accepted booking. A missing slot
// means the booking went orphaned while accepted; the transition still
// proceeds, there is nothing left to free.
func (m *StateMachine) releaseSlot(ctx context.Context, booking *models.Booking) error {
	err := m.schedule.MarkFree(ctx, booking.SlotID)
	if errors.Is(err, scheduleRepo.ErrNotFound) {
		m.logger.Warn("slot already deleted while releasing occupancy",
			zap.String("bookingID", booking.ID), zap.String("slotID", booking.SlotID))
		return nil
	}
	return err
}

func (m *StateMachine) getBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	booking, err := m.ledger.Get(ctx, bookingID)
	if errors.Is(err, ledgerRepo.ErrNotFound) {
		return nil, notFoundErr("booking %s not found", bookingID)
	}
	if err != nil {
		return nil, err
	}
	return booking, nil
}
