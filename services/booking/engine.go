package booking

import (
	"context"
	"errors"

	"go.uber.org/zap"

	ledgerRepo "tutorlink/database/repository/ledger"
	scheduleRepo "tutorlink/database/repository/schedule"
	"tutorlink/models"
	"tutorlink/utils"
)

func (e *DefaultCoordinationEngine) Request(ctx context.Context, learnerID, tutorID, slotID string, meta models.SessionMeta) (*models.Booking, error) {
	return e.machine.Request(ctx, learnerID, tutorID, slotID, meta)
}

func (e *DefaultCoordinationEngine) Accept(ctx context.Context, bookingID, actorID string) (*models.Booking, error) {
	return e.machine.Accept(ctx, bookingID, actorID)
}

func (e *DefaultCoordinationEngine) Reject(ctx context.Context, bookingID, actorID string) (*models.Booking, error) {
	return e.machine.Reject(ctx, bookingID, actorID)
}

func (e *DefaultCoordinationEngine) Cancel(ctx context.Context, bookingID, actorID string) (*models.Booking, error) {
	return e.machine.Cancel(ctx, bookingID, actorID)
}

func (e *DefaultCoordinationEngine) Complete(ctx context.Context, bookingID string) (*models.Booking, error) {
	return e.machine.Complete(ctx, bookingID)
}

// DeclareSlot adds an availability window for a tutor. The overlap check and
// the insert run under a per-tutor lock so two concurrent declarations
// cannot both pass the check.
func (e *DefaultCoordinationEngine) DeclareSlot(ctx context.Context, slot models.Slot) (string, error) {
	e.tutorLocks.Lock(slot.TutorID)
	defer e.tutorLocks.Unlock(slot.TutorID)

	id, err := e.schedule.DeclareSlot(ctx, slot)
	if errors.Is(err, scheduleRepo.ErrOverlap) {
		return "", overlapErr("slot %d-%d overlaps an existing slot for tutor %s", slot.Start, slot.End, slot.TutorID)
	}
	return id, err
}

// RemoveSlot deletes a tutor's slot. Outstanding bookings referencing it
// become orphaned; they are not auto-resolved, only reported through the
// Orphans query.
func (e *DefaultCoordinationEngine) RemoveSlot(ctx context.Context, tutorID, slotID string) error {
	e.tutorLocks.Lock(tutorID)
	defer e.tutorLocks.Unlock(tutorID)

	err := e.schedule.Delete(ctx, tutorID, slotID)
	if errors.Is(err, scheduleRepo.ErrNotFound) {
		return notFoundErr("slot %s not found for tutor %s", slotID, tutorID)
	}
	if err != nil {
		return err
	}

	orphaned, listErr := e.ledger.ListBySlot(ctx, slotID)
	if listErr == nil {
		active := 0
		for _, b := range orphaned {
			if !b.Status.Terminal() {
				active++
			}
		}
		if active > 0 {
			utils.GetLogger().Warn("slot removed with outstanding bookings",
				zap.String("slotID", slotID),
				zap.String("tutorID", tutorID),
				zap.Int("orphanedBookings", active))
		}
	}
	return nil
}

// Availability lists a tutor's currently bookable slots inside the window.
// Read-only; used by UI-facing availability displays.
func (e *DefaultCoordinationEngine) Availability(ctx context.Context, tutorID string, window models.SlotWindow) ([]models.Slot, error) {
	slots, err := e.schedule.ListByTutor(ctx, tutorID)
	if err != nil {
		return nil, err
	}
	var out []models.Slot
	for _, slot := range slots {
		if slot.Available && slot.OccupiedBy == "" && window.Contains(slot) {
			out = append(out, slot)
		}
	}
	return out, nil
}

func (e *DefaultCoordinationEngine) GetSlot(ctx context.Context, slotID string) (*models.Slot, error) {
	slot, err := e.schedule.Get(ctx, slotID)
	if errors.Is(err, scheduleRepo.ErrNotFound) {
		return nil, notFoundErr("slot %s not found", slotID)
	}
	return slot, err
}

func (e *DefaultCoordinationEngine) GetBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	booking, err := e.ledger.Get(ctx, bookingID)
	if errors.Is(err, ledgerRepo.ErrNotFound) {
		return nil, notFoundErr("booking %s not found", bookingID)
	}
	return booking, err
}

func (e *DefaultCoordinationEngine) BookingsByTutor(ctx context.Context, tutorID string, statuses ...models.BookingStatus) ([]models.Booking, error) {
	return e.ledger.ListByTutor(ctx, tutorID, statuses...)
}

func (e *DefaultCoordinationEngine) BookingsByLearner(ctx context.Context, learnerID string, statuses ...models.BookingStatus) ([]models.Booking, error) {
	return e.ledger.ListByLearner(ctx, learnerID, statuses...)
}

// HandleMessage is the message-consumer boundary. SESSION_ACTION payloads go
// through the interpreter; SESSION_DETAILS payloads only update session
// metadata and never drive a transition.
func (e *DefaultCoordinationEngine) HandleMessage(ctx context.Context, msg models.SessionMessage) (ActionOutcome, error) {
	switch msg.Type {
	case models.MessageSessionAction:
		if msg.Action == nil {
			return ActionOutcome{Stale: true}, nil
		}
		action := *msg.Action
		if action.MessageID == "" {
			action.MessageID = msg.MessageID
		}
		if action.BookingID == "" {
			action.BookingID = msg.BookingID
		}
		if action.ActorID == "" {
			action.ActorID = msg.SenderID
		}
		return e.interpreter.Handle(ctx, action)

	case models.MessageSessionDetails:
		if msg.Details == nil {
			return ActionOutcome{Stale: true}, nil
		}
		booking, err := e.ledger.Get(ctx, msg.BookingID)
		if errors.Is(err, ledgerRepo.ErrNotFound) {
			utils.GetLogger().Warn("session details for unknown booking",
				zap.String("messageID", msg.MessageID),
				zap.String("bookingID", msg.BookingID))
			return ActionOutcome{BookingID: msg.BookingID, Stale: true}, nil
		}
		if err != nil {
			return ActionOutcome{}, err
		}
		// Same party check the action path enforces: only the booking's
		// learner or tutor may touch its session details.
		if msg.SenderID != booking.LearnerID && msg.SenderID != booking.TutorID {
			return ActionOutcome{BookingID: msg.BookingID, ErrorCode: CodeForbidden},
				forbiddenErr("actor %s is not a party to booking %s", msg.SenderID, msg.BookingID)
		}
		if err := e.ledger.SetMeta(ctx, msg.BookingID, *msg.Details); err != nil {
			return ActionOutcome{}, err
		}
		return ActionOutcome{BookingID: msg.BookingID}, nil

	default:
		return ActionOutcome{Stale: true}, nil
	}
}

// Orphans reports non-terminal bookings whose slot no longer exists, for
// operator or automated cleanup.
func (e *DefaultCoordinationEngine) Orphans(ctx context.Context) ([]models.Booking, error) {
	active, err := e.ledger.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	var orphans []models.Booking
	for _, booking := range active {
		_, err := e.schedule.Get(ctx, booking.SlotID)
		if errors.Is(err, scheduleRepo.ErrNotFound) {
			orphans = append(orphans, booking)
			continue
		}
		if err != nil {
			return nil, err
		}
	}
	return orphans, nil
}

func (e *DefaultCoordinationEngine) Subscribe(sink EventSink) {
	e.events.subscribe(sink)
}
