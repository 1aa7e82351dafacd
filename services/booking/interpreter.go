package booking

import (
	"context"
	"errors"

	"go.uber.org/zap"

	ledgerRepo "tutorlink/database/repository/ledger"
	"tutorlink/models"
	"tutorlink/utils"
)

// SessionActionInterpreter translates structured chat-message actions into
// state machine transitions. Every action carries a message id used as an
// idempotency key: a replayed id produces no second transition and returns
// the recorded outcome. Actions against unknown or already-terminal bookings
// are an expected race in asynchronous messaging (duplicate or out-of-order
// delivery); they come back as a stale outcome, never as an engine failure.
type SessionActionInterpreter struct {
	machine *StateMachine
	ledger  ledgerRepo.BookingLedger
	seen    IdempotencyStore
	logger  *zap.Logger
}

func NewSessionActionInterpreter(machine *StateMachine, ledger ledgerRepo.BookingLedger, seen IdempotencyStore) *SessionActionInterpreter {
	return &SessionActionInterpreter{
		machine: machine,
		ledger:  ledger,
		seen:    seen,
		logger:  utils.GetLogger(),
	}
}

// Handle interprets one session action exactly once.
func (i *SessionActionInterpreter) Handle(ctx context.Context, action models.SessionAction) (ActionOutcome, error) {
	first, prior, err := i.seen.Begin(ctx, action.MessageID)
	if err != nil {
		return ActionOutcome{}, err
	}
	if !first {
		i.logger.Debug("replayed session action",
			zap.String("messageID", action.MessageID),
			zap.String("bookingID", action.BookingID))
		outcome := *prior
		outcome.Replayed = true
		return outcome, errorForCode(outcome.ErrorCode)
	}

	outcome, err := i.interpret(ctx, action)
	if err != nil && !isDefinitive(err) {
		// Transient store failure: the action was not interpreted. Release
		// the claim so the messaging layer's redelivery re-executes instead
		// of replaying an empty outcome.
		if abortErr := i.seen.Abort(ctx, action.MessageID); abortErr != nil {
			i.logger.Error("failed to release message id claim",
				zap.String("messageID", action.MessageID), zap.Error(abortErr))
		}
		return outcome, err
	}
	if finishErr := i.seen.Finish(ctx, action.MessageID, outcome); finishErr != nil {
		i.logger.Error("failed to record session action outcome",
			zap.String("messageID", action.MessageID), zap.Error(finishErr))
	}
	return outcome, err
}

// isDefinitive reports whether an interpretation error is a final verdict on
// the action. Typed engine errors are; anything else is a transient failure
// whose outcome must not be recorded against the message id.
func isDefinitive(err error) bool {
	var engineErr *EngineError
	return errors.As(err, &engineErr)
}

func (i *SessionActionInterpreter) interpret(ctx context.Context, action models.SessionAction) (ActionOutcome, error) {
	var (
		booking *models.Booking
		err     error
	)
	switch action.Kind {
	case models.ActionAccept:
		booking, err = i.machine.Accept(ctx, action.BookingID, action.ActorID)
	case models.ActionReject:
		booking, err = i.machine.Reject(ctx, action.BookingID, action.ActorID)
	case models.ActionCancel:
		booking, err = i.machine.Cancel(ctx, action.BookingID, action.ActorID)
	case models.ActionReschedulePropose:
		return i.reschedule(ctx, action)
	default:
		return ActionOutcome{Stale: true}, nil
	}

	if err != nil {
		if stale, staleOutcome := i.asStale(ctx, action, err); stale {
			return staleOutcome, nil
		}
		var engineErr *EngineError
		if errors.As(err, &engineErr) {
			return ActionOutcome{BookingID: action.BookingID, ErrorCode: engineErr.Code}, err
		}
		return ActionOutcome{}, err
	}
	return ActionOutcome{BookingID: booking.ID, Status: booking.Status}, nil
}

// reschedule creates a fresh REQUESTED booking against the proposed slot.
// The original booking stays untouched until the counterpart separately
// cancels or rejects it.
func (i *SessionActionInterpreter) reschedule(ctx context.Context, action models.SessionAction) (ActionOutcome, error) {
	original, err := i.ledger.Get(ctx, action.BookingID)
	if errors.Is(err, ledgerRepo.ErrNotFound) {
		return i.staleOutcome(action, "unknown booking"), nil
	}
	if err != nil {
		return ActionOutcome{}, err
	}
	if original.Status.Terminal() {
		return i.staleOutcome(action, "terminal booking"), nil
	}
	if action.ActorID != original.LearnerID && action.ActorID != original.TutorID {
		return ActionOutcome{BookingID: action.BookingID, ErrorCode: CodeForbidden},
			forbiddenErr("actor %s is not a party to booking %s", action.ActorID, action.BookingID)
	}

	proposed, err := i.machine.Request(ctx, original.LearnerID, original.TutorID, action.TargetSlotID, original.Meta)
	if err != nil {
		var engineErr *EngineError
		if errors.As(err, &engineErr) {
			return ActionOutcome{BookingID: action.BookingID, ErrorCode: engineErr.Code}, err
		}
		return ActionOutcome{}, err
	}
	return ActionOutcome{BookingID: proposed.ID, Status: proposed.Status}, nil
}

// asStale maps unknown-booking and terminal-booking transition failures to a
// stale outcome and logs them at warn.
func (i *SessionActionInterpreter) asStale(ctx context.Context, action models.SessionAction, err error) (bool, ActionOutcome) {
	if errors.Is(err, ErrNotFound) {
		return true, i.staleOutcome(action, "unknown booking")
	}
	if errors.Is(err, ErrInvalidTransition) {
		if booking, getErr := i.ledger.Get(ctx, action.BookingID); getErr == nil && booking.Status.Terminal() {
			return true, i.staleOutcome(action, "terminal booking")
		}
	}
	return false, ActionOutcome{}
}

func (i *SessionActionInterpreter) staleOutcome(action models.SessionAction, reason string) ActionOutcome {
	i.logger.Warn("stale session action",
		zap.String("messageID", action.MessageID),
		zap.String("bookingID", action.BookingID),
		zap.String("kind", string(action.Kind)),
		zap.String("reason", reason))
	return ActionOutcome{BookingID: action.BookingID, Stale: true}
}

func errorForCode(code string) error {
	switch code {
	case "":
		return nil
	case CodeNotFound:
		return ErrNotFound
	case CodeForbidden:
		return ErrForbidden
	case CodeInvalidTransition:
		return ErrInvalidTransition
	case CodeSlotConflict:
		return ErrSlotConflict
	case CodeOverlap:
		return ErrOverlap
	case CodeOrphan:
		return ErrOrphan
	default:
		return &EngineError{Code: code, Message: "recorded failure"}
	}
}
