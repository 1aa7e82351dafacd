package booking

import (
	"context"

	ledgerRepo "tutorlink/database/repository/ledger"
	scheduleRepo "tutorlink/database/repository/schedule"
	"tutorlink/models"
)

// CoordinationEngine is the public facade over the schedule store, the
// booking ledger, the state machine and the session-action interpreter. It
// is the only component external callers use; all booking and occupancy
// mutation funnels through it.
type CoordinationEngine interface {
	// Booking lifecycle.
	Request(ctx context.Context, learnerID, tutorID, slotID string, meta models.SessionMeta) (*models.Booking, error)
	Accept(ctx context.Context, bookingID, actorID string) (*models.Booking, error)
	Reject(ctx context.Context, bookingID, actorID string) (*models.Booking, error)
	Cancel(ctx context.Context, bookingID, actorID string) (*models.Booking, error)
	Complete(ctx context.Context, bookingID string) (*models.Booking, error)

	// Schedule management (tutor-side availability).
	DeclareSlot(ctx context.Context, slot models.Slot) (string, error)
	RemoveSlot(ctx context.Context, tutorID, slotID string) error
	Availability(ctx context.Context, tutorID string, window models.SlotWindow) ([]models.Slot, error)
	GetSlot(ctx context.Context, slotID string) (*models.Slot, error)

	// Read projections.
	GetBooking(ctx context.Context, bookingID string) (*models.Booking, error)
	BookingsByTutor(ctx context.Context, tutorID string, statuses ...models.BookingStatus) ([]models.Booking, error)
	BookingsByLearner(ctx context.Context, learnerID string, statuses ...models.BookingStatus) ([]models.Booking, error)

	// Messaging boundary.
	HandleMessage(ctx context.Context, msg models.SessionMessage) (ActionOutcome, error)

	// Reconciliation and events.
	Orphans(ctx context.Context) ([]models.Booking, error)
	Subscribe(sink EventSink)
}

// DefaultCoordinationEngine implements CoordinationEngine.
type DefaultCoordinationEngine struct {
	schedule    scheduleRepo.ScheduleStore
	ledger      ledgerRepo.BookingLedger
	machine     *StateMachine
	interpreter *SessionActionInterpreter
	events      *eventPublisher
	tutorLocks  *keyedMutex
}

// NewCoordinationEngine wires the engine from its injected stores. Stores
// are constructed at startup and torn down at shutdown; tests instantiate
// isolated in-memory instances per case.
func NewCoordinationEngine(schedule scheduleRepo.ScheduleStore, ledger ledgerRepo.BookingLedger, seen IdempotencyStore) *DefaultCoordinationEngine {
	events := &eventPublisher{}
	machine := NewStateMachine(schedule, ledger, events)
	return &DefaultCoordinationEngine{
		schedule:    schedule,
		ledger:      ledger,
		machine:     machine,
		interpreter: NewSessionActionInterpreter(machine, ledger, seen),
		events:      events,
		tutorLocks:  newKeyedMutex(),
	}
}

var _ CoordinationEngine = (*DefaultCoordinationEngine)(nil)
