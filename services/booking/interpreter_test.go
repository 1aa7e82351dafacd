package booking

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ledgerRepo "tutorlink/database/repository/ledger"
	scheduleRepo "tutorlink/database/repository/schedule"
	"tutorlink/models"
)

// flakyLedger fails a fixed number of Get calls before delegating, standing
// in for a store riding out a transient outage.
type flakyLedger struct {
	ledgerRepo.BookingLedger
	remaining int
}

func (l *flakyLedger) Get(ctx context.Context, bookingID string) (*models.Booking, error) {
	if l.remaining > 0 {
		l.remaining--
		return nil, errors.New("connection reset by peer")
	}
	return l.BookingLedger.Get(ctx, bookingID)
}

func sessionAction(messageID, bookingID string, kind models.ActionKind, actorID string) models.SessionAction {
	return models.SessionAction{
		MessageID: messageID,
		BookingID: bookingID,
		Kind:      kind,
		ActorID:   actorID,
	}
}

func TestHandleAcceptAction(t *testing.T) {
	f := newEngineFixture(t)
	slotID := f.declareSlot(t, "tutor-1", 600, 660)
	booking := f.requestBooking(t, "learner-1", "tutor-1", slotID)

	outcome, err := f.engine.HandleMessage(context.Background(), models.SessionMessage{
		MessageID: "msg-1",
		BookingID: booking.ID,
		Type:      models.MessageSessionAction,
		SenderID:  "tutor-1",
		Action:    &models.SessionAction{Kind: models.ActionAccept},
	})
	require.NoError(t, err)
	assert.Equal(t, booking.ID, outcome.BookingID)
	assert.Equal(t, models.BookingAccepted, outcome.Status)
	assert.False(t, outcome.Stale)
	assert.False(t, outcome.Replayed)

	assert.Equal(t, booking.ID, f.slotOccupant(t, slotID))
}

func TestHandleReplayedActionIsNoOp(t *testing.T) {
	f := newEngineFixture(t)
	slotID := f.declareSlot(t, "tutor-1", 600, 660)
	booking := f.requestBooking(t, "learner-1", "tutor-1", slotID)

	action := sessionAction("msg-1", booking.ID, models.ActionCancel, "learner-1")

	first, err := f.engine.interpreter.Handle(context.Background(), action)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, first.Status)

	replay, err := f.engine.interpreter.Handle(context.Background(), action)
	require.NoError(t, err)
	assert.True(t, replay.Replayed)
	assert.Equal(t, first.Status, replay.Status)
	assert.Equal(t, first.BookingID, replay.BookingID)

	// No second transition happened: the booking is still CANCELLED, not
	// failed with an invalid-transition error.
	current, err := f.engine.GetBooking(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, current.Status)
}

func TestHandleReplayReturnsRecordedFailure(t *testing.T) {
	f := newEngineFixture(t)
	slotID := f.declareSlot(t, "tutor-1", 600, 660)
	first := f.requestBooking(t, "learner-1", "tutor-1", slotID)
	second := f.requestBooking(t, "learner-2", "tutor-1", slotID)

	_, err := f.engine.Accept(context.Background(), first.ID, "tutor-1")
	require.NoError(t, err)

	action := sessionAction("msg-1", second.ID, models.ActionAccept, "tutor-1")

	_, err = f.engine.interpreter.Handle(context.Background(), action)
	require.ErrorIs(t, err, ErrSlotConflict)

	outcome, err := f.engine.interpreter.Handle(context.Background(), action)
	assert.ErrorIs(t, err, ErrSlotConflict)
	assert.True(t, outcome.Replayed)
	assert.Equal(t, CodeSlotConflict, outcome.ErrorCode)
}

func TestHandleTransientFailureDoesNotPoisonMessageID(t *testing.T) {
	schedule := scheduleRepo.NewMemoryScheduleStore()
	ledger := &flakyLedger{BookingLedger: ledgerRepo.NewMemoryBookingLedger()}
	engine := NewCoordinationEngine(schedule, ledger, NewMemoryIdempotencyStore(1024))

	ctx := context.Background()
	slotID, err := engine.DeclareSlot(ctx, models.Slot{
		TutorID: "tutor-1", Date: "2026-09-07", Start: 600, End: 660,
	})
	require.NoError(t, err)
	booking, err := engine.Request(ctx, "learner-1", "tutor-1", slotID, models.SessionMeta{})
	require.NoError(t, err)

	// The store blows up mid-interpretation; the action was not applied.
	ledger.remaining = 1
	action := sessionAction("msg-1", booking.ID, models.ActionAccept, "tutor-1")
	_, err = engine.interpreter.Handle(ctx, action)
	require.Error(t, err)

	current, err := engine.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	require.Equal(t, models.BookingRequested, current.Status)

	// Redelivery of the same message id re-executes instead of replaying an
	// empty outcome.
	outcome, err := engine.interpreter.Handle(ctx, action)
	require.NoError(t, err)
	assert.False(t, outcome.Replayed)
	assert.Equal(t, models.BookingAccepted, outcome.Status)

	current, err = engine.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingAccepted, current.Status)
}

func TestHandleActionOnUnknownBookingIsStale(t *testing.T) {
	f := newEngineFixture(t)

	outcome, err := f.engine.interpreter.Handle(context.Background(),
		sessionAction("msg-1", "ghost", models.ActionAccept, "tutor-1"))
	require.NoError(t, err)
	assert.True(t, outcome.Stale)
}

func TestHandleActionOnTerminalBookingIsStale(t *testing.T) {
	f := newEngineFixture(t)
	slotID := f.declareSlot(t, "tutor-1", 600, 660)
	booking := f.requestBooking(t, "learner-1", "tutor-1", slotID)

	_, err := f.engine.Reject(context.Background(), booking.ID, "tutor-1")
	require.NoError(t, err)

	outcome, err := f.engine.interpreter.Handle(context.Background(),
		sessionAction("msg-1", booking.ID, models.ActionCancel, "learner-1"))
	require.NoError(t, err)
	assert.True(t, outcome.Stale)

	current, err := f.engine.GetBooking(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingRejected, current.Status)
}

func TestHandleForbiddenActionIsNotStale(t *testing.T) {
	f := newEngineFixture(t)
	slotID := f.declareSlot(t, "tutor-1", 600, 660)
	booking := f.requestBooking(t, "learner-1", "tutor-1", slotID)

	outcome, err := f.engine.interpreter.Handle(context.Background(),
		sessionAction("msg-1", booking.ID, models.ActionAccept, "learner-1"))
	assert.ErrorIs(t, err, ErrForbidden)
	assert.False(t, outcome.Stale)
	assert.Equal(t, CodeForbidden, outcome.ErrorCode)
}

func TestReschedulePropose(t *testing.T) {
	f := newEngineFixture(t)
	slotID := f.declareSlot(t, "tutor-1", 600, 660)
	newSlotID := f.declareSlot(t, "tutor-1", 720, 780)
	booking := f.requestBooking(t, "learner-1", "tutor-1", slotID)

	action := sessionAction("msg-1", booking.ID, models.ActionReschedulePropose, "tutor-1")
	action.TargetSlotID = newSlotID

	outcome, err := f.engine.interpreter.Handle(context.Background(), action)
	require.NoError(t, err)
	require.NotEmpty(t, outcome.BookingID)
	assert.NotEqual(t, booking.ID, outcome.BookingID)
	assert.Equal(t, models.BookingRequested, outcome.Status)

	// The proposal carries over the parties and metadata.
	proposed, err := f.engine.GetBooking(context.Background(), outcome.BookingID)
	require.NoError(t, err)
	assert.Equal(t, booking.LearnerID, proposed.LearnerID)
	assert.Equal(t, booking.TutorID, proposed.TutorID)
	assert.Equal(t, newSlotID, proposed.SlotID)
	assert.Equal(t, booking.Meta.Subject, proposed.Meta.Subject)

	// The original booking is untouched until someone resolves it.
	original, err := f.engine.GetBooking(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingRequested, original.Status)
}

func TestRescheduleProposeUnknownTargetSlot(t *testing.T) {
	f := newEngineFixture(t)
	slotID := f.declareSlot(t, "tutor-1", 600, 660)
	booking := f.requestBooking(t, "learner-1", "tutor-1", slotID)

	action := sessionAction("msg-1", booking.ID, models.ActionReschedulePropose, "learner-1")
	action.TargetSlotID = "ghost"

	outcome, err := f.engine.interpreter.Handle(context.Background(), action)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, CodeNotFound, outcome.ErrorCode)
}

func TestHandleUnknownActionKind(t *testing.T) {
	f := newEngineFixture(t)
	slotID := f.declareSlot(t, "tutor-1", 600, 660)
	booking := f.requestBooking(t, "learner-1", "tutor-1", slotID)

	outcome, err := f.engine.interpreter.Handle(context.Background(),
		sessionAction("msg-1", booking.ID, "SNOOZE", "learner-1"))
	require.NoError(t, err)
	assert.True(t, outcome.Stale)
}

func TestSessionDetailsUpdatesMeta(t *testing.T) {
	f := newEngineFixture(t)
	slotID := f.declareSlot(t, "tutor-1", 600, 660)
	booking := f.requestBooking(t, "learner-1", "tutor-1", slotID)

	outcome, err := f.engine.HandleMessage(context.Background(), models.SessionMessage{
		MessageID: "msg-1",
		BookingID: booking.ID,
		Type:      models.MessageSessionDetails,
		SenderID:  "tutor-1",
		Details:   &models.SessionMeta{Subject: "calculus", MeetingLink: "https://meet.example/abc"},
	})
	require.NoError(t, err)
	assert.False(t, outcome.Stale)

	current, err := f.engine.GetBooking(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, "calculus", current.Meta.Subject)
	assert.Equal(t, "https://meet.example/abc", current.Meta.MeetingLink)

	// Details never drive a transition.
	assert.Equal(t, models.BookingRequested, current.Status)
}

func TestSessionDetailsRejectsNonParty(t *testing.T) {
	f := newEngineFixture(t)
	slotID := f.declareSlot(t, "tutor-1", 600, 660)
	booking := f.requestBooking(t, "learner-1", "tutor-1", slotID)

	outcome, err := f.engine.HandleMessage(context.Background(), models.SessionMessage{
		MessageID: "msg-1",
		BookingID: booking.ID,
		Type:      models.MessageSessionDetails,
		SenderID:  "stranger",
		Details:   &models.SessionMeta{MeetingLink: "https://elsewhere.example/xyz"},
	})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, CodeForbidden, outcome.ErrorCode)

	current, err := f.engine.GetBooking(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Empty(t, current.Meta.MeetingLink)
}

func TestSessionDetailsUnknownBookingIsStale(t *testing.T) {
	f := newEngineFixture(t)

	outcome, err := f.engine.HandleMessage(context.Background(), models.SessionMessage{
		MessageID: "msg-1",
		BookingID: "ghost",
		Type:      models.MessageSessionDetails,
		SenderID:  "tutor-1",
		Details:   &models.SessionMeta{Subject: "calculus"},
	})
	require.NoError(t, err)
	assert.True(t, outcome.Stale)
}

func TestMemoryIdempotencyStoreEvictsOldest(t *testing.T) {
	store := NewMemoryIdempotencyStore(2)
	ctx := context.Background()

	first, _, err := store.Begin(ctx, "a")
	require.NoError(t, err)
	require.True(t, first)
	require.NoError(t, store.Finish(ctx, "a", ActionOutcome{BookingID: "b-1"}))

	for _, id := range []string{"b", "c"} {
		ok, _, err := store.Begin(ctx, id)
		require.NoError(t, err)
		require.True(t, ok)
	}

	// "a" was evicted, so its id is claimable again.
	first, _, err = store.Begin(ctx, "a")
	require.NoError(t, err)
	assert.True(t, first)
}

func TestMemoryIdempotencyStoreAbortReleasesClaim(t *testing.T) {
	store := NewMemoryIdempotencyStore(8)
	ctx := context.Background()

	first, _, err := store.Begin(ctx, "a")
	require.NoError(t, err)
	require.True(t, first)

	require.NoError(t, store.Abort(ctx, "a"))

	first, _, err = store.Begin(ctx, "a")
	require.NoError(t, err)
	assert.True(t, first)

	// Aborting an unclaimed id is a no-op.
	assert.NoError(t, store.Abort(ctx, "ghost"))
}
