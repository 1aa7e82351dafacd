package booking

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ledgerRepo "tutorlink/database/repository/ledger"
	scheduleRepo "tutorlink/database/repository/schedule"
	"tutorlink/models"
)

type engineFixture struct {
	engine   *DefaultCoordinationEngine
	schedule scheduleRepo.ScheduleStore
	ledger   ledgerRepo.BookingLedger
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	schedule := scheduleRepo.NewMemoryScheduleStore()
	ledger := ledgerRepo.NewMemoryBookingLedger()
	return &engineFixture{
		engine:   NewCoordinationEngine(schedule, ledger, NewMemoryIdempotencyStore(1024)),
		schedule: schedule,
		ledger:   ledger,
	}
}

func (f *engineFixture) declareSlot(t *testing.T, tutorID string, start, end int) string {
	t.Helper()
	id, err := f.engine.DeclareSlot(context.Background(), models.Slot{
		TutorID: tutorID,
		Date:    "2026-09-07",
		Start:   start,
		End:     end,
	})
	require.NoError(t, err)
	return id
}

func (f *engineFixture) requestBooking(t *testing.T, learnerID, tutorID, slotID string) *models.Booking {
	t.Helper()
	booking, err := f.engine.Request(context.Background(), learnerID, tutorID, slotID, models.SessionMeta{Subject: "algebra"})
	require.NoError(t, err)
	return booking
}

func (f *engineFixture) slotOccupant(t *testing.T, slotID string) string {
	t.Helper()
	slot, err := f.schedule.Get(context.Background(), slotID)
	require.NoError(t, err)
	return slot.OccupiedBy
}

func TestRequestCreatesRequestedBooking(t *testing.T) {
	f := newEngineFixture(t)
	slotID := f.declareSlot(t, "tutor-1", 600, 660)

	booking := f.requestBooking(t, "learner-1", "tutor-1", slotID)
	assert.Equal(t, models.BookingRequested, booking.Status)
	assert.Equal(t, "learner-1", booking.LearnerID)
	assert.Equal(t, slotID, booking.SlotID)

	// Requesting does not claim the slot.
	assert.Empty(t, f.slotOccupant(t, slotID))
}

func TestRequestUnknownSlot(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.Request(context.Background(), "learner-1", "tutor-1", "ghost", models.SessionMeta{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRequestSlotBelongsToOtherTutor(t *testing.T) {
	f := newEngineFixture(t)
	slotID := f.declareSlot(t, "tutor-1", 600, 660)

	_, err := f.engine.Request(context.Background(), "learner-1", "tutor-2", slotID, models.SessionMeta{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMultipleRequestsShareOneSlot(t *testing.T) {
	f := newEngineFixture(t)
	slotID := f.declareSlot(t, "tutor-1", 600, 660)

	f.requestBooking(t, "learner-1", "tutor-1", slotID)
	f.requestBooking(t, "learner-2", "tutor-1", slotID)
	f.requestBooking(t, "learner-3", "tutor-1", slotID)

	bookings, err := f.engine.BookingsByTutor(context.Background(), "tutor-1", models.BookingRequested)
	require.NoError(t, err)
	assert.Len(t, bookings, 3)
}

func TestAcceptClaimsSlot(t *testing.T) {
	f := newEngineFixture(t)
	slotID := f.declareSlot(t, "tutor-1", 600, 660)
	booking := f.requestBooking(t, "learner-1", "tutor-1", slotID)

	accepted, err := f.engine.Accept(context.Background(), booking.ID, "tutor-1")
	require.NoError(t, err)
	assert.Equal(t, models.BookingAccepted, accepted.Status)
	assert.Equal(t, booking.ID, f.slotOccupant(t, slotID))
}

func TestAcceptRequiresTutor(t *testing.T) {
	f := newEngineFixture(t)
	slotID := f.declareSlot(t, "tutor-1", 600, 660)
	booking := f.requestBooking(t, "learner-1", "tutor-1", slotID)

	_, err := f.engine.Accept(context.Background(), booking.ID, "learner-1")
	assert.ErrorIs(t, err, ErrForbidden)

	// Failed authorization leaves the booking and the slot untouched.
	current, err := f.engine.GetBooking(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingRequested, current.Status)
	assert.Empty(t, f.slotOccupant(t, slotID))
}

func TestAcceptSecondBookingOnOccupiedSlot(t *testing.T) {
	f := newEngineFixture(t)
	slotID := f.declareSlot(t, "tutor-1", 600, 660)
	first := f.requestBooking(t, "learner-1", "tutor-1", slotID)
	second := f.requestBooking(t, "learner-2", "tutor-1", slotID)

	_, err := f.engine.Accept(context.Background(), first.ID, "tutor-1")
	require.NoError(t, err)

	_, err = f.engine.Accept(context.Background(), second.ID, "tutor-1")
	assert.ErrorIs(t, err, ErrSlotConflict)

	// Loser stays REQUESTED; it was not auto-rejected.
	current, err := f.engine.GetBooking(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingRequested, current.Status)
}

func TestConcurrentAcceptsSingleWinner(t *testing.T) {
	f := newEngineFixture(t)
	slotID := f.declareSlot(t, "tutor-1", 600, 660)

	const contenders = 16
	bookingIDs := make([]string, contenders)
	for i := range bookingIDs {
		bookingIDs[i] = f.requestBooking(t, "learner", "tutor-1", slotID).ID
	}

	var wg sync.WaitGroup
	errs := make([]error, contenders)
	for i, id := range bookingIDs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.engine.Accept(context.Background(), id, "tutor-1")
		}(i, id)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, ErrSlotConflict)
		}
	}
	assert.Equal(t, 1, wins)

	accepted, err := f.engine.BookingsByTutor(context.Background(), "tutor-1", models.BookingAccepted)
	require.NoError(t, err)
	require.Len(t, accepted, 1)
	assert.Equal(t, accepted[0].ID, f.slotOccupant(t, slotID))
}

func TestRejectLeavesSlotFree(t *testing.T) {
	f := newEngineFixture(t)
	slotID := f.declareSlot(t, "tutor-1", 600, 660)
	booking := f.requestBooking(t, "learner-1", "tutor-1", slotID)

	rejected, err := f.engine.Reject(context.Background(), booking.ID, "tutor-1")
	require.NoError(t, err)
	assert.Equal(t, models.BookingRejected, rejected.Status)

	available, err := f.schedule.IsAvailable(context.Background(), slotID)
	require.NoError(t, err)
	assert.True(t, available)
}

func TestCancelRequestedByLearner(t *testing.T) {
	f := newEngineFixture(t)
	slotID := f.declareSlot(t, "tutor-1", 600, 660)
	booking := f.requestBooking(t, "learner-1", "tutor-1", slotID)

	cancelled, err := f.engine.Cancel(context.Background(), booking.ID, "learner-1")
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, cancelled.Status)
}

func TestCancelAcceptedFreesSlot(t *testing.T) {
	f := newEngineFixture(t)
	slotID := f.declareSlot(t, "tutor-1", 600, 660)
	booking := f.requestBooking(t, "learner-1", "tutor-1", slotID)

	_, err := f.engine.Accept(context.Background(), booking.ID, "tutor-1")
	require.NoError(t, err)

	_, err = f.engine.Cancel(context.Background(), booking.ID, "tutor-1")
	require.NoError(t, err)
	assert.Empty(t, f.slotOccupant(t, slotID))

	// The freed slot is immediately claimable again.
	next := f.requestBooking(t, "learner-2", "tutor-1", slotID)
	_, err = f.engine.Accept(context.Background(), next.ID, "tutor-1")
	assert.NoError(t, err)
}

func TestCancelRejectsThirdParty(t *testing.T) {
	f := newEngineFixture(t)
	slotID := f.declareSlot(t, "tutor-1", 600, 660)
	booking := f.requestBooking(t, "learner-1", "tutor-1", slotID)

	_, err := f.engine.Cancel(context.Background(), booking.ID, "stranger")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCompleteFreesSlot(t *testing.T) {
	f := newEngineFixture(t)
	slotID := f.declareSlot(t, "tutor-1", 600, 660)
	booking := f.requestBooking(t, "learner-1", "tutor-1", slotID)

	_, err := f.engine.Accept(context.Background(), booking.ID, "tutor-1")
	require.NoError(t, err)

	completed, err := f.engine.Complete(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCompleted, completed.Status)
	assert.Empty(t, f.slotOccupant(t, slotID))
}

func TestTransitionTableRejectsEverythingElse(t *testing.T) {
	type op func(f *engineFixture, bookingID string) error

	accept := func(f *engineFixture, id string) error {
		_, err := f.engine.Accept(context.Background(), id, "tutor-1")
		return err
	}
	reject := func(f *engineFixture, id string) error {
		_, err := f.engine.Reject(context.Background(), id, "tutor-1")
		return err
	}
	cancel := func(f *engineFixture, id string) error {
		_, err := f.engine.Cancel(context.Background(), id, "tutor-1")
		return err
	}
	complete := func(f *engineFixture, id string) error {
		_, err := f.engine.Complete(context.Background(), id)
		return err
	}

	// Drive a booking into the named status, then assert the op is illegal.
	cases := []struct {
		name  string
		setup func(f *engineFixture, id string)
		op    op
	}{
		{"complete requested", func(f *engineFixture, id string) {}, complete},
		{"accept accepted", func(f *engineFixture, id string) {
			_, err := f.engine.Accept(context.Background(), id, "tutor-1")
			require.NoError(t, err)
		}, accept},
		{"reject accepted", func(f *engineFixture, id string) {
			_, err := f.engine.Accept(context.Background(), id, "tutor-1")
			require.NoError(t, err)
		}, reject},
		{"accept rejected", func(f *engineFixture, id string) {
			_, err := f.engine.Reject(context.Background(), id, "tutor-1")
			require.NoError(t, err)
		}, accept},
		{"cancel rejected", func(f *engineFixture, id string) {
			_, err := f.engine.Reject(context.Background(), id, "tutor-1")
			require.NoError(t, err)
		}, cancel},
		{"accept cancelled", func(f *engineFixture, id string) {
			_, err := f.engine.Cancel(context.Background(), id, "tutor-1")
			require.NoError(t, err)
		}, accept},
		{"complete cancelled", func(f *engineFixture, id string) {
			_, err := f.engine.Cancel(context.Background(), id, "tutor-1")
			require.NoError(t, err)
		}, complete},
		{"accept completed", func(f *engineFixture, id string) {
			_, err := f.engine.Accept(context.Background(), id, "tutor-1")
			require.NoError(t, err)
			_, err = f.engine.Complete(context.Background(), id)
			require.NoError(t, err)
		}, accept},
		{"cancel completed", func(f *engineFixture, id string) {
			_, err := f.engine.Accept(context.Background(), id, "tutor-1")
			require.NoError(t, err)
			_, err = f.engine.Complete(context.Background(), id)
			require.NoError(t, err)
		}, cancel},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newEngineFixture(t)
			slotID := f.declareSlot(t, "tutor-1", 600, 660)
			booking := f.requestBooking(t, "learner-1", "tutor-1", slotID)
			tc.setup(f, booking.ID)

			before, err := f.engine.GetBooking(context.Background(), booking.ID)
			require.NoError(t, err)

			err = tc.op(f, booking.ID)
			assert.ErrorIs(t, err, ErrInvalidTransition)

			after, err := f.engine.GetBooking(context.Background(), booking.ID)
			require.NoError(t, err)
			assert.Equal(t, before.Status, after.Status)
		})
	}
}

func TestAcceptOrphanedBooking(t *testing.T) {
	f := newEngineFixture(t)
	slotID := f.declareSlot(t, "tutor-1", 600, 660)
	booking := f.requestBooking(t, "learner-1", "tutor-1", slotID)

	require.NoError(t, f.engine.RemoveSlot(context.Background(), "tutor-1", slotID))

	_, err := f.engine.Accept(context.Background(), booking.ID, "tutor-1")
	assert.ErrorIs(t, err, ErrOrphan)
}

func TestEventsPublishedPerTransition(t *testing.T) {
	f := newEngineFixture(t)
	sink := newRecordingSink()
	f.engine.Subscribe(sink)

	slotID := f.declareSlot(t, "tutor-1", 600, 660)
	booking := f.requestBooking(t, "learner-1", "tutor-1", slotID)
	_, err := f.engine.Accept(context.Background(), booking.ID, "tutor-1")
	require.NoError(t, err)
	_, err = f.engine.Complete(context.Background(), booking.ID)
	require.NoError(t, err)

	// Fan-out is asynchronous, so assert on the set of transitions.
	events := sink.waitFor(t, 3)
	transitions := make([][2]models.BookingStatus, 0, len(events))
	for _, ev := range events {
		assert.Equal(t, booking.ID, ev.BookingID)
		transitions = append(transitions, [2]models.BookingStatus{ev.OldStatus, ev.NewStatus})
	}
	assert.ElementsMatch(t, [][2]models.BookingStatus{
		{"", models.BookingRequested},
		{models.BookingRequested, models.BookingAccepted},
		{models.BookingAccepted, models.BookingCompleted},
	}, transitions)
}
