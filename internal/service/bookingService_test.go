package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/ds124wfegd/busbooker/internal/database/memory"
	"github.com/ds124wfegd/busbooker/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu    sync.Mutex
	tasks []*Task
	err   error
}

func (p *recordingPublisher) Publish(_ context.Context, task *Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks = append(p.tasks, task)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.tasks))
	for _, t := range p.tasks {
		out = append(out, t.Type)
	}
	return out
}

func fixedCalendar() *Calendar {
	return NewCalendar(time.UTC, func() time.Time {
		return time.Date(2030, 1, 2, 9, 0, 0, 0, time.UTC)
	})
}

func newTestBookingService(pub TaskPublisher) BookingService {
	return NewBookingService(
		memory.NewBookingRepository(),
		NewCapacityEngine(45, entity.DefaultCatalog()),
		fixedCalendar(),
		pub,
	)
}

func mustCreate(t *testing.T, svc BookingService, slot, date string, passengers int) *entity.Booking {
	t.Helper()
	b, err := svc.CreateBooking(context.Background(), &CreateBookingRequest{SlotKey: slot, Date: date, Passengers: passengers})
	require.NoError(t, err)
	return b
}

func TestCreateBooking_StartsPending(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newTestBookingService(pub)

	b := mustCreate(t, svc, " Evening Slot 1 ", nextFriday, 4)

	assert.Equal(t, "Evening Slot 1", b.SlotKey)
	assert.Equal(t, entity.BookingStatusPending, b.Status)
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, []string{TaskTypeBookingCreated}, pub.types())
}

func TestCreateBooking_MosqueOnSaturdayAlwaysRejected(t *testing.T) {
	svc := newTestBookingService(nil)

	for _, n := range []int{1, 10, 45} {
		_, err := svc.CreateBooking(context.Background(), &CreateBookingRequest{SlotKey: "Mosque Slot 2", Date: nextSaturday, Passengers: n})
		require.Error(t, err)
		assert.Equal(t, "Mosque slots are only available on Fridays.", err.Error())
	}
}

func TestCreateBooking_PendingDoesNotCountAgainstCapacity(t *testing.T) {
	svc := newTestBookingService(nil)

	mustCreate(t, svc, "Evening Slot 1", nextFriday, 45)
	mustCreate(t, svc, "Evening Slot 1", nextFriday, 45)
}

func TestCreateBooking_CapacityCountsConfirmedOnly(t *testing.T) {
	svc := newTestBookingService(nil)
	ctx := context.Background()

	b := mustCreate(t, svc, "Evening Slot 1", nextFriday, 42)
	_, err := svc.ConfirmBooking(ctx, b.ID)
	require.NoError(t, err)

	_, err = svc.CreateBooking(ctx, &CreateBookingRequest{SlotKey: "Evening Slot 1", Date: nextFriday, Passengers: 4})
	require.Error(t, err)
	assert.Equal(t, "Bus is full. Only 3 seats remaining.", err.Error())

	// other slots are untouched
	mustCreate(t, svc, "Evening Slot 2", nextFriday, 45)
}

func TestConfirmBooking_FortyThenTen(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newTestBookingService(pub)
	ctx := context.Background()

	first := mustCreate(t, svc, "Evening Slot 1", nextFriday, 40)
	second := mustCreate(t, svc, "Evening Slot 1", nextFriday, 10)

	confirmed, err := svc.ConfirmBooking(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusConfirmed, confirmed.Status)

	_, err = svc.ConfirmBooking(ctx, second.ID)
	require.Error(t, err)
	assert.Equal(t,
		"Bus is full. Cannot confirm this booking: 40 seats already confirmed, adding 10 would exceed the capacity of 45.",
		err.Error())

	still, err := svc.GetBooking(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusPending, still.Status)

	assert.Equal(t, []string{TaskTypeBookingCreated, TaskTypeBookingCreated, TaskTypeBookingConfirmed}, pub.types())
}

func TestConfirmBooking_Idempotent(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newTestBookingService(pub)
	ctx := context.Background()

	b := mustCreate(t, svc, "Evening Slot 1", nextFriday, 45)

	first, err := svc.ConfirmBooking(ctx, b.ID)
	require.NoError(t, err)
	second, err := svc.ConfirmBooking(ctx, b.ID)
	require.NoError(t, err)

	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)
	assert.Equal(t, entity.BookingStatusConfirmed, second.Status)
	assert.Equal(t, []string{TaskTypeBookingCreated, TaskTypeBookingConfirmed}, pub.types())
}

func TestConfirmBooking_NotFound(t *testing.T) {
	svc := newTestBookingService(nil)

	for _, id := range []string{"not-a-uuid", "8d3c7a59-2a51-4d5e-9a43-9d0c1c3b8e11"} {
		_, err := svc.ConfirmBooking(context.Background(), id)
		assert.ErrorIs(t, err, entity.ErrBookingNotFound, id)
	}
}

func TestConfirmBooking_ConcurrentNeverOverbooks(t *testing.T) {
	svc := newTestBookingService(nil)
	ctx := context.Background()

	ids := make([]string, 0, 12)
	for i := 0; i < 12; i++ {
		ids = append(ids, mustCreate(t, svc, "Evening Slot 4", nextFriday, 8).ID)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := svc.ConfirmBooking(ctx, id); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	avail, err := svc.GetAvailability(ctx, "Evening Slot 4", nextFriday)
	require.NoError(t, err)
	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 40, avail.ConfirmedSeats)
	assert.LessOrEqual(t, avail.ConfirmedSeats, avail.Capacity)
}

func TestUpdateBooking(t *testing.T) {
	svc := newTestBookingService(nil)
	ctx := context.Background()

	full := mustCreate(t, svc, "Evening Slot 1", nextFriday, 40)
	_, err := svc.ConfirmBooking(ctx, full.ID)
	require.NoError(t, err)

	pending := mustCreate(t, svc, "Evening Slot 1", nextFriday, 10)
	confirmedStatus := entity.BookingStatusConfirmed
	pendingStatus := entity.BookingStatusPending

	t.Run("cannot confirm past capacity", func(t *testing.T) {
		_, err := svc.UpdateBooking(ctx, pending.ID, &entity.BookingPatch{Status: &confirmedStatus})
		rejection, ok := entity.AsRejection(err)
		require.True(t, ok)
		assert.Equal(t, entity.RejectBusFull, rejection.Reason)
	})

	t.Run("confirmed booking cannot grow past capacity", func(t *testing.T) {
		more := 50
		_, err := svc.UpdateBooking(ctx, full.ID, &entity.BookingPatch{Passengers: &more})
		rejection, ok := entity.AsRejection(err)
		require.True(t, ok)
		assert.Equal(t, entity.RejectBusFull, rejection.Reason)
	})

	t.Run("confirmed cannot go back to pending", func(t *testing.T) {
		_, err := svc.UpdateBooking(ctx, full.ID, &entity.BookingPatch{Status: &pendingStatus})
		assert.ErrorIs(t, err, entity.ErrInvalidInput)
	})

	t.Run("moving to mosque on saturday re-runs schedule", func(t *testing.T) {
		slot, date := "Mosque Slot 1", nextSaturday
		_, err := svc.UpdateBooking(ctx, pending.ID, &entity.BookingPatch{SlotKey: &slot, Date: &date})
		require.Error(t, err)
		assert.Equal(t, "Mosque slots are only available on Fridays.", err.Error())
	})

	t.Run("pending booking cannot grow past free seats", func(t *testing.T) {
		more := 100
		_, err := svc.UpdateBooking(ctx, pending.ID, &entity.BookingPatch{Passengers: &more})
		rejection, ok := entity.AsRejection(err)
		require.True(t, ok)
		assert.Equal(t, entity.RejectCapacity, rejection.Reason)
		assert.Equal(t, "Bus is full. Only 5 seats remaining.", rejection.Message)

		got, err := svc.GetBooking(ctx, pending.ID)
		require.NoError(t, err)
		assert.Equal(t, 10, got.Passengers)
	})

	t.Run("passengers beyond storage range rejected", func(t *testing.T) {
		huge := math.MaxInt
		_, err := svc.UpdateBooking(ctx, pending.ID, &entity.BookingPatch{Passengers: &huge})
		assert.ErrorIs(t, err, entity.ErrInvalidInput)
	})

	t.Run("pending booking may shrink on a full slot", func(t *testing.T) {
		fewer := 8
		updated, err := svc.UpdateBooking(ctx, pending.ID, &entity.BookingPatch{Passengers: &fewer})
		require.NoError(t, err)
		assert.Equal(t, 8, updated.Passengers)
	})

	t.Run("moving to another slot then confirming", func(t *testing.T) {
		slot := "Evening Slot 2"
		updated, err := svc.UpdateBooking(ctx, pending.ID, &entity.BookingPatch{SlotKey: &slot, Status: &confirmedStatus})
		require.NoError(t, err)
		assert.Equal(t, "Evening Slot 2", updated.SlotKey)
		assert.Equal(t, entity.BookingStatusConfirmed, updated.Status)
		assert.Equal(t, pending.CreatedAt, updated.CreatedAt)
	})

	t.Run("empty patch returns booking unchanged", func(t *testing.T) {
		got, err := svc.UpdateBooking(ctx, full.ID, &entity.BookingPatch{})
		require.NoError(t, err)
		assert.Equal(t, 40, got.Passengers)
	})

	t.Run("zero passengers rejected", func(t *testing.T) {
		zero := 0
		_, err := svc.UpdateBooking(ctx, full.ID, &entity.BookingPatch{Passengers: &zero})
		assert.ErrorIs(t, err, entity.ErrInvalidInput)
	})
}

func TestCreateBooking_HugePassengerCountNeverWraps(t *testing.T) {
	svc := newTestBookingService(nil)
	ctx := context.Background()

	small := mustCreate(t, svc, "Evening Slot 1", nextFriday, 10)
	_, err := svc.ConfirmBooking(ctx, small.ID)
	require.NoError(t, err)

	_, err = svc.CreateBooking(ctx, &CreateBookingRequest{SlotKey: "Evening Slot 1", Date: nextFriday, Passengers: math.MaxInt})
	assert.ErrorIs(t, err, entity.ErrInvalidInput)

	_, err = svc.CreateBooking(ctx, &CreateBookingRequest{SlotKey: "Evening Slot 1", Date: nextFriday, Passengers: math.MaxInt32})
	rejection, ok := entity.AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, entity.RejectCapacity, rejection.Reason)

	avail, err := svc.GetAvailability(ctx, "Evening Slot 1", nextFriday)
	require.NoError(t, err)
	assert.Equal(t, 10, avail.ConfirmedSeats)
	assert.Equal(t, 35, avail.RemainingSeats)
}

func TestDeleteBooking(t *testing.T) {
	svc := newTestBookingService(nil)
	ctx := context.Background()

	b := mustCreate(t, svc, "Evening Slot 1", nextFriday, 3)
	require.NoError(t, svc.DeleteBooking(ctx, b.ID))

	err := svc.DeleteBooking(ctx, b.ID)
	assert.True(t, errors.Is(err, entity.ErrBookingNotFound))
}

func TestListBookings_RejectsUnknownStatus(t *testing.T) {
	svc := newTestBookingService(nil)
	_, err := svc.ListBookings(context.Background(), entity.BookingFilter{Status: "cancelled"})
	assert.ErrorIs(t, err, entity.ErrInvalidInput)
}

func TestGetAvailability(t *testing.T) {
	svc := newTestBookingService(nil)
	ctx := context.Background()

	b := mustCreate(t, svc, "Evening Slot 1", nextFriday, 30)
	mustCreate(t, svc, "Evening Slot 1", nextFriday, 7)
	_, err := svc.ConfirmBooking(ctx, b.ID)
	require.NoError(t, err)

	avail, err := svc.GetAvailability(ctx, "Evening Slot 1", nextFriday)
	require.NoError(t, err)
	assert.Equal(t, entity.Availability{
		SlotKey:        "Evening Slot 1",
		Date:           nextFriday,
		Capacity:       45,
		ConfirmedSeats: 30,
		PendingSeats:   7,
		RemainingSeats: 15,
	}, *avail)

	_, err = svc.GetAvailability(ctx, "", nextFriday)
	assert.ErrorIs(t, err, entity.ErrInvalidInput)
}

func TestCreateBooking_PublishFailureDoesNotFailRequest(t *testing.T) {
	svc := newTestBookingService(&recordingPublisher{err: errors.New("redis down")})
	mustCreate(t, svc, "Evening Slot 1", nextFriday, 1)
}

func TestPurgeAndReset(t *testing.T) {
	repo := memory.NewBookingRepository()
	engine := NewCapacityEngine(45, nil)
	ctx := context.Background()

	// bookings made last week, seen from today
	lastWeek := NewBookingService(repo, engine, NewCalendar(time.UTC, func() time.Time {
		return time.Date(2029, 12, 26, 9, 0, 0, 0, time.UTC)
	}), nil)
	stale := mustCreate(t, lastWeek, "Evening Slot 1", "2029-12-28", 2)
	kept := mustCreate(t, lastWeek, "Evening Slot 1", "2029-12-28", 2)
	_, err := lastWeek.ConfirmBooking(ctx, kept.ID)
	require.NoError(t, err)

	svc := NewBookingService(repo, engine, fixedCalendar(), nil)
	mustCreate(t, svc, "Evening Slot 1", nextFriday, 2)

	n, err := svc.PurgeStalePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = svc.GetBooking(ctx, stale.ID)
	assert.ErrorIs(t, err, entity.ErrBookingNotFound)

	n, err = svc.ResetBookings(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
