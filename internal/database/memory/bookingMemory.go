// In-process booking store used for development and tests
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	repository "github.com/ds124wfegd/busbooker/internal/database/postgres"
	"github.com/ds124wfegd/busbooker/internal/entity"

	"github.com/google/uuid"
)

type bookingRepository struct {
	mu       sync.Mutex
	bookings map[string]*entity.Booking
	now      func() time.Time
}

func NewBookingRepository() repository.BookingRepository {
	return &bookingRepository{
		bookings: make(map[string]*entity.Booking),
		now:      time.Now,
	}
}

// confirmedSeats must be called with mu held.
func (r *bookingRepository) confirmedSeats(slotKey, date, excludeID string) int {
	seats := 0
	for id, b := range r.bookings {
		if id == excludeID || !b.IsConfirmed() {
			continue
		}
		if b.SlotKey == slotKey && b.Date == date {
			seats += b.Passengers
		}
	}
	return seats
}

func (r *bookingRepository) Create(ctx context.Context, booking *entity.Booking, admit repository.AdmitFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}

	if admit != nil {
		if err := admit(booking, r.confirmedSeats(booking.SlotKey, booking.Date, booking.ID)); err != nil {
			return err
		}
	}

	now := r.now()
	booking.CreatedAt = now
	booking.UpdatedAt = now
	r.bookings[booking.ID] = booking.Clone()
	return nil
}

func (r *bookingRepository) Modify(ctx context.Context, id string, mutate repository.MutateFunc, admit repository.AdmitFunc) (*entity.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.bookings[id]
	if !ok {
		return nil, entity.ErrBookingNotFound
	}

	updated := current.Clone()
	changed, err := mutate(updated)
	if err != nil {
		return nil, err
	}
	if !changed {
		return current.Clone(), nil
	}
	updated.ID = current.ID
	updated.CreatedAt = current.CreatedAt

	if admit != nil {
		if err := admit(updated, r.confirmedSeats(updated.SlotKey, updated.Date, updated.ID)); err != nil {
			return nil, err
		}
	}

	updated.UpdatedAt = r.now()
	r.bookings[id] = updated
	return updated.Clone(), nil
}

func (r *bookingRepository) GetByID(ctx context.Context, id string) (*entity.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, entity.ErrBookingNotFound
	}
	return b.Clone(), nil
}

func (r *bookingRepository) List(ctx context.Context, filter entity.BookingFilter) ([]*entity.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	search := strings.ToLower(filter.Search)
	bookings := make([]*entity.Booking, 0, len(r.bookings))
	for _, b := range r.bookings {
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		if filter.Date != "" && b.Date != filter.Date {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(b.SlotKey), search) &&
			!strings.Contains(string(b.Status), search) {
			continue
		}
		bookings = append(bookings, b.Clone())
	}

	sort.SliceStable(bookings, func(i, j int) bool {
		if bookings[i].Date != bookings[j].Date {
			return bookings[i].Date < bookings[j].Date
		}
		if !bookings[i].CreatedAt.Equal(bookings[j].CreatedAt) {
			return bookings[i].CreatedAt.Before(bookings[j].CreatedAt)
		}
		return bookings[i].ID < bookings[j].ID
	})
	return bookings, nil
}

func (r *bookingRepository) SeatCounts(ctx context.Context, slotKey, date string) (int, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var confirmed, pending int
	for _, b := range r.bookings {
		if b.SlotKey != slotKey || b.Date != date {
			continue
		}
		if b.IsConfirmed() {
			confirmed += b.Passengers
		} else {
			pending += b.Passengers
		}
	}
	return confirmed, pending, nil
}

func (r *bookingRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bookings[id]; !ok {
		return entity.ErrBookingNotFound
	}
	delete(r.bookings, id)
	return nil
}

func (r *bookingRepository) DeleteAll(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := int64(len(r.bookings))
	r.bookings = make(map[string]*entity.Booking)
	return n, nil
}

func (r *bookingRepository) DeletePendingBefore(ctx context.Context, date string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, b := range r.bookings {
		if !b.IsConfirmed() && b.Date < date {
			delete(r.bookings, id)
			n++
		}
	}
	return n, nil
}
