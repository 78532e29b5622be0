package repository

import (
	"context"

	"github.com/ds124wfegd/busbooker/internal/entity"
)

// AdmitFunc decides whether a booking may take its seats, given the seats
// already confirmed on the same slot and date (the booking itself excluded).
// Stores call it while the slot is held exclusively, so the decision and the
// write that follows are atomic with respect to other capacity writes.
type AdmitFunc func(booking *entity.Booking, confirmedSeats int) error

// MutateFunc applies a change to a booking copy. Returning false means there
// is nothing to write and the stored booking is returned as is.
type MutateFunc func(booking *entity.Booking) (changed bool, err error)

type BookingRepository interface {
	// Create assigns ID and timestamps and inserts the booking if admit accepts it.
	Create(ctx context.Context, booking *entity.Booking, admit AdmitFunc) error
	// Modify locks the booking, applies mutate and, when something changed,
	// runs admit under the lock of the resulting slot before persisting.
	Modify(ctx context.Context, id string, mutate MutateFunc, admit AdmitFunc) (*entity.Booking, error)

	GetByID(ctx context.Context, id string) (*entity.Booking, error)
	List(ctx context.Context, filter entity.BookingFilter) ([]*entity.Booking, error)
	SeatCounts(ctx context.Context, slotKey, date string) (confirmed, pending int, err error)

	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int64, error)
	DeletePendingBefore(ctx context.Context, date string) (int64, error)
}
