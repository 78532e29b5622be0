package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ds124wfegd/busbooker/internal/entity"

	"github.com/google/uuid"
)

const selectBooking = `
		SELECT
			id, slot_key, travel_date, passengers, status, created_at, updated_at
		FROM bookings`

type bookingRepository struct {
	db *sql.DB
}

func NewBookingRepository(db *sql.DB) BookingRepository {
	return &bookingRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*entity.Booking, error) {
	var booking entity.Booking
	err := row.Scan(
		&booking.ID,
		&booking.SlotKey,
		&booking.Date,
		&booking.Passengers,
		&booking.Status,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// lockSlot serialises capacity decisions for one slot and date until the
// transaction ends.
func lockSlot(ctx context.Context, tx *sql.Tx, slotKey, date string) error {
	_, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, slotKey+"|"+date)
	if err != nil {
		return fmt.Errorf("failed to lock slot: %w", err)
	}
	return nil
}

func confirmedSeats(ctx context.Context, tx *sql.Tx, slotKey, date, excludeID string) (int, error) {
	var seats int
	query := `
		SELECT COALESCE(SUM(passengers), 0)
		FROM bookings
		WHERE slot_key = $1 AND travel_date = $2 AND status = 'confirmed' AND id <> $3`
	if err := tx.QueryRowContext(ctx, query, slotKey, date, excludeID).Scan(&seats); err != nil {
		return 0, fmt.Errorf("failed to check confirmed seats: %w", err)
	}
	return seats, nil
}

// Create inserts a booking after admit accepted it under the slot lock
func (r *bookingRepository) Create(ctx context.Context, booking *entity.Booking, admit AdmitFunc) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := lockSlot(ctx, tx, booking.SlotKey, booking.Date); err != nil {
		return err
	}

	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}

	if admit != nil {
		seats, err := confirmedSeats(ctx, tx, booking.SlotKey, booking.Date, booking.ID)
		if err != nil {
			return err
		}
		if err := admit(booking, seats); err != nil {
			return err
		}
	}

	query := `
		INSERT INTO bookings (
			id, slot_key, travel_date, passengers, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	now := time.Now()
	_, err = tx.ExecContext(ctx, query,
		booking.ID,
		booking.SlotKey,
		booking.Date,
		booking.Passengers,
		booking.Status,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	booking.CreatedAt = now
	booking.UpdatedAt = now
	return nil
}

// Modify locks the booking row first and the slot second, in that order for every caller
func (r *bookingRepository) Modify(ctx context.Context, id string, mutate MutateFunc, admit AdmitFunc) (*entity.Booking, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := scanBooking(tx.QueryRowContext(ctx, selectBooking+` WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking with lock: %w", err)
	}

	updated := current.Clone()
	changed, err := mutate(updated)
	if err != nil {
		return nil, err
	}
	if !changed {
		return current, nil
	}
	updated.ID = current.ID
	updated.CreatedAt = current.CreatedAt

	if admit != nil {
		if err := lockSlot(ctx, tx, updated.SlotKey, updated.Date); err != nil {
			return nil, err
		}
		seats, err := confirmedSeats(ctx, tx, updated.SlotKey, updated.Date, updated.ID)
		if err != nil {
			return nil, err
		}
		if err := admit(updated, seats); err != nil {
			return nil, err
		}
	}

	query := `
		UPDATE bookings
		SET slot_key = $1, travel_date = $2, passengers = $3, status = $4, updated_at = $5
		WHERE id = $6
	`
	now := time.Now()
	result, err := tx.ExecContext(ctx, query,
		updated.SlotKey,
		updated.Date,
		updated.Passengers,
		updated.Status,
		now,
		updated.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update booking: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, entity.ErrBookingNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	updated.UpdatedAt = now
	return updated, nil
}

// GetByID retrieves a booking by its ID
func (r *bookingRepository) GetByID(ctx context.Context, id string) (*entity.Booking, error) {
	booking, err := scanBooking(r.db.QueryRowContext(ctx, selectBooking+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

// List returns bookings matching the filter, ordered by travel date and creation time
func (r *bookingRepository) List(ctx context.Context, filter entity.BookingFilter) ([]*entity.Booking, error) {
	var (
		conds []string
		args  []interface{}
	)

	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Date != "" {
		args = append(args, filter.Date)
		conds = append(conds, fmt.Sprintf("travel_date = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, likePattern(filter.Search))
		conds = append(conds, fmt.Sprintf("(slot_key ILIKE $%d OR status ILIKE $%d)", len(args), len(args)))
	}

	query := selectBooking
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY travel_date ASC, created_at ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	bookings := make([]*entity.Booking, 0)
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bookings: %w", err)
	}

	return bookings, nil
}

// SeatCounts sums confirmed and pending passengers of one slot and date
func (r *bookingRepository) SeatCounts(ctx context.Context, slotKey, date string) (int, int, error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN status = 'confirmed' THEN passengers ELSE 0 END), 0) as confirmed_seats,
			COALESCE(SUM(CASE WHEN status <> 'confirmed' THEN passengers ELSE 0 END), 0) as pending_seats
		FROM bookings
		WHERE slot_key = $1 AND travel_date = $2
	`

	var confirmed, pending int
	if err := r.db.QueryRowContext(ctx, query, slotKey, date).Scan(&confirmed, &pending); err != nil {
		return 0, 0, fmt.Errorf("failed to count seats: %w", err)
	}
	return confirmed, pending, nil
}

func (r *bookingRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entity.ErrBookingNotFound
	}

	return nil
}

// DeleteAll removes every booking and returns how many were deleted
func (r *bookingRepository) DeleteAll(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM bookings`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete bookings: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// DeletePendingBefore deletes pending bookings dated before the given day
func (r *bookingRepository) DeletePendingBefore(ctx context.Context, date string) (int64, error) {
	query := `DELETE FROM bookings WHERE status = 'pending' AND travel_date < $1`
	result, err := r.db.ExecContext(ctx, query, date)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale pending bookings: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

func likePattern(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(s) + "%"
}
