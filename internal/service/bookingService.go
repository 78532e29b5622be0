package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/ds124wfegd/busbooker/internal/database/postgres"
	"github.com/ds124wfegd/busbooker/internal/entity"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type bookingService struct {
	bookingRepo repository.BookingRepository
	engine      *CapacityEngine
	calendar    *Calendar
	queue       TaskPublisher
}

// NewBookingService создает новый экземпляр BookingService. queue may be nil.
func NewBookingService(
	bookingRepo repository.BookingRepository,
	engine *CapacityEngine,
	calendar *Calendar,
	queue TaskPublisher,
) BookingService {
	return &bookingService{
		bookingRepo: bookingRepo,
		engine:      engine,
		calendar:    calendar,
		queue:       queue,
	}
}

// CreateBooking validates the request and stores a pending booking
func (s *bookingService) CreateBooking(ctx context.Context, req *CreateBookingRequest) (*entity.Booking, error) {
	booking := &entity.Booking{
		SlotKey:    strings.TrimSpace(req.SlotKey),
		Date:       strings.TrimSpace(req.Date),
		Passengers: req.Passengers,
		Status:     entity.BookingStatusPending,
	}

	today := s.calendar.Today()

	// Cheap rejections first, the capacity rule needs the slot lock
	if err := s.engine.ValidateRequest(booking.SlotKey, booking.Date, booking.Passengers); err != nil {
		return nil, err
	}
	if err := s.engine.CheckSchedule(booking.SlotKey, booking.Date, today); err != nil {
		return nil, err
	}

	if err := s.bookingRepo.Create(ctx, booking, s.engine.AdmitNew(today)); err != nil {
		if entity.IsRejection(err) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating booking: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"slot_key":   booking.SlotKey,
		"date":       booking.Date,
		"passengers": booking.Passengers,
	}).Info("Booking created")

	s.publish(ctx, TaskTypeBookingCreated, booking)
	return booking, nil
}

// ConfirmBooking moves a pending booking to confirmed. Confirming twice is a no-op.
func (s *bookingService) ConfirmBooking(ctx context.Context, id string) (*entity.Booking, error) {
	if !validID(id) {
		return nil, entity.ErrBookingNotFound
	}

	confirmedNow := false
	booking, err := s.bookingRepo.Modify(ctx, id,
		func(b *entity.Booking) (bool, error) {
			if b.IsConfirmed() {
				return false, nil
			}
			b.Status = entity.BookingStatusConfirmed
			confirmedNow = true
			return true, nil
		},
		s.engine.AdmitConfirm(),
	)
	if err != nil {
		if entity.IsRejection(err) {
			logrus.WithFields(logrus.Fields{
				"booking_id": id,
				"reason":     err.Error(),
			}).Info("Booking confirmation rejected")
			return nil, err
		}
		return nil, fmt.Errorf("error confirming booking %s: %w", id, err)
	}

	if confirmedNow {
		logrus.WithFields(logrus.Fields{
			"booking_id": booking.ID,
			"slot_key":   booking.SlotKey,
			"date":       booking.Date,
			"passengers": booking.Passengers,
		}).Info("Booking confirmed")
		s.publish(ctx, TaskTypeBookingConfirmed, booking)
	}

	return booking, nil
}

// UpdateBooking applies a partial change. Slot or date changes re-run the
// schedule rules. A confirmed result re-runs the confirmation check, a pending
// booking that grows or moves re-runs the seat rule of a new booking.
func (s *bookingService) UpdateBooking(ctx context.Context, id string, patch *entity.BookingPatch) (*entity.Booking, error) {
	if !validID(id) {
		return nil, entity.ErrBookingNotFound
	}
	if patch.Empty() {
		return s.GetBooking(ctx, id)
	}

	today := s.calendar.Today()
	confirmedNow, seatsChanged := false, false

	booking, err := s.bookingRepo.Modify(ctx, id,
		func(b *entity.Booking) (bool, error) {
			before := *b
			changed, err := s.applyPatch(b, patch, today)
			confirmedNow = changed && !before.IsConfirmed() && b.IsConfirmed()
			seatsChanged = b.SlotKey != before.SlotKey || b.Date != before.Date || b.Passengers > before.Passengers
			return changed, err
		},
		func(b *entity.Booking, confirmedSeats int) error {
			if b.IsConfirmed() {
				return s.engine.CheckConfirm(b, confirmedSeats)
			}
			if seatsChanged {
				return s.engine.CheckSeats(b, confirmedSeats)
			}
			return nil
		},
	)
	if err != nil {
		if entity.IsRejection(err) {
			return nil, err
		}
		return nil, fmt.Errorf("error updating booking %s: %w", id, err)
	}

	logrus.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"slot_key":   booking.SlotKey,
		"date":       booking.Date,
		"passengers": booking.Passengers,
		"status":     booking.Status,
	}).Info("Booking updated")

	if confirmedNow {
		s.publish(ctx, TaskTypeBookingConfirmed, booking)
	}
	return booking, nil
}

func (s *bookingService) applyPatch(b *entity.Booking, patch *entity.BookingPatch, today string) (bool, error) {
	changed, scheduleChanged := false, false

	if patch.SlotKey != nil {
		slotKey := strings.TrimSpace(*patch.SlotKey)
		if slotKey == "" {
			return false, entity.Reject(entity.RejectInvalidInput, msgFieldsRequired)
		}
		if slotKey != b.SlotKey {
			b.SlotKey = slotKey
			changed, scheduleChanged = true, true
		}
	}

	if patch.Date != nil {
		date := strings.TrimSpace(*patch.Date)
		if date == "" {
			return false, entity.Reject(entity.RejectInvalidInput, msgFieldsRequired)
		}
		if _, err := parseDate(date); err != nil {
			return false, err
		}
		if date != b.Date {
			b.Date = date
			changed, scheduleChanged = true, true
		}
	}

	if patch.Passengers != nil {
		if err := ValidatePassengers(*patch.Passengers); err != nil {
			return false, err
		}
		if *patch.Passengers != b.Passengers {
			b.Passengers = *patch.Passengers
			changed = true
		}
	}

	if patch.Status != nil {
		status := *patch.Status
		if !status.Valid() {
			return false, entity.Reject(entity.RejectInvalidInput, msgInvalidStatus)
		}
		if b.IsConfirmed() && status == entity.BookingStatusPending {
			return false, entity.Reject(entity.RejectInvalidInput, msgStatusBackwards)
		}
		if status != b.Status {
			b.Status = status
			changed = true
		}
	}

	if scheduleChanged {
		if err := s.engine.CheckSchedule(b.SlotKey, b.Date, today); err != nil {
			return false, err
		}
	}
	return changed, nil
}

// GetBooking retrieves a booking by its ID
func (s *bookingService) GetBooking(ctx context.Context, id string) (*entity.Booking, error) {
	if !validID(id) {
		return nil, entity.ErrBookingNotFound
	}
	booking, err := s.bookingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error getting booking %s: %w", id, err)
	}
	return booking, nil
}

func (s *bookingService) ListBookings(ctx context.Context, filter entity.BookingFilter) ([]*entity.Booking, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, entity.Reject(entity.RejectInvalidInput,
			fmt.Sprintf("Invalid status %q. Use pending or confirmed.", filter.Status))
	}
	bookings, err := s.bookingRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error listing bookings: %w", err)
	}
	return bookings, nil
}

func (s *bookingService) GetAvailability(ctx context.Context, slotKey, date string) (*entity.Availability, error) {
	slotKey, date = strings.TrimSpace(slotKey), strings.TrimSpace(date)
	if slotKey == "" || date == "" {
		return nil, entity.Reject(entity.RejectInvalidInput, msgAvailabilityArgs)
	}
	if _, err := parseDate(date); err != nil {
		return nil, err
	}

	confirmed, pending, err := s.bookingRepo.SeatCounts(ctx, slotKey, date)
	if err != nil {
		return nil, fmt.Errorf("error counting seats: %w", err)
	}

	return &entity.Availability{
		SlotKey:        slotKey,
		Date:           date,
		Capacity:       s.engine.Capacity(),
		ConfirmedSeats: confirmed,
		PendingSeats:   pending,
		RemainingSeats: s.engine.Remaining(confirmed),
	}, nil
}

// DeleteBooking removes a booking whatever its status
func (s *bookingService) DeleteBooking(ctx context.Context, id string) error {
	if !validID(id) {
		return entity.ErrBookingNotFound
	}
	if err := s.bookingRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("error deleting booking %s: %w", id, err)
	}

	logrus.WithField("booking_id", id).Info("Booking deleted")
	return nil
}

func (s *bookingService) ResetBookings(ctx context.Context) (int64, error) {
	deleted, err := s.bookingRepo.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("error resetting bookings: %w", err)
	}

	logrus.WithField("deleted", deleted).Warn("All bookings were reset")
	return deleted, nil
}

// PurgeStalePending deletes pending bookings whose travel date has passed
func (s *bookingService) PurgeStalePending(ctx context.Context) (int64, error) {
	today := s.calendar.Today()
	deleted, err := s.bookingRepo.DeletePendingBefore(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("error purging stale pending bookings: %w", err)
	}
	return deleted, nil
}

// publish hands a lifecycle task to the queue. Failures are logged only.
func (s *bookingService) publish(ctx context.Context, taskType string, booking *entity.Booking) {
	if s.queue == nil {
		return
	}

	task := &Task{
		ID:   fmt.Sprintf("%s_%s_%d", taskType, booking.ID, time.Now().Unix()),
		Type: taskType,
		Data: map[string]interface{}{
			"booking_id": booking.ID,
			"slot_key":   booking.SlotKey,
			"date":       booking.Date,
			"passengers": booking.Passengers,
		},
		ExecuteAt:  time.Now().Add(2 * time.Second),
		MaxRetries: 3,
	}

	if err := s.queue.Publish(ctx, task); err != nil {
		logrus.WithFields(logrus.Fields{
			"booking_id": booking.ID,
			"task_type":  taskType,
		}).Errorf("Failed to publish task: %v", err)
	}
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
