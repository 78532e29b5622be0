package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	repository "github.com/ds124wfegd/busbooker/internal/database/postgres"
	"github.com/ds124wfegd/busbooker/internal/entity"
)

const (
	msgFieldsRequired   = "All fields (slotKey, date, passengers) are required."
	msgPassengersPos    = "Passengers must be a positive integer."
	msgInvalidDate      = "Date must be a valid calendar date (YYYY-MM-DD)."
	msgPastDate         = "Cannot book for a past date."
	msgInvalidStatus    = "Status must be either pending or confirmed."
	msgStatusBackwards  = "A confirmed booking cannot be moved back to pending."
	msgAvailabilityArgs = "slotKey and date query parameters are required."
)

// maxPassengers matches the INTEGER passengers column.
const maxPassengers = math.MaxInt32

// CapacityEngine holds the booking rules: request validation, the date
// schedule and the per-bus seat limit. It keeps no state besides its
// configuration and never touches storage.
type CapacityEngine struct {
	capacity int
	catalog  *entity.Catalog
}

func NewCapacityEngine(capacity int, catalog *entity.Catalog) *CapacityEngine {
	if capacity <= 0 {
		capacity = entity.DefaultCapacity
	}
	if catalog == nil {
		catalog = entity.DefaultCatalog()
	}
	return &CapacityEngine{capacity: capacity, catalog: catalog}
}

func (e *CapacityEngine) Capacity() int {
	return e.capacity
}

func (e *CapacityEngine) Catalog() *entity.Catalog {
	return e.catalog
}

// ValidateRequest checks presence and shape of a booking request.
func (e *CapacityEngine) ValidateRequest(slotKey, date string, passengers int) error {
	if strings.TrimSpace(slotKey) == "" || strings.TrimSpace(date) == "" || passengers == 0 {
		return entity.Reject(entity.RejectInvalidInput, msgFieldsRequired)
	}
	if err := ValidatePassengers(passengers); err != nil {
		return err
	}
	if _, err := parseDate(date); err != nil {
		return err
	}
	return nil
}

// ValidatePassengers rejects counts that are not positive or do not fit storage.
func ValidatePassengers(passengers int) error {
	if passengers <= 0 || passengers > maxPassengers {
		return entity.Reject(entity.RejectInvalidInput, msgPassengersPos)
	}
	return nil
}

// CheckSchedule applies the past-date rule and then the restricted-day rule.
func (e *CapacityEngine) CheckSchedule(slotKey, date, today string) error {
	day, err := parseDate(date)
	if err != nil {
		return err
	}

	// ISO dates compare like calendar dates
	if date < today {
		return entity.Reject(entity.RejectPastDate, msgPastDate)
	}

	if category, ok := e.catalog.Restriction(slotKey, day.Weekday()); ok {
		return entity.Reject(entity.RejectRestrictedDay, category.RestrictionMessage())
	}
	return nil
}

// Evaluate runs the full rule chain for a new booking. confirmedSeats is the
// confirmed passenger sum on the same slot and date.
func (e *CapacityEngine) Evaluate(booking *entity.Booking, today string, confirmedSeats int) error {
	if err := e.ValidateRequest(booking.SlotKey, booking.Date, booking.Passengers); err != nil {
		return err
	}
	if err := e.CheckSchedule(booking.SlotKey, booking.Date, today); err != nil {
		return err
	}
	return e.CheckSeats(booking, confirmedSeats)
}

// CheckSeats is the seat rule a new booking faces: its passengers must fit in
// what the confirmed bookings leave free.
func (e *CapacityEngine) CheckSeats(booking *entity.Booking, confirmedSeats int) error {
	if remaining := e.Remaining(confirmedSeats); booking.Passengers > remaining {
		return entity.Reject(entity.RejectCapacity,
			fmt.Sprintf("Bus is full. Only %d seats remaining.", remaining))
	}
	return nil
}

// CheckConfirm rejects a confirmation that would push the slot past capacity.
// confirmedSeats must not include the booking itself.
func (e *CapacityEngine) CheckConfirm(booking *entity.Booking, confirmedSeats int) error {
	if booking.Passengers > e.Remaining(confirmedSeats) {
		return entity.Reject(entity.RejectBusFull, fmt.Sprintf(
			"Bus is full. Cannot confirm this booking: %d seats already confirmed, adding %d would exceed the capacity of %d.",
			confirmedSeats, booking.Passengers, e.capacity))
	}
	return nil
}

// AdmitNew binds Evaluate to a store write for the given day.
func (e *CapacityEngine) AdmitNew(today string) repository.AdmitFunc {
	return func(booking *entity.Booking, confirmedSeats int) error {
		return e.Evaluate(booking, today, confirmedSeats)
	}
}

func (e *CapacityEngine) AdmitConfirm() repository.AdmitFunc {
	return e.CheckConfirm
}

// Remaining is the number of seats still free once confirmed seats are taken.
func (e *CapacityEngine) Remaining(confirmedSeats int) int {
	if confirmedSeats >= e.capacity {
		return 0
	}
	return e.capacity - confirmedSeats
}

func parseDate(date string) (time.Time, error) {
	day, err := time.Parse(entity.DateLayout, date)
	if err != nil {
		return time.Time{}, entity.Reject(entity.RejectInvalidInput, msgInvalidDate)
	}
	return day, nil
}

// ParsePassengers reads a passenger count from its JSON text. Whole-valued
// numbers such as "3.0" are accepted. An empty value yields zero, which
// ValidateRequest reports as missing.
func ParsePassengers(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n > maxPassengers || n < -maxPassengers {
			return 0, entity.Reject(entity.RejectInvalidInput, msgPassengersPos)
		}
		return int(n), nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > maxPassengers {
		return 0, entity.Reject(entity.RejectInvalidInput, msgPassengersPos)
	}
	return int(f), nil
}
