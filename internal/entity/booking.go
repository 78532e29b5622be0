package entity

import (
	"time"
)

// DefaultCapacity is the number of seats on one bus.
const DefaultCapacity = 45

// DateLayout is the calendar date format used for travel dates.
const DateLayout = "2006-01-02"

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
)

func (s BookingStatus) Valid() bool {
	return s == BookingStatusPending || s == BookingStatusConfirmed
}

type Booking struct {
	ID         string        `json:"id" db:"id"`
	SlotKey    string        `json:"slotKey" db:"slot_key"`
	Date       string        `json:"date" db:"travel_date"`
	Passengers int           `json:"passengers" db:"passengers"`
	Status     BookingStatus `json:"status" db:"status"`
	CreatedAt  time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time     `json:"updatedAt" db:"updated_at"`
}

func (b *Booking) IsConfirmed() bool {
	return b.Status == BookingStatusConfirmed
}

// Clone returns a detached copy of the booking.
func (b *Booking) Clone() *Booking {
	c := *b
	return &c
}

// BookingFilter narrows a booking listing. Empty fields match everything.
type BookingFilter struct {
	Status BookingStatus
	Date   string
	Search string
}

// BookingPatch carries the fields of a generic update. Nil fields are left as is.
type BookingPatch struct {
	SlotKey    *string        `json:"slotKey"`
	Date       *string        `json:"date"`
	Passengers *int           `json:"passengers"`
	Status     *BookingStatus `json:"status"`
}

func (p *BookingPatch) Empty() bool {
	return p == nil || (p.SlotKey == nil && p.Date == nil && p.Passengers == nil && p.Status == nil)
}

// Availability describes the seat situation of one (slot, date) pair.
type Availability struct {
	SlotKey        string `json:"slotKey"`
	Date           string `json:"date"`
	Capacity       int    `json:"capacity"`
	ConfirmedSeats int    `json:"confirmedSeats"`
	PendingSeats   int    `json:"pendingSeats"`
	RemainingSeats int    `json:"remainingSeats"`
}
