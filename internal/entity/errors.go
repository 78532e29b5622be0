package entity

import "errors"

var (
	// Booking errors
	ErrBookingNotFound = errors.New("booking not found")

	// General errors
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized access")
)

// RejectReason names the rule that turned a request down.
type RejectReason string

const (
	RejectInvalidInput  RejectReason = "invalid_input"
	RejectPastDate      RejectReason = "past_date"
	RejectRestrictedDay RejectReason = "restricted_day"
	RejectCapacity      RejectReason = "capacity"
	RejectBusFull       RejectReason = "bus_full"
)

// RejectionError is returned when a booking request or transition breaks a
// booking rule. The message is meant for the rider.
type RejectionError struct {
	Reason  RejectReason
	Message string
}

func (e *RejectionError) Error() string {
	return e.Message
}

// Is lets errors.Is(err, ErrInvalidInput) hold for input rejections.
func (e *RejectionError) Is(target error) bool {
	return target == ErrInvalidInput && e.Reason == RejectInvalidInput
}

func Reject(reason RejectReason, message string) *RejectionError {
	return &RejectionError{Reason: reason, Message: message}
}

// AsRejection extracts a RejectionError from the chain.
func AsRejection(err error) (*RejectionError, bool) {
	var target *RejectionError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

func IsRejection(err error) bool {
	_, ok := AsRejection(err)
	return ok
}
