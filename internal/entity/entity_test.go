package entity

import (
	"errors"
	"fmt"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogRestriction(t *testing.T) {
	catalog := DefaultCatalog()

	tests := []struct {
		slot    string
		day     time.Weekday
		blocked bool
	}{
		{slot: "Mosque Slot 2", day: time.Saturday, blocked: true},
		{slot: "Mosque Slot 2", day: time.Friday, blocked: false},
		{slot: "the MOSQUE run", day: time.Monday, blocked: true},
		{slot: "Evening Slot 1", day: time.Saturday, blocked: false},
		{slot: "", day: time.Saturday, blocked: false},
	}

	for _, tt := range tests {
		t.Run(tt.slot+" "+tt.day.String(), func(t *testing.T) {
			category, ok := catalog.Restriction(tt.slot, tt.day)
			assert.Equal(t, tt.blocked, ok)
			if ok {
				assert.Equal(t, "MOSQUE", category.Name)
			}
		})
	}
}

func TestCatalogRestriction_EveryMatchingCategoryApplies(t *testing.T) {
	catalog := NewCatalog([]SlotCategory{
		{Name: "MOSQUE", Days: []time.Weekday{time.Thursday, time.Friday}},
		{Name: "LAB", Days: []time.Weekday{time.Monday, time.Friday}},
	})

	_, blocked := catalog.Restriction("Mosque Lab Shuttle", time.Friday)
	assert.False(t, blocked)

	category, blocked := catalog.Restriction("Mosque Lab Shuttle", time.Thursday)
	require.True(t, blocked)
	assert.Equal(t, "LAB", category.Name)

	category, blocked = catalog.Restriction("Mosque Lab Shuttle", time.Monday)
	require.True(t, blocked)
	assert.Equal(t, "MOSQUE", category.Name)
}

func TestRestrictionMessage_NonASCIIName(t *testing.T) {
	category := SlotCategory{Name: "ÉCOLE", Days: []time.Weekday{time.Monday}}
	msg := category.RestrictionMessage()
	assert.True(t, utf8.ValidString(msg))
	assert.Equal(t, "École slots are only available on Mondays.", msg)
}

func TestSlotsDataIsACopy(t *testing.T) {
	catalog := DefaultCatalog()
	data := catalog.SlotsData()
	require.Len(t, data["EVENING"], 4)

	data["EVENING"][0] = "changed"
	assert.Equal(t, "Evening Slot 1", catalog.SlotsData()["EVENING"][0])
}

func TestParseWeekday(t *testing.T) {
	d, err := ParseWeekday(" FRIDAY ")
	require.NoError(t, err)
	assert.Equal(t, time.Friday, d)

	d, err = ParseWeekday("tue")
	require.NoError(t, err)
	assert.Equal(t, time.Tuesday, d)

	_, err = ParseWeekday("funday")
	assert.Error(t, err)
}

func TestRejectionError(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", Reject(RejectInvalidInput, "bad"))

	rejection, ok := AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, "bad", rejection.Message)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	full := Reject(RejectBusFull, "full")
	assert.False(t, errors.Is(full, ErrInvalidInput))
	assert.False(t, IsRejection(ErrBookingNotFound))
}

func TestBookingStatsAdd(t *testing.T) {
	var stats BookingStats
	stats.Add(&Booking{Passengers: 3, Status: BookingStatusConfirmed})
	stats.Add(&Booking{Passengers: 2, Status: BookingStatusPending})

	assert.Equal(t, BookingStats{
		TotalBookings:       2,
		TotalPassengers:     5,
		ConfirmedCount:      1,
		PendingCount:        1,
		ConfirmedPassengers: 3,
		PendingPassengers:   2,
	}, stats)
}

func TestBookingPatchEmpty(t *testing.T) {
	var nilPatch *BookingPatch
	assert.True(t, nilPatch.Empty())
	assert.True(t, (&BookingPatch{}).Empty())

	n := 2
	assert.False(t, (&BookingPatch{Passengers: &n}).Empty())
}
