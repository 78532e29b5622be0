package entity

// BookingStats содержит общую статистику по бронированиям
type BookingStats struct {
	TotalBookings       int `json:"totalBookings"`
	TotalPassengers     int `json:"totalPassengers"`
	ConfirmedCount      int `json:"confirmedCount"`
	PendingCount        int `json:"pendingCount"`
	ConfirmedPassengers int `json:"confirmedPassengers"`
	PendingPassengers   int `json:"pendingPassengers"`
}

// DailySummary aggregates all bookings of one travel date.
type DailySummary struct {
	Date            string               `json:"date"`
	TotalPassengers int                  `json:"totalPassengers"`
	BookingsCount   int                  `json:"bookingsCount"`
	Details         []DailySummaryDetail `json:"details"`
}

type DailySummaryDetail struct {
	ID         string        `json:"id"`
	SlotKey    string        `json:"slotKey"`
	Passengers int           `json:"passengers"`
	Status     BookingStatus `json:"status"`
}

// Add folds one booking into the global statistics.
func (s *BookingStats) Add(b *Booking) {
	s.TotalBookings++
	s.TotalPassengers += b.Passengers
	if b.IsConfirmed() {
		s.ConfirmedCount++
		s.ConfirmedPassengers += b.Passengers
	} else {
		s.PendingCount++
		s.PendingPassengers += b.Passengers
	}
}
