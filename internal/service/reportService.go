package service

import (
	"context"
	"fmt"

	repository "github.com/ds124wfegd/busbooker/internal/database/postgres"
	"github.com/ds124wfegd/busbooker/internal/entity"
)

type reportService struct {
	bookingRepo repository.BookingRepository
	calendar    *Calendar
	catalog     *entity.Catalog
}

func NewReportService(bookingRepo repository.BookingRepository, calendar *Calendar, catalog *entity.Catalog) ReportService {
	return &reportService{
		bookingRepo: bookingRepo,
		calendar:    calendar,
		catalog:     catalog,
	}
}

// GetStats folds every booking into global counters
func (s *reportService) GetStats(ctx context.Context) (*entity.BookingStats, error) {
	bookings, err := s.bookingRepo.List(ctx, entity.BookingFilter{})
	if err != nil {
		return nil, fmt.Errorf("error getting booking stats: %w", err)
	}

	stats := &entity.BookingStats{}
	for _, b := range bookings {
		stats.Add(b)
	}
	return stats, nil
}

func (s *reportService) GetTodayBookings(ctx context.Context) ([]*entity.Booking, error) {
	bookings, err := s.bookingRepo.List(ctx, entity.BookingFilter{Date: s.calendar.Today()})
	if err != nil {
		return nil, fmt.Errorf("error getting today's bookings: %w", err)
	}
	return bookings, nil
}

// GetDailySummary groups bookings per travel date. The store already orders
// them by date and creation time, so details keep creation order.
func (s *reportService) GetDailySummary(ctx context.Context) ([]*entity.DailySummary, error) {
	bookings, err := s.bookingRepo.List(ctx, entity.BookingFilter{})
	if err != nil {
		return nil, fmt.Errorf("error getting daily summary: %w", err)
	}

	summaries := make([]*entity.DailySummary, 0)
	var current *entity.DailySummary
	for _, b := range bookings {
		if current == nil || current.Date != b.Date {
			current = &entity.DailySummary{
				Date:    b.Date,
				Details: make([]entity.DailySummaryDetail, 0),
			}
			summaries = append(summaries, current)
		}
		current.TotalPassengers += b.Passengers
		current.BookingsCount++
		current.Details = append(current.Details, entity.DailySummaryDetail{
			ID:         b.ID,
			SlotKey:    b.SlotKey,
			Passengers: b.Passengers,
			Status:     b.Status,
		})
	}
	return summaries, nil
}

func (s *reportService) SlotsData() map[string][]string {
	return s.catalog.SlotsData()
}
