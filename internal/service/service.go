package service

import (
	"context"
	"time"

	"github.com/ds124wfegd/busbooker/internal/entity"
)

// BookingService определяет операции с бронированиями мест в автобусе
type BookingService interface {
	// Основные операции
	CreateBooking(ctx context.Context, req *CreateBookingRequest) (*entity.Booking, error)
	ConfirmBooking(ctx context.Context, id string) (*entity.Booking, error)
	UpdateBooking(ctx context.Context, id string, patch *entity.BookingPatch) (*entity.Booking, error)
	GetBooking(ctx context.Context, id string) (*entity.Booking, error)
	ListBookings(ctx context.Context, filter entity.BookingFilter) ([]*entity.Booking, error)
	GetAvailability(ctx context.Context, slotKey, date string) (*entity.Availability, error)

	// Административные операции
	DeleteBooking(ctx context.Context, id string) error
	ResetBookings(ctx context.Context) (int64, error)
	PurgeStalePending(ctx context.Context) (int64, error)
}

// ReportService serves read-only aggregates and never applies booking rules.
type ReportService interface {
	GetStats(ctx context.Context) (*entity.BookingStats, error)
	GetTodayBookings(ctx context.Context) ([]*entity.Booking, error)
	GetDailySummary(ctx context.Context) ([]*entity.DailySummary, error)
	SlotsData() map[string][]string
}

// CreateBookingRequest представляет данные для бронирования мест
type CreateBookingRequest struct {
	SlotKey    string `json:"slotKey"`
	Date       string `json:"date"`
	Passengers int    `json:"passengers"`
}

// TaskPublisher интерфейс для публикации задач в очередь
type TaskPublisher interface {
	Publish(ctx context.Context, task *Task) error
}

// Task представляет задачу для очереди
type Task struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	ExecuteAt  time.Time              `json:"execute_at"`
	MaxRetries int                    `json:"max_retries"`
	Attempts   int                    `json:"attempts"`
}

// Константы типов задач
const (
	TaskTypeBookingCreated   = "booking_created"
	TaskTypeBookingConfirmed = "booking_confirmed"
)
