package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/ds124wfegd/busbooker/internal/entity"

	"github.com/sirupsen/logrus"
)

// BookingReader is the part of the booking service the handlers need
type BookingReader interface {
	GetBooking(ctx context.Context, id string) (*entity.Booking, error)
}

// TelegramBot интерфейс для Telegram бота
type TelegramBot interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// TaskHandler обрабатывает задачи из очереди
type TaskHandler struct {
	bookings BookingReader
	bot      TelegramBot
	chatID   string
}

// NewTaskHandler создает новый обработчик задач. bot may be nil, in which
// case notifications are only logged.
func NewTaskHandler(bookings BookingReader, bot TelegramBot, chatID string) *TaskHandler {
	return &TaskHandler{
		bookings: bookings,
		bot:      bot,
		chatID:   chatID,
	}
}

// HandleTask обрабатывает задачу
func (h *TaskHandler) HandleTask(ctx context.Context, task *Task) error {
	logrus.WithFields(logrus.Fields{
		"task_id":   task.ID,
		"task_type": task.Type,
		"attempt":   task.Attempts,
	}).Debug("Handling task")

	switch task.Type {
	case TaskTypeBookingCreated, TaskTypeBookingConfirmed:
		return h.handleBookingNotification(ctx, task)
	default:
		return fmt.Errorf("invalid task type: %s", task.Type)
	}
}

func (h *TaskHandler) handleBookingNotification(ctx context.Context, task *Task) error {
	bookingID := task.GetString("booking_id")
	if bookingID == "" {
		return fmt.Errorf("invalid booking_id in task %s", task.ID)
	}

	booking, err := h.bookings.GetBooking(ctx, bookingID)
	if errors.Is(err, entity.ErrBookingNotFound) {
		// deleted or reset before the task ran
		logrus.WithField("booking_id", bookingID).Info("Booking is gone, notification skipped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load booking %s: %w", bookingID, err)
	}

	message := bookingMessage(task.Type, booking)

	if h.bot == nil || h.chatID == "" {
		logrus.WithField("booking_id", booking.ID).Info(message)
		return nil
	}

	if err := h.bot.SendMessage(ctx, h.chatID, message); err != nil {
		return fmt.Errorf("failed to send telegram notification: %w", err)
	}
	return nil
}

func bookingMessage(taskType TaskType, b *entity.Booking) string {
	title := "🚌 New booking request"
	if taskType == TaskTypeBookingConfirmed {
		title = "✅ Booking confirmed"
	}
	return fmt.Sprintf(
		"%s\n\n"+
			"Slot: %s\n"+
			"Date: %s\n"+
			"Passengers: %d\n"+
			"Status: %s\n"+
			"Booking: %s",
		title, b.SlotKey, b.Date, b.Passengers, b.Status, b.ID,
	)
}
