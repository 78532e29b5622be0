package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// StalePendingPurger is implemented by service.BookingService
type StalePendingPurger interface {
	PurgeStalePending(ctx context.Context) (int64, error)
}

// BookingCleanupWorker deletes pending bookings whose travel date has passed
type BookingCleanupWorker struct {
	bookings StalePendingPurger
	schedule string
	timeout  time.Duration
	cron     *cron.Cron
}

func NewBookingCleanupWorker(bookings StalePendingPurger, schedule string) *BookingCleanupWorker {
	if schedule == "" {
		schedule = "@every 30m"
	}
	return &BookingCleanupWorker{
		bookings: bookings,
		schedule: schedule,
		timeout:  time.Minute,
	}
}

// Start registers the cleanup job and blocks until ctx is cancelled. A job that
// is still running at that point is allowed to finish.
func (w *BookingCleanupWorker) Start(ctx context.Context) error {
	logger := cron.PrintfLogger(logrus.StandardLogger())
	w.cron = cron.New(cron.WithChain(
		cron.Recover(logger),
		cron.SkipIfStillRunning(logger),
	))

	if _, err := w.cron.AddFunc(w.schedule, func() { w.cleanupStalePending(ctx) }); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", w.schedule, err)
	}

	w.cron.Start()
	logrus.WithField("schedule", w.schedule).Info("Booking cleanup worker started")

	<-ctx.Done()
	<-w.cron.Stop().Done()
	logrus.Info("Booking cleanup worker stopped")
	return nil
}

func (w *BookingCleanupWorker) cleanupStalePending(ctx context.Context) {
	// a run that started just before shutdown still gets to finish
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
	defer cancel()

	deleted, err := w.bookings.PurgeStalePending(ctx)
	if err != nil {
		logrus.Errorf("Failed to purge stale pending bookings: %v", err)
		return
	}

	if deleted == 0 {
		logrus.Debug("No stale pending bookings found for cleanup")
		return
	}
	logrus.WithField("deleted", deleted).Info("Stale pending bookings purged")
}
