package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingPurger struct {
	calls atomic.Int32
	err   error
}

func (p *countingPurger) PurgeStalePending(context.Context) (int64, error) {
	p.calls.Add(1)
	return 2, p.err
}

func TestStart_RunsOnScheduleAndStops(t *testing.T) {
	purger := &countingPurger{}
	w := NewBookingCleanupWorker(purger, "@every 1s")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	require.Eventually(t, func() bool { return purger.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestStart_InvalidSchedule(t *testing.T) {
	w := NewBookingCleanupWorker(&countingPurger{}, "every now and then")
	err := w.Start(context.Background())
	assert.ErrorContains(t, err, "invalid cleanup schedule")
}

func TestCleanupStalePending_ErrorIsLogged(t *testing.T) {
	purger := &countingPurger{err: errors.New("db down")}
	w := NewBookingCleanupWorker(purger, "")

	w.cleanupStalePending(context.Background())
	assert.Equal(t, int32(1), purger.calls.Load())
}
