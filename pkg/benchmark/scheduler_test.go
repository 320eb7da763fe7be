package benchmark

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icvsb/icvsb/pkg/models"
)

func TestSchedulerStartStop(t *testing.T) {
	client := testClient(t, models.SeverityNone, DefaultConfig())
	scheduler := NewScheduler(client, "0 0 * * 0", testLogger())

	sharedStop := make(chan struct{})
	require.NoError(t, scheduler.Start(sharedStop))
	assert.True(t, scheduler.IsRunning())

	assert.ErrorIs(t, scheduler.Start(sharedStop), ErrSchedulerAlreadyRunning)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, scheduler.Stop(ctx))
	assert.False(t, scheduler.IsRunning())

	// stopping twice is a no-op
	require.NoError(t, scheduler.Stop(ctx))
}

func TestSchedulerStopsOnSharedSignal(t *testing.T) {
	client := testClient(t, models.SeverityNone, DefaultConfig())
	scheduler := NewScheduler(client, "0 0 * * 0", testLogger())

	sharedStop := make(chan struct{})
	require.NoError(t, scheduler.Start(sharedStop))

	close(sharedStop)

	select {
	case <-scheduler.stoppedC:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on the shared signal")
	}
}

func TestSchedulerToleratesBadCronLine(t *testing.T) {
	client := testClient(t, models.SeverityNone, DefaultConfig())
	scheduler := NewScheduler(client, "definitely not cron", testLogger())

	sharedStop := make(chan struct{})
	require.NoError(t, scheduler.Start(sharedStop))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, scheduler.Stop(ctx))
}
