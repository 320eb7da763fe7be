package benchmark

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/robfig/cron/v3"

	"github.com/icvsb/icvsb/pkg/metrics"
)

var (
	// ErrSchedulerStopped is returned when the scheduler is stopped
	ErrSchedulerStopped = errors.New("scheduler stopped")

	// ErrSchedulerAlreadyRunning is returned when trying to start an already running scheduler
	ErrSchedulerAlreadyRunning = errors.New("scheduler already running")
)

// Scheduler drives one client's scheduled re-benchmarks. Each client
// owns one scheduler goroutine; all of them stop through the shared
// stop signal the registry closes on shutdown.
type Scheduler struct {
	client   *Client
	schedule cron.Schedule
	logger   ectologger.Logger

	stopCh   chan struct{}
	stoppedC chan struct{}
	running  bool
	mu       sync.RWMutex
}

// NewScheduler parses the cron line and prepares the tick loop. The
// expression was validated at client creation; a parse failure here
// falls back to a nil schedule and the loop never fires.
func NewScheduler(client *Client, cronLine string, logger ectologger.Logger) *Scheduler {
	schedule, err := cron.ParseStandard(cronLine)
	if err != nil {
		logger.WithError(err).Warnf("invalid cron line %q; scheduled re-benchmarks disabled", cronLine)
		schedule = nil
	}

	return &Scheduler{
		client:   client,
		schedule: schedule,
		logger:   logger,
		stopCh:   make(chan struct{}),
		stoppedC: make(chan struct{}),
	}
}

// Start starts the tick loop. stop is the process-wide shutdown
// signal shared by every client's scheduler.
func (s *Scheduler) Start(stop <-chan struct{}) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	go s.tickLoop(stop)

	s.logger.WithField("benchmarkClientId", s.client.ID()).Debug("scheduler started")
	return nil
}

// Stop stops this scheduler only.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)

	select {
	case <-s.stoppedC:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) tickLoop(stop <-chan struct{}) {
	defer close(s.stoppedC)

	if s.schedule == nil {
		<-s.stopOrShared(stop)
		return
	}

	for {
		next := s.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-s.stopCh:
			timer.Stop()
			return
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
			s.tick()
		}
	}
}

// stopOrShared collapses the two stop signals into one channel for the
// no-schedule case.
func (s *Scheduler) stopOrShared(stop <-chan struct{}) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case <-s.stopCh:
		case <-stop:
		}
	}()
	return done
}

// tick runs one scheduled benchmark. Failures are logged and retried
// on the next tick; they never crash the client.
func (s *Scheduler) tick() {
	metrics.SchedulerTicksTotal.Inc()

	s.logger.WithField("benchmarkClientId", s.client.ID()).Info("scheduled re-benchmark starting")
	if err := s.client.Benchmark(context.Background()); err != nil {
		s.logger.WithError(err).WithField("benchmarkClientId", s.client.ID()).
			Error("scheduled re-benchmark failed; will retry on next tick")
	}
}
