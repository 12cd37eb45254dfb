// Package scheduler provides unified scheduler management using gocron v2.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"mingle/internal/shared/biztime"
	"mingle/internal/shared/logger"
)

// CycleRunner runs one full synchronization cycle over all eligible accounts.
type CycleRunner interface {
	RunCycle(ctx context.Context, now time.Time)
}

// Manager owns the gocron scheduler and the jobs registered on it.
type Manager struct {
	scheduler gocron.Scheduler
	logger    logger.Interface

	started   bool
	startedMu sync.RWMutex
}

// NewManager creates a Manager with a UTC-based gocron scheduler.
func NewManager(log logger.Interface) (*Manager, error) {
	s, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, err
	}

	return &Manager{
		scheduler: s,
		logger:    log,
	}, nil
}

// RegisterSyncJob registers the periodic calendar sync cycle. The job fires
// immediately on start and then every interval. Singleton mode guarantees a
// cycle never overlaps a still-running predecessor.
func (m *Manager) RegisterSyncJob(runner CycleRunner, interval, cycleTimeout time.Duration) error {
	_, err := m.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
			defer cancel()
			m.runSyncCycle(ctx, runner)
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("sync", "calendar"),
		gocron.WithName("calendar-sync"),
	)
	if err != nil {
		return err
	}

	m.logger.Infow("registered calendar sync job", "interval", interval)
	return nil
}

func (m *Manager) runSyncCycle(ctx context.Context, runner CycleRunner) {
	m.logger.Debugw("calendar sync cycle started")

	startTime := biztime.NowUTC()
	runner.RunCycle(ctx, startTime)

	if ctx.Err() != nil {
		m.logger.Warnw("calendar sync cycle interrupted",
			"duration", time.Since(startTime),
		)
		return
	}

	m.logger.Infow("calendar sync cycle completed",
		"duration", time.Since(startTime),
	)
}

// Start starts the scheduler and all registered jobs.
func (m *Manager) Start() {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if m.started {
		return
	}

	m.scheduler.Start()
	m.started = true
	m.logger.Infow("scheduler started", "job_count", len(m.scheduler.Jobs()))
}

// Stop gracefully stops the scheduler, waiting for running jobs to finish.
func (m *Manager) Stop() error {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if !m.started {
		return nil
	}

	err := m.scheduler.Shutdown()
	m.started = false

	if err != nil {
		m.logger.Errorw("scheduler shutdown with error", "error", err)
		return err
	}

	m.logger.Infow("scheduler stopped")
	return nil
}

// IsStarted reports whether the scheduler is running.
func (m *Manager) IsStarted() bool {
	m.startedMu.RLock()
	defer m.startedMu.RUnlock()
	return m.started
}
