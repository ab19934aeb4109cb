package service

import (
	"context"
	"errors"
	"time"

	"zonerev/internal/logger"
	"zonerev/internal/modules/aggregate"
	"zonerev/internal/modules/runs"
	"zonerev/internal/types"
)

// Runner is the part of Pipeline the scheduler drives.
type Runner interface {
	Run(ctx context.Context, g aggregate.Grain, window types.TimeRange) (runs.Report, error)
	Location() *time.Location
}

type SchedulerConfig struct {
	PollInterval   time.Duration
	HourlyLookback time.Duration
	DailyLookback  time.Duration
	DailyEnabled   bool
}

type Scheduler struct {
	runner Runner
	cfg    SchedulerConfig
	log    logger.Logger
	now    func() time.Time
}

func NewScheduler(runner Runner, cfg SchedulerConfig, log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Get()
	}
	return &Scheduler{runner: runner, cfg: cfg, log: log, now: time.Now}
}

// Run executes a pass immediately and then on every tick until ctx is done.
// Failed runs are logged; the next tick retries with a fresh window.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs the hourly pass and, when enabled, the daily pass.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now()
	loc := s.runner.Location()
	s.pass(ctx, aggregate.Hourly, aggregate.Hourly.Window(now, s.cfg.HourlyLookback, loc))
	if s.cfg.DailyEnabled {
		s.pass(ctx, aggregate.Daily, aggregate.Daily.Window(now, s.cfg.DailyLookback, loc))
	}
}

func (s *Scheduler) pass(ctx context.Context, g aggregate.Grain, window types.TimeRange) {
	if ctx.Err() != nil {
		return
	}
	_, err := s.runner.Run(ctx, g, window)
	switch {
	case err == nil:
	case errors.Is(err, runs.ErrLocked):
		// another replica owns this grain
	default:
		s.log.Error(ctx, "scheduled run failed",
			logger.String("grain", g.String()),
			logger.String("window", window.String()),
			logger.Error(err),
		)
	}
}
