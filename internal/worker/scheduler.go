package worker

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultSchedule runs the crime refresh four times a day.
const DefaultSchedule = "@every 6h"

// Scheduler triggers the crime refresh on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	jobs     *Jobs
	schedule string
	logger   zerolog.Logger
}

// NewScheduler parses schedule and registers the refresh job. An overlapping
// run is skipped rather than queued.
func NewScheduler(ctx context.Context, schedule string, jobs *Jobs, logger zerolog.Logger) (*Scheduler, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	s := &Scheduler{
		cron:     c,
		jobs:     jobs,
		schedule: schedule,
		logger:   logger,
	}

	if _, err := c.AddFunc(schedule, func() { s.run(ctx) }); err != nil {
		return nil, fmt.Errorf("scheduling crime refresh %q: %w", schedule, err)
	}
	return s, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.logger.Info().Str("schedule", s.schedule).Msg("starting crime refresh scheduler")
	s.cron.Start()
}

// Stop stops scheduling and returns a context that is done once a running
// job finishes.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := s.jobs.CrimeRefresh(ctx); err != nil {
		s.logger.Error().Err(err).Msg("scheduled crime refresh failed")
	}
}
