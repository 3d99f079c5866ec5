package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/saferoute/saferoute/internal/crime"
)

// SnapshotSource looks up a crime snapshot, populating the cache on a miss.
type SnapshotSource interface {
	ScoreAt(ctx context.Context, lat, lng float64) (*crime.Snapshot, error)
}

// RefreshJob keeps crime snapshots warm for the configured targets.
type RefreshJob struct {
	config RefreshConfig
	logger zerolog.Logger
	crime  SnapshotSource

	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalRefreshes    int64
	SuccessfulRefresh int64
	FailedRefreshes   int64
	OutOfCoverage     int64

	// Timings
	LastRefreshAt       time.Time
	LastRefreshDuration time.Duration
	TotalDuration       time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config RefreshConfig
	Logger zerolog.Logger
	Crime  SnapshotSource
}

// NewRefreshJob creates a new refresh job.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	config := cfg.Config
	defaults := DefaultRefreshConfig()
	if len(config.Targets) == 0 {
		config.Targets = defaults.Targets
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	return &RefreshJob{
		config:  config,
		logger:  cfg.Logger,
		crime:   cfg.Crime,
		metrics: &RefreshMetrics{},
	}
}

// RefreshResult contains the result of a refresh run.
type RefreshResult struct {
	StartTime     time.Time
	EndTime       time.Time
	Duration      time.Duration
	TotalPoints   int
	Successful    int
	Failed        int
	Skipped       int
	OutOfCoverage int
	Errors        []RefreshError
}

// RefreshError represents a failed point lookup.
type RefreshError struct {
	Point Point
	Error string
}

type pointResult struct {
	point         Point
	success       bool
	outOfCoverage bool
	err           error
}

// Run looks up every configured point once. Failures are collected, not
// propagated; a cancelled context skips the remaining points.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	startTime := time.Now()
	points := j.config.AllPoints()
	result := &RefreshResult{
		StartTime:   startTime,
		TotalPoints: len(points),
	}

	j.logger.Info().
		Int("total_points", result.TotalPoints).
		Int("concurrency", j.config.Concurrency).
		Msg("starting crime refresh job")

	results := make([]*pointResult, len(points))

	var g errgroup.Group
	g.SetLimit(j.config.Concurrency)
	for i, p := range points {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			pr := j.refreshPoint(ctx, p)
			results[i] = &pr
			return nil
		})
	}
	_ = g.Wait()

	for _, pr := range results {
		switch {
		case pr == nil:
			result.Skipped++
		case pr.success:
			result.Successful++
			if pr.outOfCoverage {
				result.OutOfCoverage++
			}
		default:
			result.Failed++
			result.Errors = append(result.Errors, RefreshError{
				Point: pr.point,
				Error: pr.err.Error(),
			})
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Int("out_of_coverage", result.OutOfCoverage).
		Msg("crime refresh job completed")

	return result
}

func (j *RefreshJob) refreshPoint(ctx context.Context, point Point) pointResult {
	result := pointResult{point: point}

	if j.crime == nil {
		result.success = true
		return result
	}

	pointCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	snap, err := j.crime.ScoreAt(pointCtx, point.Lat, point.Lng)
	if err != nil {
		j.logger.Warn().Err(err).
			Float64("lat", point.Lat).
			Float64("lng", point.Lng).
			Msg("crime refresh failed for point")
		result.err = err
		return result
	}

	result.success = true
	result.outOfCoverage = snap != nil && snap.OutOfCoverage
	return result
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRefreshes++
	j.metrics.SuccessfulRefresh += int64(result.Successful)
	j.metrics.FailedRefreshes += int64(result.Failed)
	j.metrics.OutOfCoverage += int64(result.OutOfCoverage)
	j.metrics.LastRefreshAt = result.EndTime
	j.metrics.LastRefreshDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRefreshes:      j.metrics.TotalRefreshes,
		SuccessfulRefresh:   j.metrics.SuccessfulRefresh,
		FailedRefreshes:     j.metrics.FailedRefreshes,
		OutOfCoverage:       j.metrics.OutOfCoverage,
		LastRefreshAt:       j.metrics.LastRefreshAt,
		LastRefreshDuration: j.metrics.LastRefreshDuration,
		TotalDuration:       j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *RefreshJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_refreshes":       m.TotalRefreshes,
		"successful_refreshes":  m.SuccessfulRefresh,
		"failed_refreshes":      m.FailedRefreshes,
		"out_of_coverage":       m.OutOfCoverage,
		"last_refresh_at":       m.LastRefreshAt,
		"last_refresh_duration": m.LastRefreshDuration.String(),
		"total_duration":        m.TotalDuration.String(),
	}
}
