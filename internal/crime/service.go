package crime

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/saferoute/saferoute/internal/cache"
	"github.com/saferoute/saferoute/internal/telemetry"
)

const (
	// DefaultRadius is the search radius in metres.
	DefaultRadius = 2000.0

	// MaxRadius bounds caller-supplied radii; the feed rejects very large areas.
	MaxRadius = 10000.0

	// DefaultTimeout bounds a single feed call.
	DefaultTimeout = 10 * time.Second

	lastUpdatedKey = "crime:last-updated"
)

// ServiceConfig holds configuration for the crime service.
type ServiceConfig struct {
	// Feed is the crime data provider.
	Feed Feed

	// Store caches snapshots. If nil, an in-memory store is used.
	Store cache.Store

	// Logger for service operations.
	Logger zerolog.Logger

	// Month pins the data month (YYYY-MM). If empty, the feed's latest month is used.
	Month string

	// Radius is the default search radius in metres (default: 2000).
	Radius float64

	// Timeout bounds each feed call (default: 10 seconds).
	Timeout time.Duration

	// CacheTTL is how long a snapshot is served without refetching (default: 6 hours).
	CacheTTL time.Duration

	// StaleIfErrorTTL allows serving stale snapshots on feed errors (default: 24 hours).
	StaleIfErrorTTL time.Duration

	// CacheGridSize is the size of cache grid cells in degrees (default: 0.005 ~ 550m).
	// Lookups are snapped to the centre of their cell.
	CacheGridSize float64

	// Metrics is optional.
	Metrics *telemetry.Metrics
}

// Service provides crime snapshots with caching.
type Service struct {
	feed            Feed
	store           cache.Store
	logger          zerolog.Logger
	month           string
	radius          float64
	timeout         time.Duration
	cacheTTL        time.Duration
	staleIfErrorTTL time.Duration
	cacheGridSize   float64
	metrics         *telemetry.Metrics

	group singleflight.Group
	now   func() time.Time
}

// cachedSnapshot is the stored form of a snapshot.
type cachedSnapshot struct {
	Snapshot  *Snapshot `json:"snapshot"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// NewService creates a new crime service.
func NewService(cfg ServiceConfig) *Service {
	store := cfg.Store
	if store == nil {
		store = cache.NewMemory()
	}

	radius := cfg.Radius
	if radius <= 0 {
		radius = DefaultRadius
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 6 * time.Hour
	}

	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = 24 * time.Hour
	}
	if staleIfErrorTTL < cacheTTL {
		staleIfErrorTTL = cacheTTL
	}

	cacheGridSize := cfg.CacheGridSize
	if cacheGridSize == 0 {
		cacheGridSize = 0.005
	}

	return &Service{
		feed:            cfg.Feed,
		store:           store,
		logger:          cfg.Logger,
		month:           cfg.Month,
		radius:          radius,
		timeout:         timeout,
		cacheTTL:        cacheTTL,
		staleIfErrorTTL: staleIfErrorTTL,
		cacheGridSize:   cacheGridSize,
		metrics:         cfg.Metrics,
		now:             time.Now,
	}
}

// ScoreAt returns the snapshot for (lat, lng) using the default radius.
func (s *Service) ScoreAt(ctx context.Context, lat, lng float64) (*Snapshot, error) {
	return s.SnapshotAt(ctx, lat, lng, s.radius)
}

// SnapshotAt returns the crime snapshot within radius metres of (lat, lng).
// Areas outside coverage yield a zero snapshot, not an error.
func (s *Service) SnapshotAt(ctx context.Context, lat, lng, radius float64) (*Snapshot, error) {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 || math.IsNaN(lat) || math.IsNaN(lng) {
		return nil, &Error{
			Provider: s.feed.Name(),
			Code:     "INVALID_COORDINATES",
			Message:  fmt.Sprintf("coordinates (%f, %f) out of range", lat, lng),
			Err:      ErrInvalidCoordinates,
		}
	}
	if radius <= 0 {
		radius = s.radius
	}
	radius = math.Min(radius, MaxRadius)

	month, lastUpdated, err := s.resolveMonth(ctx)
	if err != nil {
		return nil, err
	}

	cellLat, cellLng := s.snap(lat), s.snap(lng)
	key := s.cacheKey(month, radius, cellLat, cellLng)

	cached, cacheErr := cache.GetJSON[cachedSnapshot](ctx, s.store, key)
	if cacheErr == nil && cached.Snapshot != nil && s.now().Before(cached.FetchedAt.Add(s.cacheTTL)) {
		s.metrics.CacheLookup(ctx, "crime", true)
		return cached.Snapshot, nil
	}
	if cacheErr != nil && !errors.Is(cacheErr, cache.ErrMiss) {
		s.logger.Warn().Err(cacheErr).Str("cache_key", key).Msg("crime cache read failed")
	}
	s.metrics.CacheLookup(ctx, "crime", false)

	v, err := s.shared(ctx, key, func(ctx context.Context) (any, error) {
		return s.fetch(ctx, key, cellLat, cellLng, radius, month, lastUpdated)
	})
	if err != nil {
		// stale-if-error
		if cacheErr == nil && cached.Snapshot != nil && s.now().Before(cached.FetchedAt.Add(s.staleIfErrorTTL)) {
			s.logger.Warn().
				Err(err).
				Time("fetched_at", cached.FetchedAt).
				Str("cache_key", key).
				Msg("serving stale crime snapshot due to feed error")
			return cached.Snapshot, nil
		}
		return nil, err
	}
	return v.(*Snapshot), nil
}

// fetch queries the feed and stores the result.
func (s *Service) fetch(ctx context.Context, key string, lat, lng, radius float64, month string, lastUpdated *time.Time) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	incidents, err := s.feed.StreetCrimes(ctx, SearchArea(lat, lng, radius), month)
	s.metrics.ProviderCall(ctx, s.feed.Name(), time.Since(start), err)

	var snap *Snapshot
	switch {
	case errors.Is(err, ErrOutOfCoverage):
		snap = emptySnapshot()
	case err != nil:
		s.logger.Error().Err(err).
			Float64("lat", lat).
			Float64("lng", lng).
			Str("month", month).
			Str("provider", s.feed.Name()).
			Msg("failed to fetch crime data")
		return nil, err
	default:
		snap = NewSnapshot(incidents)
		snap.LastUpdated = lastUpdated
	}
	snap.Month = month
	snap.RadiusMeters = radius

	entry := cachedSnapshot{Snapshot: snap, FetchedAt: s.now()}
	if err := cache.SetJSON(ctx, s.store, key, entry, s.staleIfErrorTTL); err != nil {
		s.logger.Warn().Err(err).Str("cache_key", key).Msg("crime cache write failed")
	}

	s.logger.Debug().
		Str("cache_key", key).
		Int("total", snap.TotalIncidents).
		Int("score", snap.CrimeScore).
		Bool("out_of_coverage", snap.OutOfCoverage).
		Msg("cached crime snapshot")

	return snap, nil
}

// resolveMonth returns the data month and the feed's last-updated date.
// A configured month does not require the last-updated call to succeed.
func (s *Service) resolveMonth(ctx context.Context) (string, *time.Time, error) {
	updated, err := s.lastUpdated(ctx)
	if err != nil {
		if s.month != "" {
			s.logger.Debug().Err(err).Msg("crime last-updated unavailable, using configured month")
			return s.month, nil, nil
		}
		return "", nil, err
	}

	if s.month != "" {
		return s.month, &updated, nil
	}
	return updated.Format("2006-01"), &updated, nil
}

func (s *Service) lastUpdated(ctx context.Context) (time.Time, error) {
	if cached, err := cache.GetJSON[time.Time](ctx, s.store, lastUpdatedKey); err == nil {
		return cached, nil
	}

	v, err := s.shared(ctx, lastUpdatedKey, func(ctx context.Context) (any, error) {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		updated, err := s.feed.LastUpdated(ctx)
		if err != nil {
			return time.Time{}, err
		}
		if err := cache.SetJSON(ctx, s.store, lastUpdatedKey, updated, time.Hour); err != nil {
			s.logger.Warn().Err(err).Msg("crime cache write failed")
		}
		return updated, nil
	})
	if err != nil {
		return time.Time{}, err
	}
	return v.(time.Time), nil
}

// shared runs fn once per key for all concurrent callers. fn gets a context
// detached from the first caller's cancellation, so one caller going away
// does not fail the others; each caller still stops waiting when its own
// ctx is done. fn is expected to apply s.timeout itself.
func (s *Service) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		return fn(detached)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// snap moves a coordinate to the centre of its grid cell.
func (s *Service) snap(v float64) float64 {
	return (float64(cache.GridCell(v, s.cacheGridSize)) + 0.5) * s.cacheGridSize
}

// cacheKey format: crime:{month}:{radius}:{cellLat},{cellLng}.
func (s *Service) cacheKey(month string, radius, lat, lng float64) string {
	return fmt.Sprintf("crime:%s:%.0f:%.4f,%.4f", month, radius, lat, lng)
}

// Radius returns the default search radius in metres.
func (s *Service) Radius() float64 {
	return s.radius
}

// ProviderName returns the name of the underlying feed.
func (s *Service) ProviderName() string {
	return s.feed.Name()
}
