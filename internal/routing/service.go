package routing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/saferoute/saferoute/internal/telemetry"
)

// DefaultTimeout bounds a single routing engine call.
const DefaultTimeout = 15 * time.Second

// ServiceConfig holds configuration for the routing service.
type ServiceConfig struct {
	// Engine is the external routing engine. If nil, every route is synthetic.
	Engine Engine

	// Logger for service operations.
	Logger zerolog.Logger

	// Timeout bounds each engine call (default: 15 seconds).
	Timeout time.Duration

	// Metrics is optional.
	Metrics *telemetry.Metrics
}

// Service resolves route geometry. It never fails for upstream reasons:
// engine errors, timeouts and empty results all fall back to a synthetic path.
type Service struct {
	engine  Engine
	logger  zerolog.Logger
	timeout time.Duration
	metrics *telemetry.Metrics
}

// NewService creates a new routing service.
func NewService(cfg ServiceConfig) *Service {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &Service{
		engine:  cfg.Engine,
		logger:  cfg.Logger,
		timeout: timeout,
		metrics: cfg.Metrics,
	}
}

// ComputeRoute returns a route through waypoints in order.
// The only errors are for invalid input.
func (s *Service) ComputeRoute(ctx context.Context, waypoints []Waypoint, mode Mode) (*Route, error) {
	if len(waypoints) < 2 {
		return nil, ErrTooFewWaypoints
	}
	for i, wp := range waypoints {
		if !wp.Valid() {
			return nil, &Error{
				Provider: s.ProviderName(),
				Code:     "INVALID_WAYPOINT",
				Message:  fmt.Sprintf("waypoint %d out of range", i),
				Err:      ErrInvalidCoordinates,
			}
		}
	}

	if s.engine != nil {
		route, err := s.fromEngine(ctx, waypoints, mode)
		if err == nil {
			s.metrics.RouteComputed(ctx, string(mode), false)
			return route, nil
		}

		event := s.logger.Warn()
		if errors.Is(err, context.DeadlineExceeded) {
			event = s.logger.Error()
		}
		event.Err(err).
			Str("provider", s.engine.Name()).
			Str("mode", string(mode)).
			Int("waypoints", len(waypoints)).
			Msg("routing engine failed, using synthetic route")
	}

	route, err := GenerateSynthetic(waypoints, mode)
	if err != nil {
		return nil, err
	}
	s.metrics.RouteComputed(ctx, string(mode), true)
	return route, nil
}

// fromEngine calls the engine under the service timeout and checks the result is usable.
func (s *Service) fromEngine(ctx context.Context, waypoints []Waypoint, mode Mode) (*Route, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		route *Route
		err   error
	}
	done := make(chan result, 1)

	start := time.Now()
	go func() {
		r, err := s.engine.Route(ctx, waypoints, mode)
		done <- result{r, err}
	}()

	var route *Route
	var err error
	// An engine that ignores ctx must still not hold the caller past the timeout.
	select {
	case res := <-done:
		route, err = res.route, res.err
	case <-ctx.Done():
		err = ctx.Err()
	}
	s.metrics.ProviderCall(ctx, s.engine.Name(), time.Since(start), err)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, ctx.Err())
		}
		return nil, err
	}

	if route == nil || len(route.Geometry) < 2 {
		return nil, &Error{
			Provider: s.engine.Name(),
			Code:     "EMPTY_ROUTE",
			Message:  "routing engine returned no usable geometry",
			Err:      ErrNoRouteFound,
		}
	}
	if route.DistanceMeters < 0 || route.DurationSeconds < 0 {
		return nil, &Error{
			Provider: s.engine.Name(),
			Code:     "INVALID_ROUTE",
			Message:  "routing engine returned negative distance or duration",
			Err:      ErrNoRouteFound,
		}
	}

	s.logger.Debug().
		Str("provider", s.engine.Name()).
		Str("mode", string(mode)).
		Int("points", len(route.Geometry)).
		Float64("distance_m", route.DistanceMeters).
		Dur("elapsed", time.Since(start)).
		Msg("route from engine")

	route.IsSynthetic = false
	if route.Provider == "" {
		route.Provider = s.engine.Name()
	}
	return route, nil
}

// ProviderName returns the name of the underlying engine.
func (s *Service) ProviderName() string {
	if s.engine == nil {
		return SyntheticProvider
	}
	return s.engine.Name()
}
