// Package planner validates route requests, resolves geometry and, for the
// safest path type, annotates the route with a crime-derived risk score.
package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"github.com/saferoute/saferoute/internal/routing"
	"github.com/saferoute/saferoute/internal/safety"
)

// ErrInvalidInput marks request validation failures.
var ErrInvalidInput = errors.New("invalid input")

// Validation messages returned to API callers.
const (
	MsgTooFewWaypoints = "At least 2 waypoints are required"
	MsgMissingCoords   = "Each waypoint must have lat and lng"
	MsgOutOfRange      = "Waypoint coordinates out of range"
)

// InputError is a validation failure with a caller-facing message.
type InputError struct {
	Message string
}

func (e *InputError) Error() string { return e.Message }

func (e *InputError) Unwrap() error { return ErrInvalidInput }

// PathType selects whether the route is scored for safety.
type PathType string

const (
	PathShortest PathType = "shortest"
	PathSafest   PathType = "safest"
)

// ParsePathType maps a request path type to a PathType. Anything other than
// "safest" is shortest.
func ParsePathType(s string) PathType {
	if PathType(s) == PathSafest {
		return PathSafest
	}
	return PathShortest
}

// WaypointInput is a waypoint as submitted. Nil fields mean the caller omitted them.
type WaypointInput struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// Request is a route request before validation.
type Request struct {
	Waypoints []WaypointInput
	Mode      string
	PathType  string
}

// Result is a planned route.
type Result struct {
	Geometry        orb.LineString
	DistanceMeters  float64
	DurationSeconds float64
	RiskScore       *int // nil for the shortest path type
	Waypoints       []routing.Waypoint
	Mode            routing.Mode
	PathType        PathType
	IsSynthetic     bool
	Provider        string
	Note            string
}

// Router resolves route geometry.
type Router interface {
	ComputeRoute(ctx context.Context, waypoints []routing.Waypoint, mode routing.Mode) (*routing.Route, error)
}

// Assessor scores a route for safety.
type Assessor interface {
	Assess(ctx context.Context, geometry orb.LineString, numSamples int) (*safety.Assessment, error)
}

// Config holds configuration for the planner.
type Config struct {
	Router   Router
	Assessor Assessor

	// Samples is the number of crime samples per safest route (default: 10).
	Samples int

	// Logger for planner operations.
	Logger zerolog.Logger
}

// Planner orchestrates route planning.
type Planner struct {
	router   Router
	assessor Assessor
	samples  int
	logger   zerolog.Logger
}

// New creates a new planner.
func New(cfg Config) *Planner {
	samples := cfg.Samples
	if samples <= 0 {
		samples = safety.DefaultSamples
	}
	return &Planner{
		router:   cfg.Router,
		assessor: cfg.Assessor,
		samples:  samples,
		logger:   cfg.Logger,
	}
}

// Plan validates req and produces a route. Only invalid input returns an
// *InputError; routing and crime outages degrade into an annotated result.
func (p *Planner) Plan(ctx context.Context, req Request) (*Result, error) {
	waypoints, err := Validate(req.Waypoints)
	if err != nil {
		return nil, err
	}

	mode, known := routing.ParseMode(req.Mode)
	if !known && req.Mode != "" {
		p.logger.Debug().Str("requested_mode", req.Mode).Msg("unknown mode, using car")
	}
	pathType := ParsePathType(req.PathType)

	start := time.Now()
	route, err := p.router.ComputeRoute(ctx, waypoints, mode)
	if err != nil {
		return nil, fmt.Errorf("computing route: %w", err)
	}

	notes := []string{routeNote(route)}

	logEvent := p.logger.Info()
	if route.IsSynthetic {
		logEvent = p.logger.Warn()
	}
	logEvent.
		Str("mode", string(mode)).
		Str("path_type", string(pathType)).
		Str("provider", route.Provider).
		Bool("synthetic", route.IsSynthetic).
		Int("waypoints", len(waypoints)).
		Float64("distance_m", route.DistanceMeters).
		Dur("routing_elapsed", time.Since(start)).
		Msg("route resolved")

	result := &Result{
		Geometry:        route.Geometry,
		DistanceMeters:  route.DistanceMeters,
		DurationSeconds: route.DurationSeconds,
		Waypoints:       waypoints,
		Mode:            mode,
		PathType:        pathType,
		IsSynthetic:     route.IsSynthetic,
		Provider:        route.Provider,
	}

	if pathType == PathSafest {
		score, note := p.assess(ctx, route.Geometry)
		result.RiskScore = &score
		notes = append(notes, note)
	}

	result.Note = strings.Join(notes, " ")
	return result, nil
}

// assess never fails: when no crime sample succeeds the score is neutral.
func (p *Planner) assess(ctx context.Context, geometry orb.LineString) (int, string) {
	start := time.Now()
	assessment, err := p.assessor.Assess(ctx, geometry, p.samples)
	if err != nil {
		p.logger.Warn().Err(err).Dur("elapsed", time.Since(start)).Msg("route safety unavailable, using neutral score")
		return 0, "Crime data was unavailable, so the risk score is neutral."
	}

	p.logger.Info().
		Int("risk_score", assessment.RiskScore).
		Int("samples", assessment.Sampled).
		Int("failed_samples", assessment.Failed).
		Dur("elapsed", time.Since(start)).
		Msg("route safety assessed")

	note := fmt.Sprintf("Risk score averages crime data at %d points along the route; the path itself is not re-routed around crime.",
		assessment.Sampled-assessment.Failed)
	if assessment.Failed > 0 {
		note += fmt.Sprintf(" %d of %d samples were unavailable.", assessment.Failed, assessment.Sampled)
	}
	return assessment.RiskScore, note
}

func routeNote(route *routing.Route) string {
	if route.IsSynthetic {
		return "Routing service unavailable; showing an approximate synthetic route."
	}
	return fmt.Sprintf("Route calculated by the %s routing engine.", strings.ToUpper(route.Provider))
}

// Validate checks the submitted waypoints and converts them.
func Validate(in []WaypointInput) ([]routing.Waypoint, error) {
	if len(in) < 2 {
		return nil, &InputError{Message: MsgTooFewWaypoints}
	}

	out := make([]routing.Waypoint, len(in))
	for i, wp := range in {
		if wp.Lat == nil || wp.Lng == nil {
			return nil, &InputError{Message: MsgMissingCoords}
		}
		out[i] = routing.Waypoint{Lat: *wp.Lat, Lng: *wp.Lng}
	}
	for _, wp := range out {
		if !wp.Valid() {
			return nil, &InputError{Message: MsgOutOfRange}
		}
	}
	return out, nil
}
