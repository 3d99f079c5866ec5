// Package routing computes route geometry between waypoints, using an
// external routing engine when reachable and a synthetic path otherwise.
package routing

import (
	"context"
	"errors"

	"github.com/paulmach/orb"
)

// Sentinel errors for routing operations.
var (
	// ErrProviderUnavailable indicates the routing engine is down, timed out or the circuit breaker is open.
	ErrProviderUnavailable = errors.New("routing provider unavailable")
	// ErrNoRouteFound indicates the engine returned no usable route.
	ErrNoRouteFound = errors.New("no route found between the given points")
	// ErrRateLimitExceeded indicates the engine rejected the request for quota reasons.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidCoordinates indicates the provided coordinates are invalid or out of range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	// ErrTooFewWaypoints indicates fewer than two waypoints were supplied.
	ErrTooFewWaypoints = errors.New("at least 2 waypoints are required")
)

// Engine is an external route-computation service.
type Engine interface {
	// Route returns the engine's preferred route through all waypoints in order.
	Route(ctx context.Context, waypoints []Waypoint, mode Mode) (*Route, error)
	// Name returns the engine identifier for logging and metrics.
	Name() string
}

// Mode is a travel mode.
type Mode string

const (
	ModeCar  Mode = "car"
	ModeFoot Mode = "foot"
	ModeBike Mode = "bike"
)

// ParseMode maps a request mode string to a Mode.
// Unknown or empty values resolve to ModeCar and ok is false.
func ParseMode(s string) (mode Mode, ok bool) {
	switch Mode(s) {
	case ModeCar, ModeFoot, ModeBike:
		return Mode(s), true
	default:
		return ModeCar, false
	}
}

// NominalSpeed returns the average travel speed for mode in metres per second.
func NominalSpeed(mode Mode) float64 {
	switch mode {
	case ModeFoot:
		return 1.4
	case ModeBike:
		return 4.2
	default:
		return 13.9
	}
}

// Waypoint is a caller-supplied point the route must pass through.
type Waypoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Point returns the waypoint in [lng, lat] order.
func (w Waypoint) Point() orb.Point {
	return orb.Point{w.Lng, w.Lat}
}

// Valid reports whether the waypoint lies within WGS84 bounds.
func (w Waypoint) Valid() bool {
	return w.Lat >= -90 && w.Lat <= 90 && w.Lng >= -180 && w.Lng <= 180
}

// Route is a resolved travelable path.
type Route struct {
	Geometry        orb.LineString // [lng, lat] pairs, at least two points
	DistanceMeters  float64
	DurationSeconds float64
	IsSynthetic     bool
	Provider        string // engine name, or SyntheticProvider
}

// Error provides detailed error information from the routing provider.
type Error struct {
	Provider string // Provider that generated the error
	Code     string // Error code from the provider
	Message  string // Human-readable error message
	Err      error  // Underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is transient and the request can be retried.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable) || errors.Is(e.Err, ErrRateLimitExceeded)
}
