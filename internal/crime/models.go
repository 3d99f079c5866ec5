// Package crime turns street-level crime records into a bounded,
// tourist-facing risk score for a coordinate.
package crime

import (
	"context"
	"errors"
	"time"

	"github.com/paulmach/orb"
)

// Sentinel errors for crime lookups.
var (
	// ErrFeedUnavailable indicates the incident feed is down, timed out or the circuit breaker is open.
	ErrFeedUnavailable = errors.New("crime feed unavailable")
	// ErrOutOfCoverage indicates the feed has no data for the area. Callers see a zero snapshot instead.
	ErrOutOfCoverage = errors.New("location outside crime data coverage")
	// ErrRateLimitExceeded indicates the feed rejected the request for quota reasons.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidCoordinates indicates the provided coordinates are invalid or out of range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
)

// Coverage is the region the feed covers, reported to API consumers.
const Coverage = "uk_only"

// Feed is a source of street-level crime records.
type Feed interface {
	// StreetCrimes returns all incidents inside area for month (YYYY-MM).
	// It returns ErrOutOfCoverage when the feed has no data for the area.
	StreetCrimes(ctx context.Context, area orb.Ring, month string) ([]Incident, error)
	// LastUpdated returns the date of the most recent monthly snapshot.
	LastUpdated(ctx context.Context) (time.Time, error)
	// Name returns the feed identifier for logging and metrics.
	Name() string
}

// Incident is a single street-level crime record.
type Incident struct {
	Category     string  `json:"category"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	LocationType string  `json:"location_type"`
	StreetName   string  `json:"street_name"`
}

// Snapshot aggregates incidents around one coordinate for one month.
type Snapshot struct {
	TotalIncidents int            `json:"totalIncidents"`
	ByCategory     map[string]int `json:"byCategory"`
	CrimeScore     int            `json:"crimeScore"`
	Incidents      []Incident     `json:"incidents,omitempty"`
	Month          string         `json:"month,omitempty"`
	LastUpdated    *time.Time     `json:"lastUpdated,omitempty"`
	OutOfCoverage  bool           `json:"outOfCoverage"`
	RadiusMeters   float64        `json:"radiusMeters"`
}

// NewSnapshot aggregates incidents and scores the total.
func NewSnapshot(incidents []Incident) *Snapshot {
	byCategory := make(map[string]int)
	for _, inc := range incidents {
		byCategory[inc.Category]++
	}
	return &Snapshot{
		TotalIncidents: len(incidents),
		ByCategory:     byCategory,
		CrimeScore:     Score(len(incidents)),
		Incidents:      incidents,
	}
}

// emptySnapshot is the neutral result for areas without coverage.
func emptySnapshot() *Snapshot {
	return &Snapshot{
		ByCategory:    map[string]int{},
		OutOfCoverage: true,
	}
}

// Error provides detailed error information from the crime feed.
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
