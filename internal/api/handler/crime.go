package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/saferoute/saferoute/internal/api/middleware"
	"github.com/saferoute/saferoute/internal/api/models"
	"github.com/saferoute/saferoute/internal/api/response"
	"github.com/saferoute/saferoute/internal/crime"
)

// Messages returned alongside crime data.
const (
	MsgOutOfCoverage = "Crime data is only available for England, Wales and Northern Ireland."
)

// crimeLimitations describes what the crime figures can and cannot tell a caller.
var crimeLimitations = []string{
	"Crime locations are anonymised to nearby map points, not exact addresses.",
	"Data is published monthly and typically lags by two months.",
	"Only England, Wales and Northern Ireland are covered.",
	"The crime score reflects recorded incident counts, not personal risk.",
}

// CrimeLookup returns crime snapshots.
type CrimeLookup interface {
	SnapshotAt(ctx context.Context, lat, lng, radius float64) (*crime.Snapshot, error)
	Radius() float64
}

// CrimeHandler handles crime endpoints.
type CrimeHandler struct {
	crime  CrimeLookup
	logger zerolog.Logger
}

// NewCrimeHandler creates a new CrimeHandler.
func NewCrimeHandler(c CrimeLookup, logger zerolog.Logger) *CrimeHandler {
	return &CrimeHandler{crime: c, logger: logger}
}

// GetCrime handles GET /crime?lat=&lng=&radius=.
func (h *CrimeHandler) GetCrime(w http.ResponseWriter, r *http.Request) {
	vals, msg, ok := queryFloats(r.URL.Query(), "lat", "lng", "radius")
	if !ok {
		response.BadRequest(w, r, msg)
		return
	}

	query := models.CrimeQuery{Lat: vals[0], Lng: vals[1], Radius: deref(vals[2])}
	if err := validate.Struct(query); err != nil {
		response.BadRequest(w, r, validationMessage(err))
		return
	}

	radius := query.Radius
	if radius == 0 {
		radius = h.crime.Radius()
	}

	snapshot, err := h.crime.SnapshotAt(r.Context(), *query.Lat, *query.Lng, radius)
	if err != nil {
		if errors.Is(err, crime.ErrInvalidCoordinates) {
			response.BadRequest(w, r, "lat and lng must be valid coordinates")
			return
		}

		middleware.RequestLogger(r.Context(), h.logger).Error().
			Err(err).
			Float64("lat", *query.Lat).
			Float64("lng", *query.Lng).
			Msg("crime lookup failed")

		message := "An unexpected error occurred"
		if errors.Is(err, crime.ErrFeedUnavailable) || errors.Is(err, crime.ErrRateLimitExceeded) {
			message = "The crime data service is temporarily unavailable"
		}
		response.InternalError(w, r, "Failed to fetch crime data", message)
		return
	}

	if snapshot.OutOfCoverage {
		response.JSON(w, r, http.StatusOK, models.CrimeOutOfCoverageResponse{
			Success:    true,
			Coverage:   crime.Coverage,
			Message:    MsgOutOfCoverage,
			ByCategory: map[string]int{},
		})
		return
	}

	locations := snapshot.Incidents
	if locations == nil {
		locations = []crime.Incident{}
	}
	byCategory := snapshot.ByCategory
	if byCategory == nil {
		byCategory = map[string]int{}
	}

	response.JSON(w, r, http.StatusOK, models.CrimeResponse{
		Success:        true,
		Coverage:       crime.Coverage,
		Total:          snapshot.TotalIncidents,
		ByCategory:     byCategory,
		CrimeLocations: locations,
		CrimeScore:     snapshot.CrimeScore,
		LastUpdated:    models.TimestampPtr(snapshot.LastUpdated),
		Limitations:    crimeLimitations,
	})
}
