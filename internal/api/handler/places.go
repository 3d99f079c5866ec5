package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/saferoute/saferoute/internal/api/middleware"
	"github.com/saferoute/saferoute/internal/api/models"
	"github.com/saferoute/saferoute/internal/api/response"
	"github.com/saferoute/saferoute/internal/places"
)

// PlacesLookup geocodes queries and finds nearby places.
type PlacesLookup interface {
	Geocode(ctx context.Context, query string) ([]places.GeocodeResult, error)
	Nearby(ctx context.Context, lat, lng, radius float64, category places.Category) ([]places.Place, error)
}

// PlacesHandler handles geocoding and point-of-interest endpoints.
type PlacesHandler struct {
	places PlacesLookup
	logger zerolog.Logger
}

// NewPlacesHandler creates a new PlacesHandler.
func NewPlacesHandler(p PlacesLookup, logger zerolog.Logger) *PlacesHandler {
	return &PlacesHandler{places: p, logger: logger}
}

// Geocode handles GET /geocode?q=.
func (h *PlacesHandler) Geocode(w http.ResponseWriter, r *http.Request) {
	query := models.GeocodeQuery{Q: r.URL.Query().Get("q")}
	if err := validate.Struct(query); err != nil {
		response.BadRequest(w, r, validationMessage(err))
		return
	}

	results, err := h.places.Geocode(r.Context(), query.Q)
	if err != nil {
		h.writeError(w, r, err, "Failed to geocode query")
		return
	}
	if results == nil {
		results = []places.GeocodeResult{}
	}

	response.JSON(w, r, http.StatusOK, models.GeocodeResponse{Success: true, Results: results})
}

// Nearby handles GET /places?lat=&lng=&radius=&category=.
func (h *PlacesHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	vals, msg, ok := queryFloats(q, "lat", "lng", "radius")
	if !ok {
		response.BadRequest(w, r, msg)
		return
	}

	query := models.PlacesQuery{Lat: vals[0], Lng: vals[1], Radius: deref(vals[2]), Category: q.Get("category")}
	if err := validate.Struct(query); err != nil {
		response.BadRequest(w, r, validationMessage(err))
		return
	}
	category, _ := places.ParseCategory(query.Category)

	found, err := h.places.Nearby(r.Context(), *query.Lat, *query.Lng, query.Radius, category)
	if err != nil {
		h.writeError(w, r, err, "Failed to fetch places")
		return
	}
	if found == nil {
		found = []places.Place{}
	}

	response.JSON(w, r, http.StatusOK, models.PlacesResponse{Success: true, Places: found})
}

func (h *PlacesHandler) writeError(w http.ResponseWriter, r *http.Request, err error, errText string) {
	switch {
	case errors.Is(err, places.ErrInvalidQuery):
		response.BadRequest(w, r, errText)
	case errors.Is(err, places.ErrProviderUnavailable), errors.Is(err, places.ErrRateLimitExceeded):
		middleware.RequestLogger(r.Context(), h.logger).Warn().
			Err(err).
			Msg("places provider unavailable")
		response.Error(w, r, models.NewServiceUnavailable("", errText).
			WithMessage("The places service is temporarily unavailable"))
	default:
		middleware.RequestLogger(r.Context(), h.logger).Error().
			Err(err).
			Msg("places lookup failed")
		response.InternalError(w, r, errText, "An unexpected error occurred")
	}
}
