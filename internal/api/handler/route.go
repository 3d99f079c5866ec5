package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/saferoute/saferoute/internal/api/middleware"
	"github.com/saferoute/saferoute/internal/api/models"
	"github.com/saferoute/saferoute/internal/api/response"
	"github.com/saferoute/saferoute/internal/planner"
)

// maxRouteBody bounds the POST /route request body.
const maxRouteBody = 64 << 10

// RoutePlanner plans routes.
type RoutePlanner interface {
	Plan(ctx context.Context, req planner.Request) (*planner.Result, error)
}

// RouteHandler handles routing endpoints.
type RouteHandler struct {
	planner RoutePlanner
	logger  zerolog.Logger
}

// NewRouteHandler creates a new RouteHandler.
func NewRouteHandler(p RoutePlanner, logger zerolog.Logger) *RouteHandler {
	return &RouteHandler{planner: p, logger: logger}
}

// ComputeRoute handles POST /route.
func (h *RouteHandler) ComputeRoute(w http.ResponseWriter, r *http.Request) {
	var input models.RouteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRouteBody)).Decode(&input); err != nil {
		response.BadRequest(w, r, "Invalid JSON body")
		return
	}

	result, err := h.planner.Plan(r.Context(), planner.Request{
		Waypoints: input.Waypoints,
		Mode:      input.Mode,
		PathType:  input.PathType,
	})
	if err != nil {
		var inputErr *planner.InputError
		if errors.As(err, &inputErr) {
			response.BadRequest(w, r, inputErr.Message)
			return
		}

		middleware.RequestLogger(r.Context(), h.logger).Error().
			Err(err).
			Msg("route calculation failed")
		response.InternalError(w, r, "Failed to calculate route", "An unexpected error occurred")
		return
	}

	response.JSON(w, r, http.StatusOK, toRouteResponse(result))
}

func toRouteResponse(result *planner.Result) models.RouteResponse {
	waypoints := make([]models.Coordinate, len(result.Waypoints))
	for i, wp := range result.Waypoints {
		waypoints[i] = models.Coordinate{Lat: wp.Lat, Lng: wp.Lng}
	}

	return models.RouteResponse{
		Success: true,
		Route: models.Route{
			Geometry:    result.Geometry,
			Distance:    result.DistanceMeters,
			Duration:    result.DurationSeconds,
			RiskScore:   result.RiskScore,
			DistanceKm:  fmt.Sprintf("%.2f", result.DistanceMeters/1000),
			DurationMin: int(math.Round(result.DurationSeconds / 60)),
			IsSynthetic: result.IsSynthetic,
			Provider:    result.Provider,
		},
		Waypoints: waypoints,
		Mode:      string(result.Mode),
		PathType:  string(result.PathType),
		Note:      result.Note,
	}
}
