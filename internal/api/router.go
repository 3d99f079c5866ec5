// Package api provides the HTTP API for SafeRoute.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/saferoute/saferoute/internal/api/handler"
	"github.com/saferoute/saferoute/internal/api/middleware"
	"github.com/saferoute/saferoute/internal/api/models"
	"github.com/saferoute/saferoute/internal/api/response"
	"github.com/saferoute/saferoute/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	RequireTLS  bool

	Planner handler.RoutePlanner
	Crime   handler.CrimeLookup
	Places  handler.PlacesLookup

	// Registry exposes provider circuit breaker health on /ops/status.
	Registry *resilience.Registry

	// ReadinessChecks run on /ops/ready and /ops/status, keyed by subsystem name.
	ReadinessChecks map[string]handler.ReadinessCheck
}

// NewRouter creates a new chi router with all API routes configured.
// Endpoints whose backing service is nil are not mounted.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "saferoute-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, models.NewFailure(http.StatusMethodNotAllowed, "", "Method not allowed"))
	})

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Registry, cfg.ReadinessChecks)
	r.Route("/ops", func(r chi.Router) {
		r.Get("/health", opsHandler.HealthCheck)
		r.Get("/ready", opsHandler.ReadinessCheck)
		r.With(middleware.RateLimitByIP(middleware.StandardRateLimit)).Get("/status", opsHandler.SystemStatus)
	})

	if cfg.Planner != nil {
		routeHandler := handler.NewRouteHandler(cfg.Planner, cfg.Logger)
		r.With(
			middleware.RequireJSON,
			middleware.RateLimitByIP(middleware.RouteRateLimit),
		).Post("/route", routeHandler.ComputeRoute)
	}

	if cfg.Crime != nil {
		crimeHandler := handler.NewCrimeHandler(cfg.Crime, cfg.Logger)
		r.With(middleware.RateLimitByIP(middleware.ExpensiveRateLimit)).Get("/crime", crimeHandler.GetCrime)
	}

	if cfg.Places != nil {
		placesHandler := handler.NewPlacesHandler(cfg.Places, cfg.Logger)
		r.Group(func(r chi.Router) {
			// Nominatim and Overpass both enforce strict fair-use limits.
			r.Use(middleware.RateLimitByIP(middleware.ExpensiveRateLimit))
			r.Get("/geocode", placesHandler.Geocode)
			r.Get("/places", placesHandler.Nearby)
		})
	}

	return r
}
