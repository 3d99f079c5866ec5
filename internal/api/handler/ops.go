// Package handler provides HTTP handlers for the SafeRoute API.
package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/saferoute/saferoute/internal/api/models"
	"github.com/saferoute/saferoute/internal/api/response"
	"github.com/saferoute/saferoute/internal/provider/resilience"
)

// readyTimeout bounds each readiness check.
const readyTimeout = 2 * time.Second

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// fallbacks names the user-visible fallback each provider outage triggers.
var fallbacks = map[string]string{
	"osrm":      "SYNTHETIC_ROUTES",
	"police":    "NEUTRAL_CRIME_SCORES",
	"nominatim": "GEOCODING_UNAVAILABLE",
	"overpass":  "PLACES_UNAVAILABLE",
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	registry  *resilience.Registry
	checks    map[string]ReadinessCheck
	now       func() time.Time
}

// NewOpsHandler creates a new OpsHandler. registry and checks may be nil.
func NewOpsHandler(version, buildTime string, registry *resilience.Registry, checks map[string]ReadinessCheck) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		registry:  registry,
		checks:    checks,
		now:       time.Now,
	}
}

// HealthCheck handles GET /ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status:    models.HealthStatusOK,
		Time:      models.Timestamp(h.now()),
		Version:   h.version,
		BuildTime: h.buildTime,
	})
}

// ReadinessCheck handles GET /ops/ready. Any failing dependency check makes
// the service unready; open circuit breakers do not, since every upstream
// has a fallback.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems := h.runChecks(r.Context())

	health := models.Health{
		Status:  models.HealthStatusOK,
		Time:    models.Timestamp(h.now()),
		Version: h.version,
	}
	if len(subsystems) > 0 {
		health.Checks = make(map[string]models.HealthStatus, len(subsystems))
	}
	for _, s := range subsystems {
		health.Checks[s.Name] = s.Status
		if s.Status == models.HealthStatusFail {
			health.Status = models.HealthStatusFail
		}
	}

	status := http.StatusOK
	if health.Status == models.HealthStatusFail {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, r, status, health)
}

// SystemStatus handles GET /ops/status - subsystem and provider circuit state.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(h.now()),
		Subsystems: h.runChecks(r.Context()),
		Providers:  []models.ProviderStatus{},
	}

	for _, s := range status.Subsystems {
		if s.Status == models.HealthStatusFail {
			status.Status = models.HealthStatusFail
		}
	}

	if h.registry != nil {
		for _, ph := range h.registry.All() {
			ps := models.ProviderStatus{
				Provider:            ph.Name,
				Status:              providerStatus(ph),
				Circuit:             ph.CircuitState.String(),
				ConsecutiveFailures: ph.Counts.ConsecutiveFailures,
				LastSuccessAt:       models.TimestampPtr(ph.LastSuccessAt),
				LastFailureAt:       models.TimestampPtr(ph.LastFailureAt),
				LastError:           ph.LastError,
			}
			status.Providers = append(status.Providers, ps)

			if ps.Status == models.HealthStatusOK {
				continue
			}
			if status.Status == models.HealthStatusOK {
				status.Status = models.HealthStatusDegraded
			}
			if fallback, ok := fallbacks[ph.Name]; ok && ps.Status == models.HealthStatusFail {
				status.Fallbacks = append(status.Fallbacks, fallback)
			}
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) runChecks(ctx context.Context) []models.SubsystemStatus {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]models.SubsystemStatus, 0, len(names))
	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, readyTimeout)
		err := h.checks[name](checkCtx)
		cancel()

		s := models.SubsystemStatus{Name: name, Status: models.HealthStatusOK}
		if err != nil {
			s.Status = models.HealthStatusFail
			s.Detail = err.Error()
		}
		out = append(out, s)
	}
	return out
}

func providerStatus(ph *resilience.ProviderHealth) models.HealthStatus {
	switch {
	case ph.IsUnhealthy():
		return models.HealthStatusFail
	case ph.IsDegraded():
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusOK
	}
}
