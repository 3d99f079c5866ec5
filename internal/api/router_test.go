package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saferoute/saferoute/internal/api"
	"github.com/saferoute/saferoute/internal/api/handler"
	"github.com/saferoute/saferoute/internal/api/models"
	"github.com/saferoute/saferoute/internal/crime"
	"github.com/saferoute/saferoute/internal/crime/police"
	"github.com/saferoute/saferoute/internal/places"
	"github.com/saferoute/saferoute/internal/places/nominatim"
	"github.com/saferoute/saferoute/internal/places/overpass"
	"github.com/saferoute/saferoute/internal/planner"
	"github.com/saferoute/saferoute/internal/provider/resilience"
	"github.com/saferoute/saferoute/internal/routing"
	"github.com/saferoute/saferoute/internal/routing/osrm"
	"github.com/saferoute/saferoute/internal/safety"
	"github.com/saferoute/saferoute/pkg/polyline"
)

// osrmStub serves a fixed London route, or fails with status when set.
type osrmStub struct {
	status atomic.Int32
	delay  time.Duration
	calls  atomic.Int32
}

func (s *osrmStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-r.Context().Done():
			return
		}
	}
	if status := int(s.status.Load()); status != 0 {
		w.WriteHeader(status)
		return
	}

	line := orb.LineString{{-0.1278, 51.5074}, {-0.1100, 51.5120}, {-0.0922, 51.5155}}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"code":"Ok","routes":[{"geometry":%q,"distance":2845.3,"duration":512.8}],"waypoints":[]}`,
		polyline.Encode(line))
}

// policeStub covers anything not near New York.
func policeStub(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/crime-last-updated":
		_, _ = w.Write([]byte(`{"date":"2024-11-01"}`))
	case "/crimes-street/all-crime":
		if strings.HasPrefix(r.URL.Query().Get("poly"), "40.") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var b strings.Builder
		b.WriteString("[")
		for i := 0; i < 50; i++ {
			if i > 0 {
				b.WriteString(",")
			}
			category := "anti-social-behaviour"
			if i%5 == 0 {
				category = "burglary"
			}
			fmt.Fprintf(&b, `{"category":%q,"location_type":"Force","location":{"latitude":"51.5100","longitude":"-0.1100","street":{"id":1,"name":"On or near Fleet Street"}},"month":"2024-11"}`, category)
		}
		b.WriteString("]")
		_, _ = w.Write([]byte(b.String()))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func nominatimStub(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte(`[{"place_id":1,"lat":"51.5007","lon":"-0.1246","display_name":"Big Ben, London"}]`))
}

func overpassStub(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte(`<osm version="0.6"><node id="7" lat="51.5194" lon="-0.1270"><tag k="name" v="British Museum"/><tag k="tourism" v="museum"/></node></osm>`))
}

type testEnv struct {
	router   http.Handler
	osrm     *osrmStub
	registry *resilience.Registry
}

func newTestEnv(t *testing.T, routingTimeout time.Duration) *testEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)

	stub := &osrmStub{}
	osrmServer := httptest.NewServer(stub)
	t.Cleanup(osrmServer.Close)
	policeServer := httptest.NewServer(http.HandlerFunc(policeStub))
	t.Cleanup(policeServer.Close)
	nominatimServer := httptest.NewServer(http.HandlerFunc(nominatimStub))
	t.Cleanup(nominatimServer.Close)
	overpassServer := httptest.NewServer(http.HandlerFunc(overpassStub))
	t.Cleanup(overpassServer.Close)

	registry := resilience.NewRegistry()

	routingService := routing.NewService(routing.ServiceConfig{
		Engine: osrm.NewClient(osrm.ClientConfig{
			BaseURL:    osrmServer.URL,
			HTTPClient: osrmServer.Client(),
			Logger:     logger,
		}),
		Timeout: routingTimeout,
		Logger:  logger,
	})

	crimeService := crime.NewService(crime.ServiceConfig{
		Feed: police.NewClient(police.ClientConfig{
			BaseURL:    policeServer.URL,
			HTTPClient: policeServer.Client(),
			Logger:     logger,
		}),
		Logger: logger,
	})

	routePlanner := planner.New(planner.Config{
		Router:   routingService,
		Assessor: safety.NewAnnotator(safety.Config{Source: crimeService, Logger: logger}),
		Logger:   logger,
	})

	placesService := places.NewService(places.ServiceConfig{
		Geocoder: nominatim.NewClient(nominatim.ClientConfig{BaseURL: nominatimServer.URL, HTTPClient: nominatimServer.Client(), Logger: logger}),
		POI:      overpass.NewClient(overpass.ClientConfig{BaseURL: overpassServer.URL, HTTPClient: overpassServer.Client(), Logger: logger}),
		Logger:   logger,
	})

	return &testEnv{
		router: api.NewRouter(api.RouterConfig{
			Version:   "test",
			BuildTime: "2024-01-01T00:00:00Z",
			Logger:    logger,
			Planner:   routePlanner,
			Crime:     crimeService,
			Places:    placesService,
			Registry:  registry,
			ReadinessChecks: map[string]handler.ReadinessCheck{
				"cache": func(context.Context) error { return nil },
			},
		}),
		osrm:     stub,
		registry: registry,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// geometryOf decodes route.geometry as the [[lng,lat],...] array clients receive.
func geometryOf(t *testing.T, w *httptest.ResponseRecorder) [][2]float64 {
	t.Helper()
	var body struct {
		Route struct {
			Geometry [][2]float64 `json:"geometry"`
		} `json:"route"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body.Route.Geometry
}

const londonWaypoints = `[{"lat":51.5074,"lng":-0.1278},{"lat":51.5155,"lng":-0.0922}]`

func TestRouter_Route_Shortest(t *testing.T) {
	env := newTestEnv(t, 0)

	w := env.do(t, http.MethodPost, "/route", `{"waypoints":`+londonWaypoints+`,"mode":"car","pathType":"shortest"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	var resp models.RouteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "2.85", resp.Route.DistanceKm)
	assert.Equal(t, 9, resp.Route.DurationMin)
	assert.Nil(t, resp.Route.RiskScore)
	assert.False(t, resp.Route.IsSynthetic)
	coords := geometryOf(t, w)
	require.Len(t, coords, 3)
	assert.InDelta(t, -0.1278, coords[0][0], 1e-5)
	assert.InDelta(t, 51.5074, coords[0][1], 1e-5)
	assert.Len(t, resp.Route.Geometry, 3)
	assert.Equal(t, "car", resp.Mode)
	assert.Equal(t, "shortest", resp.PathType)
	assert.Len(t, resp.Waypoints, 2)
	assert.Contains(t, resp.Note, "OSRM")

	// riskScore is present and null, not omitted.
	body := decode(t, w)
	route := body["route"].(map[string]any)
	assert.Contains(t, route, "riskScore")
	assert.Nil(t, route["riskScore"])
	assert.IsType(t, []any{}, route["geometry"], "geometry is a bare [[lng,lat],...] array")
}

func TestRouter_Route_Safest(t *testing.T) {
	env := newTestEnv(t, 0)

	w := env.do(t, http.MethodPost, "/route", `{"waypoints":`+londonWaypoints+`,"mode":"car","pathType":"safest"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.RouteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Route.RiskScore)
	// 50 incidents per sample scores 13.
	assert.Equal(t, 13, *resp.Route.RiskScore)
	assert.GreaterOrEqual(t, *resp.Route.RiskScore, 0)
	assert.LessOrEqual(t, *resp.Route.RiskScore, 100)
	assert.Equal(t, "safest", resp.PathType)
}

func TestRouter_Route_Validation(t *testing.T) {
	env := newTestEnv(t, 0)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"single waypoint", `{"waypoints":[{"lat":51.5,"lng":-0.1}]}`, planner.MsgTooFewWaypoints},
		{"no waypoints", `{}`, planner.MsgTooFewWaypoints},
		{"missing lng", `{"waypoints":[{"lat":51.5,"lng":-0.1},{"lat":51.6}]}`, planner.MsgMissingCoords},
		{"out of range", `{"waypoints":[{"lat":95,"lng":-0.1},{"lat":51.6,"lng":-0.1}]}`, planner.MsgOutOfRange},
		{"malformed json", `{"waypoints":`, "Invalid JSON body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/route", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			body := decode(t, w)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.want, body["error"])
		})
	}
	assert.Zero(t, env.osrm.calls.Load(), "invalid requests never reach the routing engine")
}

func TestRouter_Route_FallsBackWhenEngineFails(t *testing.T) {
	env := newTestEnv(t, 0)
	env.osrm.status.Store(http.StatusInternalServerError)

	w := env.do(t, http.MethodPost, "/route", `{"waypoints":`+londonWaypoints+`,"mode":"foot"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.RouteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Route.IsSynthetic)
	assert.Equal(t, routing.SyntheticProvider, resp.Route.Provider)
	assert.Contains(t, resp.Note, "synthetic")

	coords := geometryOf(t, w)
	require.GreaterOrEqual(t, len(coords), 2)
	assert.Equal(t, [2]float64{-0.1278, 51.5074}, coords[0])
	assert.Equal(t, [2]float64{-0.0922, 51.5155}, coords[len(coords)-1])
}

func TestRouter_Route_FallsBackOnTimeout(t *testing.T) {
	env := newTestEnv(t, 100*time.Millisecond)
	env.osrm.delay = 5 * time.Second

	start := time.Now()
	w := env.do(t, http.MethodPost, "/route", `{"waypoints":`+londonWaypoints+`}`)
	elapsed := time.Since(start)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Less(t, elapsed, 2*time.Second)

	var resp models.RouteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Route.IsSynthetic)
	assert.Equal(t, "car", resp.Mode)
}

func TestRouter_Route_UnknownModeUsesCar(t *testing.T) {
	env := newTestEnv(t, 0)

	w := env.do(t, http.MethodPost, "/route", `{"waypoints":`+londonWaypoints+`,"mode":"hovercraft"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "car", decode(t, w)["mode"])
}

func TestRouter_Route_RejectsNonJSON(t *testing.T) {
	env := newTestEnv(t, 0)

	req := httptest.NewRequest(http.MethodPost, "/route", strings.NewReader("lat=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Content-Type must be application/json", body["error"])
}

func TestRouter_Crime_InCoverage(t *testing.T) {
	env := newTestEnv(t, 0)

	w := env.do(t, http.MethodGet, "/crime?lat=51.5074&lng=-0.1278", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.CrimeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "uk_only", resp.Coverage)
	assert.Equal(t, 50, resp.Total)
	assert.Equal(t, 13, resp.CrimeScore)
	assert.Equal(t, map[string]int{"anti-social-behaviour": 40, "burglary": 10}, resp.ByCategory)
	assert.Len(t, resp.CrimeLocations, 50)
	assert.Equal(t, "On or near Fleet Street", resp.CrimeLocations[0].StreetName)
	require.NotNil(t, resp.LastUpdated)
	assert.Equal(t, time.November, resp.LastUpdated.Time().Month())
	assert.NotEmpty(t, resp.Limitations)
}

func TestRouter_Crime_OutOfCoverage(t *testing.T) {
	env := newTestEnv(t, 0)

	w := env.do(t, http.MethodGet, "/crime?lat=40.7128&lng=-74.0060", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "uk_only", body["coverage"])
	assert.Equal(t, float64(0), body["total"])
	assert.Equal(t, float64(0), body["crimeScore"])
	assert.Equal(t, map[string]any{}, body["byCategory"])
	assert.Contains(t, body, "lastUpdated")
	assert.Nil(t, body["lastUpdated"])
	assert.NotEmpty(t, body["message"])
}

func TestRouter_Crime_Validation(t *testing.T) {
	env := newTestEnv(t, 0)

	tests := []struct {
		query string
		want  string
	}{
		{"", "lat is required"},
		{"lat=51.5", "lng is required"},
		{"lat=abc&lng=-0.1", "lat must be a number"},
		{"lat=91&lng=-0.1", "lat must be between -90 and 90"},
		{"lat=51.5&lng=-0.1&radius=50000", "radius must be at most 10000"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := env.do(t, http.MethodGet, "/crime?"+tt.query, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.want, decode(t, w)["error"])
		})
	}
}

func TestRouter_Geocode(t *testing.T) {
	env := newTestEnv(t, 0)

	w := env.do(t, http.MethodGet, "/geocode?q=Big+Ben", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.GeocodeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Big Ben, London", resp.Results[0].DisplayName)

	w = env.do(t, http.MethodGet, "/geocode", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "q is required", decode(t, w)["error"])
}

func TestRouter_Places(t *testing.T) {
	env := newTestEnv(t, 0)

	w := env.do(t, http.MethodGet, "/places?lat=51.5194&lng=-0.1270&category=tourism", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.PlacesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Places, 1)
	assert.Equal(t, "British Museum", resp.Places[0].Name)
	assert.Equal(t, "museum", resp.Places[0].Kind)

	w = env.do(t, http.MethodGet, "/places?lat=51.5&lng=-0.1&category=shop", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "category must be one of: tourism, amenity, historic, leisure", decode(t, w)["error"])
}

func TestRouter_HealthCheck(t *testing.T) {
	env := newTestEnv(t, 0)

	w := env.do(t, http.MethodGet, "/ops/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var health models.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "test", health.Version)
	assert.Empty(t, health.Checks)
}

func TestRouter_ReadinessCheck(t *testing.T) {
	logger := zerolog.New(io.Discard)
	router := api.NewRouter(api.RouterConfig{
		Logger: logger,
		ReadinessChecks: map[string]handler.ReadinessCheck{
			"cache": func(context.Context) error { return errors.New("connection refused") },
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/ops/ready", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var health models.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusFail, health.Status)
	assert.Equal(t, models.HealthStatusFail, health.Checks["cache"])
}

func TestRouter_SystemStatus(t *testing.T) {
	env := newTestEnv(t, 0)

	cfg := resilience.DefaultClientConfig("osrm")
	cfg.Registry = env.registry
	resilience.NewClient(cfg)
	env.registry.RecordSuccess("osrm")

	w := env.do(t, http.MethodGet, "/ops/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, models.HealthStatusOK, status.Status)
	require.Len(t, status.Providers, 1)
	assert.Equal(t, "osrm", status.Providers[0].Provider)
	assert.Equal(t, models.HealthStatusOK, status.Providers[0].Status)
	assert.Equal(t, "closed", status.Providers[0].Circuit)
	assert.NotNil(t, status.Providers[0].LastSuccessAt)
	assert.Empty(t, status.Fallbacks)
	require.Len(t, status.Subsystems, 1)
	assert.Equal(t, "cache", status.Subsystems[0].Name)
}

func TestRouter_NotFound(t *testing.T) {
	env := newTestEnv(t, 0)

	w := env.do(t, http.MethodGet, "/v1/routes", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])

	w = env.do(t, http.MethodGet, "/route", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestRouter_SecurityHeaders(t *testing.T) {
	env := newTestEnv(t, 0)

	w := env.do(t, http.MethodGet, "/ops/health", "")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}
