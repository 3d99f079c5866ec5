package osrm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"github.com/saferoute/saferoute/internal/provider/resilience"
	"github.com/saferoute/saferoute/internal/routing"
)

const okBody = `{
  "code": "Ok",
  "routes": [
    {
      "geometry": "_p~iF~ps|U_ulLnnqC_mqNvxq` + "`" + `@",
      "distance": 12345.6,
      "duration": 987.4,
      "weight_name": "routability",
      "legs": [{"distance": 12345.6, "duration": 987.4, "summary": "A40"}]
    }
  ],
  "waypoints": [
    {"name": "Strand", "location": [-120.2, 38.5], "distance": 3.1},
    {"name": "Cornhill", "location": [-126.453, 43.252], "distance": 1.2}
  ]
}`

var london = []routing.Waypoint{
	{Lat: 51.5074, Lng: -0.1278},
	{Lat: 51.5155, Lng: -0.0922},
}

func TestClient_Route_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}

		expectedPath := "/route/v1/cycling/-0.127800,51.507400;-0.092200,51.515500"
		if r.URL.Path != expectedPath {
			t.Errorf("expected path %s, got %s", expectedPath, r.URL.Path)
		}
		if got := r.URL.Query().Get("overview"); got != "full" {
			t.Errorf("expected overview=full, got %q", got)
		}
		if got := r.URL.Query().Get("geometries"); got != "polyline" {
			t.Errorf("expected geometries=polyline, got %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(okBody))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: &mockHTTPClient{client: server.Client()},
		Logger:     zerolog.Nop(),
	})

	route, err := client.Route(context.Background(), london, routing.ModeBike)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if route.Provider != ProviderName {
		t.Errorf("expected provider %s, got %s", ProviderName, route.Provider)
	}
	if route.IsSynthetic {
		t.Error("engine route must not be marked synthetic")
	}
	if route.DistanceMeters != 12345.6 {
		t.Errorf("expected distance 12345.6, got %f", route.DistanceMeters)
	}
	if route.DurationSeconds != 987.4 {
		t.Errorf("expected duration 987.4, got %f", route.DurationSeconds)
	}
	if len(route.Geometry) != 3 {
		t.Fatalf("expected 3 points, got %d", len(route.Geometry))
	}

	// geometry is [lng, lat]
	first := route.Geometry[0]
	if first[0] != -120.2 || first[1] != 38.5 {
		t.Errorf("expected first point [-120.2 38.5], got %v", first)
	}
}

func TestProfile(t *testing.T) {
	tests := []struct {
		mode routing.Mode
		want string
	}{
		{routing.ModeCar, "driving"},
		{routing.ModeFoot, "foot"},
		{routing.ModeBike, "cycling"},
		{routing.Mode("hovercraft"), "driving"},
	}

	for _, tt := range tests {
		if got := Profile(tt.mode); got != tt.want {
			t.Errorf("Profile(%q) = %q, want %q", tt.mode, got, tt.want)
		}
	}
}

func TestClient_Route_ErrorResponses(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantErr    error
		wantCode   string
	}{
		{
			name:       "no route",
			statusCode: http.StatusBadRequest,
			body:       `{"code":"NoRoute","message":"Impossible route between points"}`,
			wantErr:    routing.ErrNoRouteFound,
			wantCode:   "NO_ROUTE",
		},
		{
			name:       "invalid query",
			statusCode: http.StatusBadRequest,
			body:       `{"code":"InvalidQuery","message":"Query string malformed close to position 28"}`,
			wantErr:    routing.ErrInvalidCoordinates,
			wantCode:   "BAD_REQUEST",
		},
		{
			name:       "rate limited",
			statusCode: http.StatusTooManyRequests,
			body:       `{"message":"Too Many Requests"}`,
			wantErr:    routing.ErrRateLimitExceeded,
			wantCode:   "RATE_LIMIT",
		},
		{
			name:       "server error",
			statusCode: http.StatusInternalServerError,
			body:       `<html>oops</html>`,
			wantErr:    routing.ErrProviderUnavailable,
			wantCode:   "SERVER_500",
		},
		{
			name:       "unreadable body",
			statusCode: http.StatusOK,
			body:       `not json`,
			wantErr:    routing.ErrProviderUnavailable,
			wantCode:   "HTTP_200",
		},
		{
			name:       "empty routes",
			statusCode: http.StatusOK,
			body:       `{"code":"Ok","routes":[]}`,
			wantErr:    routing.ErrNoRouteFound,
			wantCode:   "NO_ROUTE",
		},
		{
			name:       "broken geometry",
			statusCode: http.StatusOK,
			body:       `{"code":"Ok","routes":[{"geometry":"_p~iF~","distance":1,"duration":1}]}`,
			wantErr:    routing.ErrNoRouteFound,
			wantCode:   "BAD_GEOMETRY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(ClientConfig{
				BaseURL:    server.URL,
				HTTPClient: &mockHTTPClient{client: server.Client()},
				Logger:     zerolog.Nop(),
			})

			_, err := client.Route(context.Background(), london, routing.ModeCar)
			if err == nil {
				t.Fatal("expected error, got nil")
			}

			var routingErr *routing.Error
			if !errors.As(err, &routingErr) {
				t.Fatalf("expected routing.Error, got %T", err)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if routingErr.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, routingErr.Code)
			}
		})
	}
}

func TestClient_Route_InvalidWaypoints(t *testing.T) {
	client := NewClient(ClientConfig{
		HTTPClient: &mockFailingClient{},
		Logger:     zerolog.Nop(),
	})

	_, err := client.Route(context.Background(), london[:1], routing.ModeCar)
	if !errors.Is(err, routing.ErrTooFewWaypoints) {
		t.Errorf("expected ErrTooFewWaypoints, got %v", err)
	}

	_, err = client.Route(context.Background(), []routing.Waypoint{
		{Lat: 51.5, Lng: -0.1},
		{Lat: 91, Lng: 0},
	}, routing.ModeCar)
	if !errors.Is(err, routing.ErrInvalidCoordinates) {
		t.Errorf("expected ErrInvalidCoordinates, got %v", err)
	}
}

func TestClient_Route_ResilientClientRetriesThenReportsServerError(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		if !strings.HasPrefix(r.Header.Get("User-Agent"), "saferoute-test") {
			t.Errorf("unexpected User-Agent %q", r.Header.Get("User-Agent"))
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	registry := resilience.NewRegistry()
	client := NewClient(ClientConfig{
		BaseURL:   server.URL,
		UserAgent: "saferoute-test/1.0",
		Registry:  registry,
		Logger:    zerolog.Nop(),
	})

	_, err := client.Route(context.Background(), london, routing.ModeFoot)
	if !errors.Is(err, routing.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if n := attempts.Load(); n != 2 {
		t.Errorf("expected 2 attempts (1 retry), got %d", n)
	}

	health := registry.Health(ProviderName)
	if health == nil {
		t.Fatal("expected osrm to be registered")
	}
	if health.LastFailureAt == nil || health.LastError == "" {
		t.Errorf("expected failure to be recorded, got %+v", health)
	}
}

type mockHTTPClient struct {
	client *http.Client
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.client.Do(req)
}

// mockFailingClient simulates network errors.
type mockFailingClient struct{}

func (m *mockFailingClient) Do(req *http.Request) (*http.Response, error) {
	return nil, errors.New("network error")
}

func TestClient_Route_NetworkError(t *testing.T) {
	client := NewClient(ClientConfig{
		HTTPClient: &mockFailingClient{},
		Logger:     zerolog.Nop(),
	})

	_, err := client.Route(context.Background(), london, routing.ModeCar)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var routingErr *routing.Error
	if !errors.As(err, &routingErr) {
		t.Fatalf("expected routing.Error, got %T", err)
	}
	if !errors.Is(routingErr.Err, routing.ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", routingErr.Err)
	}
	if !routingErr.IsRetryable() {
		t.Error("network errors should be retryable")
	}
}
