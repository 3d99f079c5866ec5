// Package osrm provides a client for the OSRM HTTP route service.
package osrm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/saferoute/saferoute/internal/provider/resilience"
	"github.com/saferoute/saferoute/internal/routing"
	"github.com/saferoute/saferoute/pkg/polyline"
)

const (
	// ProviderName identifies this routing provider.
	ProviderName = "osrm"

	// DefaultBaseURL is the public OSRM demo server.
	DefaultBaseURL = "https://router.project-osrm.org"

	// DefaultTimeout is the default per-attempt request timeout.
	DefaultTimeout = 15 * time.Second
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the OSRM client.
type ClientConfig struct {
	// BaseURL is the API base URL (optional, defaults to the public demo server).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the per-attempt request timeout (optional, defaults to 15s).
	Timeout time.Duration

	// UserAgent identifies this application to the server.
	UserAgent string

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OSRM route service client.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new OSRM client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		// The routing service has its own overall deadline and a fallback;
		// one retry is enough.
		clientCfg.MaxRetries = 1
		clientCfg.UserAgent = cfg.UserAgent
		clientCfg.Registry = cfg.Registry
		clientCfg.Logger = &cfg.Logger
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Profile maps a travel mode to an OSRM profile.
func Profile(mode routing.Mode) string {
	switch mode {
	case routing.ModeFoot:
		return "foot"
	case routing.ModeBike:
		return "cycling"
	default:
		return "driving"
	}
}

// Route requests the fastest route through waypoints.
func (c *Client) Route(ctx context.Context, waypoints []routing.Waypoint, mode routing.Mode) (*routing.Route, error) {
	if len(waypoints) < 2 {
		return nil, routing.ErrTooFewWaypoints
	}
	for i, wp := range waypoints {
		if !wp.Valid() {
			return nil, &routing.Error{
				Provider: ProviderName,
				Code:     "INVALID_WAYPOINT",
				Message:  fmt.Sprintf("waypoint %d out of range", i),
				Err:      routing.ErrInvalidCoordinates,
			}
		}
	}

	endpoint := c.routeURL(waypoints, mode)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("profile", Profile(mode)).
		Int("waypoints", len(waypoints)).
		Msg("requesting route from OSRM")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach routing provider",
			Err:      fmt.Errorf("%w: %w", routing.ErrProviderUnavailable, err),
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "READ_FAILED",
			Message:  "failed to read routing response",
			Err:      fmt.Errorf("%w: %w", routing.ErrProviderUnavailable, err),
		}
	}

	var body routeResponse
	decodeErr := json.Unmarshal(respBody, &body)

	if resp.StatusCode != http.StatusOK || decodeErr != nil || body.Code != codeOK {
		return nil, c.handleErrorResponse(resp.StatusCode, &body, decodeErr)
	}

	return c.toRoute(&body)
}

// routeURL builds /route/v1/{profile}/{lng,lat;lng,lat}.
func (c *Client) routeURL(waypoints []routing.Waypoint, mode routing.Mode) string {
	coords := make([]string, len(waypoints))
	for i, wp := range waypoints {
		coords[i] = strconv.FormatFloat(wp.Lng, 'f', 6, 64) + "," + strconv.FormatFloat(wp.Lat, 'f', 6, 64)
	}

	q := url.Values{}
	q.Set("overview", "full")
	q.Set("geometries", "polyline")
	q.Set("steps", "false")
	q.Set("alternatives", "false")

	return fmt.Sprintf("%s/route/v1/%s/%s?%s", c.baseURL, Profile(mode), strings.Join(coords, ";"), q.Encode())
}

// handleErrorResponse maps OSRM error responses to domain errors.
func (c *Client) handleErrorResponse(statusCode int, body *routeResponse, decodeErr error) error {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return &routing.Error{
			Provider: ProviderName,
			Code:     "RATE_LIMIT",
			Message:  "routing rate limit exceeded",
			Err:      routing.ErrRateLimitExceeded,
		}
	case statusCode >= 500:
		return &routing.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("SERVER_%d", statusCode),
			Message:  "routing provider is temporarily unavailable",
			Err:      routing.ErrProviderUnavailable,
		}
	case decodeErr != nil:
		return &routing.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", statusCode),
			Message:  "routing provider returned an unreadable response",
			Err:      fmt.Errorf("%w: %w", routing.ErrProviderUnavailable, decodeErr),
		}
	}

	switch body.Code {
	case codeNoRoute, codeNoSegment:
		return &routing.Error{
			Provider: ProviderName,
			Code:     "NO_ROUTE",
			Message:  "no route found between the given points",
			Err:      routing.ErrNoRouteFound,
		}
	case codeInvalidQuery, codeInvalidValue, codeTooBig:
		return &routing.Error{
			Provider: ProviderName,
			Code:     "BAD_REQUEST",
			Message:  body.Message,
			Err:      routing.ErrInvalidCoordinates,
		}
	default:
		return &routing.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", statusCode),
			Message:  fmt.Sprintf("routing provider returned code %q", body.Code),
			Err:      routing.ErrProviderUnavailable,
		}
	}
}

// toRoute converts the first OSRM route to the domain model.
func (c *Client) toRoute(body *routeResponse) (*routing.Route, error) {
	if len(body.Routes) == 0 {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "NO_ROUTE",
			Message:  "routing provider returned an empty route list",
			Err:      routing.ErrNoRouteFound,
		}
	}

	best := &body.Routes[0]
	geometry, err := polyline.Decode(best.Geometry)
	if err != nil {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "BAD_GEOMETRY",
			Message:  "routing provider returned an undecodable geometry",
			Err:      fmt.Errorf("%w: %w", routing.ErrNoRouteFound, err),
		}
	}

	c.logger.Debug().
		Int("points", len(geometry)).
		Float64("distance_m", best.Distance).
		Msg("received route from OSRM")

	return &routing.Route{
		Geometry:        geometry,
		DistanceMeters:  best.Distance,
		DurationSeconds: best.Duration,
		Provider:        ProviderName,
	}, nil
}
