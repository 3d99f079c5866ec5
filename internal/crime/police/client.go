// Package police provides a client for the data.police.uk street-level crime API.
package police

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

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"github.com/saferoute/saferoute/internal/crime"
	"github.com/saferoute/saferoute/internal/provider/resilience"
)

const (
	// ProviderName identifies this crime data provider.
	ProviderName = "police"

	// DefaultBaseURL is the data.police.uk API base URL.
	DefaultBaseURL = "https://data.police.uk/api"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the police data client.
type ClientConfig struct {
	// BaseURL is the API base URL (optional, defaults to data.police.uk).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 10s).
	Timeout time.Duration

	// UserAgent identifies this application to the API.
	UserAgent string

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a data.police.uk API client.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new police data client.
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
		clientCfg.MaxRetries = 2
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

// StreetCrimes returns all street-level crimes inside area for month.
func (c *Client) StreetCrimes(ctx context.Context, area orb.Ring, month string) ([]crime.Incident, error) {
	q := url.Values{}
	q.Set("poly", encodePoly(area))
	if month != "" {
		q.Set("date", month)
	}
	endpoint := c.baseURL + "/crimes-street/all-crime?" + q.Encode()

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var crimes []streetCrime
	if err := json.Unmarshal(body, &crimes); err != nil {
		return nil, &crime.Error{
			Provider: ProviderName,
			Code:     "DECODE_FAILED",
			Message:  "crime feed returned an unreadable response",
			Err:      fmt.Errorf("%w: %w", crime.ErrFeedUnavailable, err),
		}
	}

	incidents := make([]crime.Incident, 0, len(crimes))
	for i := range crimes {
		incidents = append(incidents, toIncident(&crimes[i]))
	}

	c.logger.Debug().
		Str("month", month).
		Int("incidents", len(incidents)).
		Msg("received street crimes")

	return incidents, nil
}

// LastUpdated returns the date of the latest published monthly snapshot.
func (c *Client) LastUpdated(ctx context.Context) (time.Time, error) {
	body, err := c.get(ctx, c.baseURL+"/crime-last-updated")
	if err != nil {
		return time.Time{}, err
	}

	var resp lastUpdatedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return time.Time{}, &crime.Error{
			Provider: ProviderName,
			Code:     "DECODE_FAILED",
			Message:  "crime feed returned an unreadable last-updated response",
			Err:      fmt.Errorf("%w: %w", crime.ErrFeedUnavailable, err),
		}
	}

	updated, err := time.Parse("2006-01-02", resp.Date)
	if err != nil {
		return time.Time{}, &crime.Error{
			Provider: ProviderName,
			Code:     "DECODE_FAILED",
			Message:  fmt.Sprintf("unexpected last-updated date %q", resp.Date),
			Err:      fmt.Errorf("%w: %w", crime.ErrFeedUnavailable, err),
		}
	}
	return updated, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &crime.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach crime feed",
			Err:      fmt.Errorf("%w: %w", crime.ErrFeedUnavailable, err),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &crime.Error{
			Provider: ProviderName,
			Code:     "READ_FAILED",
			Message:  "failed to read crime feed response",
			Err:      fmt.Errorf("%w: %w", crime.ErrFeedUnavailable, err),
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp.StatusCode)
	}
	return body, nil
}

// handleErrorResponse maps feed status codes to domain errors.
func handleErrorResponse(statusCode int) error {
	switch {
	case statusCode == http.StatusNotFound:
		return &crime.Error{
			Provider: ProviderName,
			Code:     "OUT_OF_COVERAGE",
			Message:  "no crime data for this area",
			Err:      crime.ErrOutOfCoverage,
		}
	case statusCode == http.StatusTooManyRequests:
		return &crime.Error{
			Provider: ProviderName,
			Code:     "RATE_LIMIT",
			Message:  "crime feed rate limit exceeded",
			Err:      crime.ErrRateLimitExceeded,
		}
	case statusCode == http.StatusServiceUnavailable:
		// Also returned when the area holds more than 10,000 crimes.
		return &crime.Error{
			Provider: ProviderName,
			Code:     "SERVER_503",
			Message:  "crime feed unavailable or area too large",
			Err:      crime.ErrFeedUnavailable,
		}
	case statusCode >= 500:
		return &crime.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("SERVER_%d", statusCode),
			Message:  "crime feed is temporarily unavailable",
			Err:      crime.ErrFeedUnavailable,
		}
	default:
		return &crime.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", statusCode),
			Message:  fmt.Sprintf("crime feed returned status %d", statusCode),
			Err:      crime.ErrFeedUnavailable,
		}
	}
}

// encodePoly formats a ring as lat,lng:lat,lng. The closing vertex is dropped.
func encodePoly(area orb.Ring) string {
	points := area
	if len(points) > 1 && points[0] == points[len(points)-1] {
		points = points[:len(points)-1]
	}

	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = strconv.FormatFloat(p.Lat(), 'f', 5, 64) + "," + strconv.FormatFloat(p.Lon(), 'f', 5, 64)
	}
	return strings.Join(parts, ":")
}

func toIncident(sc *streetCrime) crime.Incident {
	lat, _ := strconv.ParseFloat(sc.Location.Latitude, 64)
	lng, _ := strconv.ParseFloat(sc.Location.Longitude, 64)
	return crime.Incident{
		Category:     sc.Category,
		Latitude:     lat,
		Longitude:    lng,
		LocationType: sc.LocationType,
		StreetName:   sc.Location.Street.Name,
	}
}
