// Package nominatim provides a client for the Nominatim search API.
package nominatim

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

	"github.com/saferoute/saferoute/internal/places"
	"github.com/saferoute/saferoute/internal/provider/resilience"
)

const (
	// ProviderName identifies this geocoding provider.
	ProviderName = "nominatim"

	// DefaultBaseURL is the public OSM Nominatim instance.
	DefaultBaseURL = "https://nominatim.openstreetmap.org"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Nominatim client.
type ClientConfig struct {
	BaseURL    string
	HTTPClient HTTPDoer
	Timeout    time.Duration

	// UserAgent is required by the Nominatim usage policy.
	UserAgent string

	Registry *resilience.Registry
	Logger   zerolog.Logger
}

// Client is a Nominatim API client.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

type searchResult struct {
	PlaceID     int64  `json:"place_id"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Category    string `json:"category"`
	Type        string `json:"type"`
}

// NewClient creates a new Nominatim client.
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

// Search geocodes a free-text query.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]places.GeocodeResult, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "jsonv2")
	q.Set("limit", strconv.Itoa(limit))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &places.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach geocoder",
			Err:      fmt.Errorf("%w: %w", places.ErrProviderUnavailable, err),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &places.Error{Provider: ProviderName, Code: "RATE_LIMIT", Message: "geocoder rate limit exceeded", Err: places.ErrRateLimitExceeded}
	case resp.StatusCode != http.StatusOK:
		return nil, &places.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Message:  fmt.Sprintf("geocoder returned status %d", resp.StatusCode),
			Err:      places.ErrProviderUnavailable,
		}
	}

	var raw []searchResult
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &places.Error{
			Provider: ProviderName,
			Code:     "DECODE_FAILED",
			Message:  "geocoder returned an unreadable response",
			Err:      fmt.Errorf("%w: %w", places.ErrProviderUnavailable, err),
		}
	}

	results := make([]places.GeocodeResult, 0, len(raw))
	for _, r := range raw {
		lat, latErr := strconv.ParseFloat(r.Lat, 64)
		lng, lngErr := strconv.ParseFloat(r.Lon, 64)
		if latErr != nil || lngErr != nil {
			c.logger.Debug().Int64("place_id", r.PlaceID).Msg("skipping geocode result with bad coordinates")
			continue
		}
		results = append(results, places.GeocodeResult{Lat: lat, Lng: lng, DisplayName: r.DisplayName})
	}

	c.logger.Debug().Str("query", query).Int("results", len(results)).Msg("geocoded query")
	return results, nil
}
