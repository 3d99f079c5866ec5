// Package overpass provides a client for the Overpass API that returns
// nearby points of interest as typed places.
package overpass

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/osm"
	"github.com/rs/zerolog"

	"github.com/saferoute/saferoute/internal/places"
	"github.com/saferoute/saferoute/internal/provider/resilience"
)

const (
	// ProviderName identifies this POI provider.
	ProviderName = "overpass"

	// DefaultBaseURL is the main public Overpass instance.
	DefaultBaseURL = "https://overpass-api.de/api"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 25 * time.Second

	// maxResults caps the number of elements requested.
	maxResults = 50
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Overpass client.
type ClientConfig struct {
	BaseURL    string
	HTTPClient HTTPDoer
	Timeout    time.Duration
	UserAgent  string
	Registry   *resilience.Registry
	Logger     zerolog.Logger
}

// Client is an Overpass API client.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	timeout    time.Duration
	logger     zerolog.Logger
}

// NewClient creates a new Overpass client.
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
		// Overpass asks clients to back off rather than hammer a busy server.
		clientCfg.MaxRetries = 1
		clientCfg.InitialInterval = time.Second
		clientCfg.UserAgent = cfg.UserAgent
		clientCfg.Registry = cfg.Registry
		clientCfg.Logger = &cfg.Logger
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		timeout:    timeout,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Query builds the Overpass QL for named nodes of category around a point.
func Query(lat, lng, radius float64, category places.Category, timeout time.Duration) string {
	return fmt.Sprintf("[out:xml][timeout:%d];node[%q][\"name\"](around:%.0f,%.6f,%.6f);out %d;",
		int(timeout.Seconds()), string(category), radius, lat, lng, maxResults)
}

// Nearby returns named nodes tagged with category within radius metres.
func (c *Client) Nearby(ctx context.Context, lat, lng, radius float64, category places.Category) ([]places.Place, error) {
	form := url.Values{}
	form.Set("data", Query(lat, lng, radius, category, c.timeout))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/interpreter", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &places.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach Overpass",
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
		return nil, &places.Error{Provider: ProviderName, Code: "RATE_LIMIT", Message: "Overpass rate limit exceeded", Err: places.ErrRateLimitExceeded}
	case resp.StatusCode == http.StatusBadRequest:
		return nil, &places.Error{Provider: ProviderName, Code: "BAD_QUERY", Message: "Overpass rejected the query", Err: places.ErrInvalidQuery}
	case resp.StatusCode != http.StatusOK:
		return nil, &places.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Message:  fmt.Sprintf("Overpass returned status %d", resp.StatusCode),
			Err:      places.ErrProviderUnavailable,
		}
	}

	var data osm.OSM
	if err := xml.Unmarshal(body, &data); err != nil {
		return nil, &places.Error{
			Provider: ProviderName,
			Code:     "DECODE_FAILED",
			Message:  "Overpass returned an unreadable response",
			Err:      fmt.Errorf("%w: %w", places.ErrProviderUnavailable, err),
		}
	}

	result := make([]places.Place, 0, len(data.Nodes))
	for _, n := range data.Nodes {
		result = append(result, ToPlace(n, category))
	}

	c.logger.Debug().
		Str("category", string(category)).
		Int("places", len(result)).
		Msg("received places from Overpass")

	return result, nil
}

// ToPlace converts an OSM node into a Place, reading only known tags.
func ToPlace(n *osm.Node, category places.Category) places.Place {
	p := n.Point()
	place := places.Place{
		ID:       int64(n.ID),
		Name:     n.Tags.Find("name"),
		Category: category,
		Kind:     n.Tags.Find(string(category)),
		Lat:      p.Lat(),
		Lng:      p.Lon(),

		Website:      optional(n.Tags, "website", "contact:website"),
		Phone:        optional(n.Tags, "phone", "contact:phone"),
		OpeningHours: optional(n.Tags, "opening_hours"),
		Wikipedia:    optional(n.Tags, "wikipedia"),
		Image:        optional(n.Tags, "image"),
		Cuisine:      optional(n.Tags, "cuisine"),
		Wheelchair:   yesNo(n.Tags, "wheelchair"),
		Fee:          yesNo(n.Tags, "fee"),
	}

	addr := places.Address{
		HouseNumber: n.Tags.Find("addr:housenumber"),
		Street:      n.Tags.Find("addr:street"),
		City:        n.Tags.Find("addr:city"),
		Postcode:    n.Tags.Find("addr:postcode"),
	}
	if addr != (places.Address{}) {
		place.Address = &addr
	}

	return place
}

// optional returns the first non-empty tag among keys.
func optional(tags osm.Tags, keys ...string) *string {
	for _, k := range keys {
		if v := tags.Find(k); v != "" {
			return &v
		}
	}
	return nil
}

// yesNo reads a yes/no tag. Values other than yes and no ("limited") are nil.
func yesNo(tags osm.Tags, key string) *bool {
	var b bool
	switch tags.Find(key) {
	case "yes":
		b = true
	case "no":
		b = false
	default:
		return nil
	}
	return &b
}
