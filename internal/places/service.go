package places

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/saferoute/saferoute/internal/cache"
	"github.com/saferoute/saferoute/internal/telemetry"
)

const (
	// DefaultLimit is the number of geocoder matches returned.
	DefaultLimit = 5

	// DefaultRadius is the POI search radius in metres.
	DefaultRadius = 1000.0

	// MaxRadius bounds POI searches to keep Overpass queries cheap.
	MaxRadius = 5000.0
)

// ServiceConfig holds configuration for the places service.
type ServiceConfig struct {
	Geocoder Geocoder
	POI      POISource

	// Store caches lookups. If nil, an in-memory store is used.
	Store cache.Store

	// Logger for service operations.
	Logger zerolog.Logger

	// GeocodeTTL is how long geocoder results are cached (default: 24 hours).
	GeocodeTTL time.Duration

	// PlacesTTL is how long POI results are cached (default: 1 hour).
	PlacesTTL time.Duration

	// CacheGridSize is the size of POI cache grid cells in degrees (default: 0.001 ~ 110m).
	CacheGridSize float64

	// Metrics is optional.
	Metrics *telemetry.Metrics
}

// Service provides geocoding and POI lookups with caching.
type Service struct {
	geocoder      Geocoder
	poi           POISource
	store         cache.Store
	logger        zerolog.Logger
	geocodeTTL    time.Duration
	placesTTL     time.Duration
	cacheGridSize float64
	metrics       *telemetry.Metrics
}

// NewService creates a new places service.
func NewService(cfg ServiceConfig) *Service {
	store := cfg.Store
	if store == nil {
		store = cache.NewMemory()
	}

	geocodeTTL := cfg.GeocodeTTL
	if geocodeTTL == 0 {
		geocodeTTL = 24 * time.Hour
	}

	placesTTL := cfg.PlacesTTL
	if placesTTL == 0 {
		placesTTL = time.Hour
	}

	cacheGridSize := cfg.CacheGridSize
	if cacheGridSize == 0 {
		cacheGridSize = 0.001
	}

	return &Service{
		geocoder:      cfg.Geocoder,
		poi:           cfg.POI,
		store:         store,
		logger:        cfg.Logger,
		geocodeTTL:    geocodeTTL,
		placesTTL:     placesTTL,
		cacheGridSize: cacheGridSize,
		metrics:       cfg.Metrics,
	}
}

// Geocode resolves a free-text query.
func (s *Service) Geocode(ctx context.Context, query string) ([]GeocodeResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &Error{Provider: s.geocoder.Name(), Code: "EMPTY_QUERY", Message: "query is required", Err: ErrInvalidQuery}
	}

	key := "geocode:" + strings.ToLower(query)
	if cached, err := cache.GetJSON[[]GeocodeResult](ctx, s.store, key); err == nil {
		s.metrics.CacheLookup(ctx, "geocode", true)
		return cached, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn().Err(err).Str("cache_key", key).Msg("geocode cache read failed")
	}
	s.metrics.CacheLookup(ctx, "geocode", false)

	start := time.Now()
	results, err := s.geocoder.Search(ctx, query, DefaultLimit)
	s.metrics.ProviderCall(ctx, s.geocoder.Name(), time.Since(start), err)
	if err != nil {
		s.logger.Error().Err(err).Str("provider", s.geocoder.Name()).Msg("geocode failed")
		return nil, err
	}

	if err := cache.SetJSON(ctx, s.store, key, results, s.geocodeTTL); err != nil {
		s.logger.Warn().Err(err).Str("cache_key", key).Msg("geocode cache write failed")
	}
	return results, nil
}

// Nearby returns points of interest within radius metres of (lat, lng).
func (s *Service) Nearby(ctx context.Context, lat, lng, radius float64, category Category) ([]Place, error) {
	if radius <= 0 {
		radius = DefaultRadius
	}
	radius = math.Min(radius, MaxRadius)

	key := fmt.Sprintf("places:%s:%.0f:%d,%d", category, radius,
		cache.GridCell(lat, s.cacheGridSize), cache.GridCell(lng, s.cacheGridSize))

	if cached, err := cache.GetJSON[[]Place](ctx, s.store, key); err == nil {
		s.metrics.CacheLookup(ctx, "places", true)
		return cached, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn().Err(err).Str("cache_key", key).Msg("places cache read failed")
	}
	s.metrics.CacheLookup(ctx, "places", false)

	start := time.Now()
	found, err := s.poi.Nearby(ctx, lat, lng, radius, category)
	s.metrics.ProviderCall(ctx, s.poi.Name(), time.Since(start), err)
	if err != nil {
		s.logger.Error().Err(err).
			Str("provider", s.poi.Name()).
			Str("category", string(category)).
			Msg("places lookup failed")
		return nil, err
	}

	if err := cache.SetJSON(ctx, s.store, key, found, s.placesTTL); err != nil {
		s.logger.Warn().Err(err).Str("cache_key", key).Msg("places cache write failed")
	}
	return found, nil
}
