// Package places provides geocoding and nearby points of interest.
package places

import (
	"context"
	"errors"
)

// Sentinel errors for place lookups.
var (
	// ErrProviderUnavailable indicates the upstream service is down or the circuit breaker is open.
	ErrProviderUnavailable = errors.New("places provider unavailable")
	// ErrRateLimitExceeded indicates the upstream service rejected the request for quota reasons.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidQuery indicates the query was empty or malformed.
	ErrInvalidQuery = errors.New("invalid query")
)

// Geocoder resolves free-text queries to coordinates.
type Geocoder interface {
	Search(ctx context.Context, query string, limit int) ([]GeocodeResult, error)
	Name() string
}

// POISource finds points of interest around a coordinate.
type POISource interface {
	Nearby(ctx context.Context, lat, lng, radius float64, category Category) ([]Place, error)
	Name() string
}

// GeocodeResult is one geocoder match.
type GeocodeResult struct {
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	DisplayName string  `json:"display_name"`
}

// Category is the OSM top-level key used to select places.
type Category string

const (
	CategoryTourism  Category = "tourism"
	CategoryAmenity  Category = "amenity"
	CategoryHistoric Category = "historic"
	CategoryLeisure  Category = "leisure"
)

// ParseCategory maps a query value to a Category. Empty means tourism.
func ParseCategory(s string) (Category, bool) {
	switch Category(s) {
	case "":
		return CategoryTourism, true
	case CategoryTourism, CategoryAmenity, CategoryHistoric, CategoryLeisure:
		return Category(s), true
	default:
		return "", false
	}
}

// Place is a point of interest. Optional OSM tags are nil when absent.
type Place struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
	Kind     string   `json:"kind"` // value of the category tag, e.g. "museum"
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`

	Website      *string  `json:"website,omitempty"`
	Phone        *string  `json:"phone,omitempty"`
	OpeningHours *string  `json:"openingHours,omitempty"`
	Wikipedia    *string  `json:"wikipedia,omitempty"`
	Image        *string  `json:"image,omitempty"`
	Cuisine      *string  `json:"cuisine,omitempty"`
	Wheelchair   *bool    `json:"wheelchair,omitempty"`
	Fee          *bool    `json:"fee,omitempty"`
	Address      *Address `json:"address,omitempty"`
}

// Address holds the addr:* tags of a place.
type Address struct {
	HouseNumber string `json:"houseNumber,omitempty"`
	Street      string `json:"street,omitempty"`
	City        string `json:"city,omitempty"`
	Postcode    string `json:"postcode,omitempty"`
}

// Error provides detailed error information from a places provider.
type Error struct {
	Provider string // Provider that generated the error
	Code     string // Error code from the provider
	Message  string // Human-readable error message
	Err      error  // Underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}
