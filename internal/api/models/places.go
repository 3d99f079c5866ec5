package models

import "github.com/saferoute/saferoute/internal/places"

// GeocodeQuery holds the validated query parameters of GET /geocode.
type GeocodeQuery struct {
	Q string `validate:"required,max=200"`
}

// GeocodeResponse is returned by GET /geocode.
type GeocodeResponse struct {
	Success bool                   `json:"success"`
	Results []places.GeocodeResult `json:"results"`
}

// PlacesQuery holds the validated query parameters of GET /places.
type PlacesQuery struct {
	Lat      *float64 `validate:"required,latitude"`
	Lng      *float64 `validate:"required,longitude"`
	Radius   float64  `validate:"gte=0,lte=5000"`
	Category string   `validate:"omitempty,oneof=tourism amenity historic leisure"`
}

// PlacesResponse is returned by GET /places.
type PlacesResponse struct {
	Success bool           `json:"success"`
	Places  []places.Place `json:"places"`
}
