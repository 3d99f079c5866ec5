package models

import "github.com/saferoute/saferoute/internal/crime"

// CrimeQuery holds the validated query parameters of GET /crime.
type CrimeQuery struct {
	Lat    *float64 `validate:"required,latitude"`
	Lng    *float64 `validate:"required,longitude"`
	Radius float64  `validate:"gte=0,lte=10000"`
}

// CrimeResponse is returned by GET /crime for locations the feed covers.
type CrimeResponse struct {
	Success        bool             `json:"success"`
	Coverage       string           `json:"coverage"`
	Total          int              `json:"total"`
	ByCategory     map[string]int   `json:"byCategory"`
	CrimeLocations []crime.Incident `json:"crimeLocations"`
	CrimeScore     int              `json:"crimeScore"`
	LastUpdated    *Timestamp       `json:"lastUpdated"`
	Limitations    []string         `json:"limitations"`
}

// CrimeOutOfCoverageResponse is returned by GET /crime outside coverage.
type CrimeOutOfCoverageResponse struct {
	Success     bool           `json:"success"`
	Coverage    string         `json:"coverage"`
	Message     string         `json:"message"`
	Total       int            `json:"total"`
	ByCategory  map[string]int `json:"byCategory"`
	CrimeScore  int            `json:"crimeScore"`
	LastUpdated *Timestamp     `json:"lastUpdated"`
}
