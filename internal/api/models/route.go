package models

import (
	"github.com/paulmach/orb"

	"github.com/saferoute/saferoute/internal/planner"
)

// RouteRequest is the body of POST /route.
type RouteRequest struct {
	Waypoints []planner.WaypointInput `json:"waypoints"`
	Mode      string                  `json:"mode,omitempty"`
	PathType  string                  `json:"pathType,omitempty"`
}

// RouteResponse is returned by POST /route.
type RouteResponse struct {
	Success   bool         `json:"success"`
	Route     Route        `json:"route"`
	Waypoints []Coordinate `json:"waypoints"`
	Mode      string       `json:"mode"`
	PathType  string       `json:"pathType"`
	Note      string       `json:"note"`
}

// Route is the computed path. Geometry marshals as a bare [[lng, lat], ...] array.
type Route struct {
	Geometry    orb.LineString `json:"geometry"`
	Distance    float64        `json:"distance"`
	Duration    float64        `json:"duration"`
	RiskScore   *int           `json:"riskScore"`
	DistanceKm  string         `json:"distanceKm"`
	DurationMin int            `json:"durationMin"`
	IsSynthetic bool           `json:"isSynthetic"`
	Provider    string         `json:"provider"`
}
