package osrm

// routeResponse is the body of a /route/v1 response.
type routeResponse struct {
	Code      string         `json:"code"`
	Message   string         `json:"message,omitempty"`
	Routes    []osrmRoute    `json:"routes"`
	Waypoints []snappedPoint `json:"waypoints,omitempty"`
}

// osrmRoute is one route alternative.
type osrmRoute struct {
	Geometry   string     `json:"geometry"`
	Distance   float64    `json:"distance"` // metres
	Duration   float64    `json:"duration"` // seconds
	WeightName string     `json:"weight_name,omitempty"`
	Legs       []routeLeg `json:"legs,omitempty"`
}

type routeLeg struct {
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
	Summary  string  `json:"summary,omitempty"`
}

// snappedPoint is an input coordinate snapped to the road network.
type snappedPoint struct {
	Name     string     `json:"name"`
	Location [2]float64 `json:"location"` // [lng, lat]
	Distance float64    `json:"distance"`
}

// OSRM response codes used for error mapping.
const (
	codeOK           = "Ok"
	codeNoRoute      = "NoRoute"
	codeNoSegment    = "NoSegment"
	codeInvalidQuery = "InvalidQuery"
	codeInvalidValue = "InvalidValue"
	codeTooBig       = "TooBig"
)
