package routing

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// SyntheticProvider is the Route.Provider value for generated geometry.
const SyntheticProvider = "synthetic"

// SyntheticSteps is the number of interpolation steps per leg.
const SyntheticSteps = 20

// curvature is the perpendicular offset applied to interpolated points.
// Amplitude is in degrees; frequency is the number of half waves per leg.
type curvature struct {
	amplitude float64
	frequency float64
}

var curvatures = map[Mode]curvature{
	ModeCar:  {amplitude: 0.0005, frequency: 2},
	ModeBike: {amplitude: 0.001, frequency: 3},
	ModeFoot: {amplitude: 0.0015, frequency: 4},
}

// GenerateSynthetic fabricates a road-like path through every waypoint.
// Each leg is linearly interpolated in SyntheticSteps steps and bent by a
// sinusoidal offset perpendicular to the leg. The first and last points are
// exactly the first and last waypoints.
func GenerateSynthetic(waypoints []Waypoint, mode Mode) (*Route, error) {
	if len(waypoints) < 2 {
		return nil, ErrTooFewWaypoints
	}

	curve, ok := curvatures[mode]
	if !ok {
		curve = curvatures[ModeCar]
	}

	line := make(orb.LineString, 0, (len(waypoints)-1)*SyntheticSteps+1)
	line = append(line, waypoints[0].Point())

	for i := 0; i+1 < len(waypoints); i++ {
		from := waypoints[i].Point()
		to := waypoints[i+1].Point()
		for step := 1; step < SyntheticSteps; step++ {
			t := float64(step) / SyntheticSteps
			line = append(line, bend(from, to, t, curve))
		}
		line = append(line, to)
	}

	distance := geo.LengthHaversine(line)

	return &Route{
		Geometry:        line,
		DistanceMeters:  distance,
		DurationSeconds: distance / NominalSpeed(mode),
		IsSynthetic:     true,
		Provider:        SyntheticProvider,
	}, nil
}

// bend returns the point at fraction t along from->to, offset sideways.
func bend(from, to orb.Point, t float64, curve curvature) orb.Point {
	dx := to[0] - from[0]
	dy := to[1] - from[1]
	p := orb.Point{from[0] + dx*t, from[1] + dy*t}

	length := math.Hypot(dx, dy)
	if length == 0 {
		return p
	}

	offset := curve.amplitude * math.Sin(curve.frequency*math.Pi*t)
	// unit normal to the leg
	p[0] += -dy / length * offset
	p[1] += dx / length * offset
	return p
}
