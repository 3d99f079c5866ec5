package crime

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// areaVertices is the number of polygon vertices used to approximate a circle.
const areaVertices = 12

// SearchArea returns a closed ring approximating a circle of radius metres
// centred on (lat, lng).
func SearchArea(lat, lng, radius float64) orb.Ring {
	center := orb.Point{lng, lat}
	ring := make(orb.Ring, 0, areaVertices+1)
	for i := 0; i < areaVertices; i++ {
		bearing := float64(i) * 360 / areaVertices
		ring = append(ring, geo.PointAtBearingAndDistance(center, bearing, radius))
	}
	return append(ring, ring[0])
}
