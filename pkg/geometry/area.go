package geometry

import (
	"math"

	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
)

// EarthRadiusKm is the mean Earth radius used for area conversion.
const EarthRadiusKm = 6371.0088

// AreaKm2 returns the spherical area enclosed by the ring in square
// kilometres. Orientation does not matter. Degenerate rings have zero area.
func AreaKm2(ring orb.Ring) float64 {
	pts := make([]s2.Point, 0, len(ring))
	for i, p := range ring {
		if i == len(ring)-1 && len(ring) > 1 && p == ring[0] {
			break
		}
		if i > 0 && p == ring[i-1] {
			continue
		}
		pts = append(pts, s2.PointFromLatLng(s2.LatLngFromDegrees(p[1], p[0])))
	}
	if len(pts) < 3 {
		return 0
	}

	area := s2.LoopFromPoints(pts).Area()
	if area > 2*math.Pi {
		area = 4*math.Pi - area
	}
	return area * EarthRadiusKm * EarthRadiusKm
}
