package geo

import (
	"github.com/amendezcabrera/villagelink-backend/pkg/types"
)

// Contains reports whether the point lies inside the polygon using the
// even-odd ray casting rule. Points exactly on an edge may land on either
// side; village zones are drawn with enough margin that this does not matter.
func Contains(polygon types.Polygon, point types.LatLng) bool {
	if len(polygon) < 3 {
		return false
	}

	inside := false
	j := len(polygon) - 1
	for i := 0; i < len(polygon); i++ {
		pi, pj := polygon[i], polygon[j]
		if (pi.Lat > point.Lat) != (pj.Lat > point.Lat) {
			intersect := (pj.Lng-pi.Lng)*(point.Lat-pi.Lat)/(pj.Lat-pi.Lat) + pi.Lng
			if point.Lng < intersect {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}
