package tasks

import "math"

const earthRadiusKm = 6371.0

// Near restricts the nearby view to tasks within RadiusKm of (Lat, Lng).
// A non-positive radius disables the filter.
type Near struct {
	Lat      float64
	Lng      float64
	RadiusKm float64
}

// distanceKm is the great-circle distance between two points, by the
// haversine formula.
func distanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	φ1 := lat1 * math.Pi / 180
	φ2 := lat2 * math.Pi / 180
	dφ := (lat2 - lat1) * math.Pi / 180
	dλ := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dφ/2)*math.Sin(dφ/2) + math.Cos(φ1)*math.Cos(φ2)*math.Sin(dλ/2)*math.Sin(dλ/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func (n *Near) contains(lat, lng float64) bool {
	if n == nil || n.RadiusKm <= 0 {
		return true
	}
	return distanceKm(n.Lat, n.Lng, lat, lng) <= n.RadiusKm
}
