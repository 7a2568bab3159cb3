package geo

import "math"

// EarthRadiusMeters is the mean Earth radius of the sphere model.
const EarthRadiusMeters = 6371008.8

// Distance returns the great-circle distance in meters between a and b using
// the haversine formula. Identical points are exactly 0 apart.
func Distance(a, b Point) float64 {
	lat1 := radians(a.Lat())
	lat2 := radians(b.Lat())
	dLat := lat2 - lat1
	dLon := radians(b.Lon() - a.Lon())

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	if h > 1 {
		h = 1
	}
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

// Covers reports whether target lies inside the disk of radius meters
// centred on center.
func Covers(center Point, radius float64, target Point) bool {
	return Distance(center, target) <= radius
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
