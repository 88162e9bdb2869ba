package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used by the haversine formula.
const EarthRadiusMeters = 6371000.0

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// Haversine computes the great-circle distance between two points in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := toRadians(lat1)
	lat2Rad := toRadians(lat2)
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// BoundsCenter returns the midpoint of a south-west/north-east box. Boxes that
// cross the antimeridian (west > east) are unwrapped before averaging.
func BoundsCenter(south, west, north, east float64) (lat, lng float64) {
	lat = (south + north) / 2
	if west > east {
		east += 360
	}
	lng = (west + east) / 2
	if lng > 180 {
		lng -= 360
	}
	return lat, lng
}
