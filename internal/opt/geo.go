package opt

import "math"

const (
	earthRadiusKm = 6371.0
	// DefaultSpeedKmh is the flat effective urban speed behind every travel estimate.
	DefaultSpeedKmh = 40.0
)

// DistanceKm is the haversine great-circle distance between two coordinates.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	if lat1 == lat2 && lon1 == lon2 {
		return 0
	}
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// TravelMinutes converts a distance into whole minutes at DefaultSpeedKmh, rounding up.
func TravelMinutes(km float64) int {
	return int(math.Ceil(km / DefaultSpeedKmh * 60))
}
