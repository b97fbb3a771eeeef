// Package geo provides great-circle distance and geohash helpers.
package geo

import (
	"math"

	"github.com/UnknownOlympus/hermes/internal/models"
)

// EarthRadiusKm is the mean radius of the Earth in kilometers.
const EarthRadiusKm = 6371.0

// DistanceKm calculates the distance between two points in kilometers using the haversine formula.
// Inputs must be valid coordinates; the result for NaN or out-of-range values is undefined.
func DistanceKm(a, b models.Coordinates) float64 {
	if a == b {
		return 0
	}

	lat1 := degToRad(a.Latitude)
	lat2 := degToRad(b.Latitude)
	dLat := lat2 - lat1
	dLon := degToRad(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func degToRad(deg float64) float64 {
	return deg * math.Pi / 180.0
}
