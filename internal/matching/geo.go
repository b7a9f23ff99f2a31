package matching

import (
	"math"

	"github.com/reclaimhq/reclaim/internal/store"
)

const earthRadiusMeters = 6371000

// HaversineMeters returns the great-circle distance between two points in
// meters. It is the same formula the store evaluates in SQL for geo filtering.
func HaversineMeters(a, b store.GeoPoint) float64 {
	dLat := radians(b.Latitude - a.Latitude)
	dLon := radians(b.Longitude - a.Longitude)

	h := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(radians(a.Latitude))*math.Cos(radians(b.Latitude))*math.Pow(math.Sin(dLon/2), 2)

	return earthRadiusMeters * 2 * math.Asin(math.Sqrt(h))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

func validLatitude(lat float64) bool  { return lat >= -90 && lat <= 90 }
func validLongitude(lon float64) bool { return lon >= -180 && lon <= 180 }
