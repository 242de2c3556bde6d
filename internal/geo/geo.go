// Package geo provides coordinate types, great-circle distance computation,
// and postal-code geocoding for lead/rep distance matching.
package geo

import "math"

// earthRadiusMiles is the mean sphere radius used for haversine distance.
const earthRadiusMiles = 3959.0

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DistanceMiles returns the haversine (great-circle) distance between two
// coordinate pairs in miles. Pure function; commercial-GPS-grade accuracy
// is sufficient, no ellipsoidal correction.
func DistanceMiles(a, b Coordinates) float64 {
	latA := radians(a.Lat)
	latB := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)

	h := sinLat*sinLat + math.Cos(latA)*math.Cos(latB)*sinLng*sinLng
	return 2 * earthRadiusMiles * math.Asin(math.Sqrt(h))
}

// RoundMiles rounds a distance to one decimal for audit/display.
func RoundMiles(miles float64) float64 {
	return math.Round(miles*10) / 10
}

func radians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
