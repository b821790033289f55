package geo

import "math"

// earthRadiusMeters is the mean Earth radius used for great-circle distances.
const earthRadiusMeters = 6371000.0

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Fence is a named circular region used as a trigger condition.
type Fence struct {
	Name         string  `json:"name"`
	Address      *string `json:"address,omitempty"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RadiusMeters float64 `json:"radiusMeters"`
}

// Center returns the fence center as a coordinate.
func (f Fence) Center() Coordinate {
	return Coordinate{Lat: f.Latitude, Lng: f.Longitude}
}

// DistanceMeters returns the haversine great-circle distance between a and b.
func DistanceMeters(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	deltaLat := (b.Lat - a.Lat) * math.Pi / 180
	deltaLng := (b.Lng - a.Lng) * math.Pi / 180

	sinLat := math.Sin(deltaLat / 2)
	sinLng := math.Sin(deltaLng / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng

	// Floating point error can push h a hair outside [0,1]; clamp so
	// antipodal and coincident pairs never yield NaN.
	h = math.Max(0, math.Min(1, h))

	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Within reports whether point falls inside the fence radius.
func Within(point Coordinate, fence Fence) bool {
	return DistanceMeters(point, fence.Center()) <= fence.RadiusMeters
}
