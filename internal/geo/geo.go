// Package geo provides great-circle distance helpers for nearby discovery.
package geo

import (
	"errors"
	"math"
)

// EarthRadiusKM is the mean earth radius used for distances.
const EarthRadiusKM = 6371.0

// MaxRadiusKM bounds nearby searches.
const MaxRadiusKM = 500.0

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64
	Lng float64
}

// Box is a latitude/longitude bounding box in degrees.
type Box struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
	// WrapsLng is set when the box crosses the antimeridian; the longitude
	// range is then [MinLng, 180] plus [-180, MaxLng].
	WrapsLng bool
	// Center is the point the box was built around.
	Center Point
}

var (
	ErrLatitudeRange  = errors.New("latitude must be between -90 and 90")
	ErrLongitudeRange = errors.New("longitude must be between -180 and 180")
	ErrPartialCoords  = errors.New("latitude and longitude must be provided together")
)

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

// DistanceKM returns the haversine distance between a and b in kilometers.
func DistanceKM(a, b Point) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	return EarthRadiusKM * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// BoundingBox returns a box that contains every point within radiusKM of
// center. It over-approximates, so callers still filter by DistanceKM.
func BoundingBox(center Point, radiusKM float64) Box {
	angular := radiusKM / EarthRadiusKM
	dLat := angular * 180 / math.Pi
	box := Box{
		MinLat: math.Max(center.Lat-dLat, -90),
		MaxLat: math.Min(center.Lat+dLat, 90),
		Center: center,
	}

	// Near the poles every longitude is in range.
	cosLat := math.Cos(toRad(center.Lat))
	if box.MinLat <= -90 || box.MaxLat >= 90 || cosLat < 1e-9 {
		box.MinLng, box.MaxLng = -180, 180
		return box
	}

	// The widest longitude offset on the circle is asin(sin(d)/cos(lat)),
	// reached north or south of the center's parallel.
	ratio := math.Sin(angular) / cosLat
	if ratio >= 1 {
		box.MinLng, box.MaxLng = -180, 180
		return box
	}
	dLng := math.Asin(ratio) * 180 / math.Pi
	if dLng >= 180 {
		box.MinLng, box.MaxLng = -180, 180
		return box
	}
	box.MinLng = center.Lng - dLng
	box.MaxLng = center.Lng + dLng
	if box.MinLng < -180 {
		box.MinLng += 360
		box.WrapsLng = true
	}
	if box.MaxLng > 180 {
		box.MaxLng -= 360
		box.WrapsLng = true
	}
	return box
}

// Contains reports whether p lies inside the box.
func (b Box) Contains(p Point) bool {
	if p.Lat < b.MinLat || p.Lat > b.MaxLat {
		return false
	}
	if b.WrapsLng {
		return p.Lng >= b.MinLng || p.Lng <= b.MaxLng
	}
	return p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

// ValidatePoint checks coordinate ranges.
func ValidatePoint(p Point) error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return ErrLatitudeRange
	}
	if math.IsNaN(p.Lng) || p.Lng < -180 || p.Lng > 180 {
		return ErrLongitudeRange
	}
	return nil
}

// ValidateOptional checks a nullable coordinate pair: both nil, or both set
// and in range.
func ValidateOptional(lat, lng *float64) error {
	if lat == nil && lng == nil {
		return nil
	}
	if lat == nil || lng == nil {
		return ErrPartialCoords
	}
	return ValidatePoint(Point{Lat: *lat, Lng: *lng})
}

// ClampRadius applies the default to non-positive radii and caps at MaxRadiusKM.
func ClampRadius(radiusKM, fallback float64) float64 {
	if radiusKM <= 0 || math.IsNaN(radiusKM) {
		radiusKM = fallback
	}
	if radiusKM <= 0 {
		radiusKM = 10
	}
	return math.Min(radiusKM, MaxRadiusKM)
}
