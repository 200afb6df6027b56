package geo

import (
	"errors"
	"math"

	"github.com/travigo/corridor/pkg/ctdf"
)

const EarthRadiusMetres = 6371000.0

var ErrInvalidPoint = errors.New("coordinate is not a valid WGS84 point")

// Locatable is anything with a fixed position that can be spatially filtered
type Locatable interface {
	GetLocation() ctdf.GeoPoint
}

// DistanceMetres returns the haversine great-circle distance between two points.
// Invalid points never yield a distance.
func DistanceMetres(a ctdf.GeoPoint, b ctdf.GeoPoint) (float64, error) {
	if !a.Valid() || !b.Valid() {
		return 0, ErrInvalidPoint
	}

	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	deltaLat := toRadians(b.Latitude - a.Latitude)
	deltaLng := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(deltaLng/2)*math.Sin(deltaLng/2)

	// Floating point error can push h fractionally above 1 for antipodal points
	h = math.Min(1, math.Max(0, h))

	return 2 * EarthRadiusMetres * math.Asin(math.Sqrt(h)), nil
}

// WithinRadius returns the candidates whose location is at most radius metres from center
func WithinRadius[T Locatable](center ctdf.GeoPoint, radius float64, candidates []T) ([]T, error) {
	if !center.Valid() {
		return nil, ErrInvalidPoint
	}
	if math.IsNaN(radius) || radius < 0 {
		return nil, errors.New("radius must be a non-negative number")
	}

	var matches []T
	for _, candidate := range candidates {
		distance, err := DistanceMetres(center, candidate.GetLocation())
		if err != nil {
			continue
		}

		if distance <= radius {
			matches = append(matches, candidate)
		}
	}

	return matches, nil
}

func toRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
