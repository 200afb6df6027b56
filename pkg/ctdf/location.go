package ctdf

import "math"

// GeoPoint is a WGS84 position. Heading, speed and accuracy are optional
// and only carried through to observers.
type GeoPoint struct {
	Latitude  float64 `json:"lat" yaml:"lat" groups:"basic"`
	Longitude float64 `json:"lng" yaml:"lng" groups:"basic"`

	Heading  *float64 `json:"heading,omitempty" yaml:"heading,omitempty" groups:"detailed"`
	Speed    *float64 `json:"speed,omitempty" yaml:"speed,omitempty" groups:"detailed"`
	Accuracy *float64 `json:"accuracy,omitempty" yaml:"accuracy,omitempty" groups:"detailed"`
}

func NewGeoPoint(latitude float64, longitude float64) GeoPoint {
	return GeoPoint{Latitude: latitude, Longitude: longitude}
}

// Valid reports whether the point is a finite coordinate inside the WGS84 range
func (p GeoPoint) Valid() bool {
	if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) || math.IsInf(p.Latitude, 0) || math.IsInf(p.Longitude, 0) {
		return false
	}

	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}
