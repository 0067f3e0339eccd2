package calculator

import (
	"math"
)

const (
	KmPerLat        = 111.325 // km per degree of latitude
	KmPerLngEquator = 111.12  // km per degree of longitude at the equator
)

// Projection holds the scale constants of the equirectangular approximation.
type Projection struct {
	KmPerLat float64
	KmPerLng float64
}

// DefaultProjection returns the standard constants.
func DefaultProjection() Projection {
	return Projection{KmPerLat: KmPerLat, KmPerLng: KmPerLngEquator}
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// LngScale returns km per degree of longitude at the given latitude.
func (p Projection) LngScale(lat float64) float64 {
	return p.KmPerLng * math.Cos(toRadians(lat))
}

// Project maps a coordinate to planar km. x is east-west, y north-south.
// Out of range or NaN input is not rejected.
func (p Projection) Project(lat, lng float64) (x, y float64) {
	return lng * p.LngScale(lat), lat * p.KmPerLat
}
