// Package geo holds the pure distance and containment math used for zone
// resolution.  Nothing here has state or performs I/O.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/s2"
	"github.com/shopspring/decimal"

	"github.com/BrandonDHaskell/geowatch/internal/geowatch/fault"
)

// EarthRadiusMeters is the spherical model radius used for every distance.
const EarthRadiusMeters = 6371000.0

// ErrInvalidCoordinate is wrapped by the ValidationError returned from Validate.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Point is a latitude/longitude pair in degrees.  Zone centers are kept as
// fixed-point decimals so repeated comparisons against stored geometry do
// not drift.
type Point struct {
	Lat decimal.Decimal
	Lon decimal.Decimal
}

// PointFromFloat builds a Point from float degrees.
func PointFromFloat(lat, lon float64) Point {
	return Point{Lat: decimal.NewFromFloat(lat), Lon: decimal.NewFromFloat(lon)}
}

// ParsePoint parses decimal strings as stored by the SQLite layer.
func ParsePoint(lat, lon string) (Point, error) {
	la, err := decimal.NewFromString(lat)
	if err != nil {
		return Point{}, fmt.Errorf("parse latitude %q: %w", lat, err)
	}
	lo, err := decimal.NewFromString(lon)
	if err != nil {
		return Point{}, fmt.Errorf("parse longitude %q: %w", lon, err)
	}
	return Point{Lat: la, Lon: lo}, nil
}

func (p Point) Degrees() (lat, lon float64) {
	return p.Lat.InexactFloat64(), p.Lon.InexactFloat64()
}

func (p Point) latLng() s2.LatLng {
	lat, lon := p.Degrees()
	return s2.LatLngFromDegrees(lat, lon)
}

func (p Point) String() string {
	return p.Lat.String() + "," + p.Lon.String()
}

// DistanceMeters returns the haversine great-circle distance between a and b.
// s2.LatLng.Distance evaluates the haversine formula on the unit sphere.
// Its rounding depends on argument order, so the points are ordered by
// latitude then longitude first and the result is exactly symmetric.
func DistanceMeters(a, b Point) float64 {
	x, y := a.latLng(), b.latLng()
	if y.Lat < x.Lat || (y.Lat == x.Lat && y.Lng < x.Lng) {
		x, y = y, x
	}
	return x.Distance(y).Radians() * EarthRadiusMeters
}

// IsWithin reports whether p lies inside the circle around center with the
// given radius widened by tolerance.  Tolerance is validated upstream and
// never negative here.
func IsWithin(center Point, radiusMeters float64, p Point, toleranceMeters float64) bool {
	return DistanceMeters(center, p) <= radiusMeters+toleranceMeters
}

// Validate rejects NaN, infinite and out-of-range coordinates.
func Validate(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || lat < -90 || lat > 90 {
		return &fault.ValidationError{Field: "lat", Reason: fmt.Sprintf("latitude %v out of range", lat), Err: ErrInvalidCoordinate}
	}
	if math.IsNaN(lon) || math.IsInf(lon, 0) || lon < -180 || lon > 180 {
		return &fault.ValidationError{Field: "lon", Reason: fmt.Sprintf("longitude %v out of range", lon), Err: ErrInvalidCoordinate}
	}
	return nil
}
