// README: Geographic point value object shared by the zone catalog, feeds and attribution.
package types

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidCoordinate marks a latitude/longitude outside the WGS84 range.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Point is a WGS84 position in decimal degrees.
type Point struct {
	Lat float64
	Lng float64
}

// InvalidCoordinateError reports the offending point. It matches ErrInvalidCoordinate.
type InvalidCoordinateError struct {
	Point Point
}

func (e *InvalidCoordinateError) Error() string {
	return fmt.Sprintf("invalid coordinate (lat=%v, lng=%v)", e.Point.Lat, e.Point.Lng)
}

func (e *InvalidCoordinateError) Unwrap() error { return ErrInvalidCoordinate }

// Validate rejects NaN and out-of-range coordinates.
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) ||
		p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
		return &InvalidCoordinateError{Point: p}
	}
	return nil
}
