// Package geo holds the GeoJSON point type and great-circle distance used by
// every geo index. Coordinates are always ordered [longitude, latitude].
package geo

import (
	"fmt"
	"math"
)

// PointType is the only GeoJSON geometry type accepted.
const PointType = "Point"

// Point is a GeoJSON point: {"type":"Point","coordinates":[lon, lat(, alt)]}.
type Point struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// NewPoint builds a point from longitude and latitude, in that order.
func NewPoint(lon, lat float64) Point {
	return Point{Type: PointType, Coordinates: []float64{lon, lat}}
}

// Lon returns the longitude, or NaN if the point has no coordinates.
func (p Point) Lon() float64 {
	if len(p.Coordinates) < 1 {
		return math.NaN()
	}
	return p.Coordinates[0]
}

// Lat returns the latitude, or NaN if the point has fewer than two coordinates.
func (p Point) Lat() float64 {
	if len(p.Coordinates) < 2 {
		return math.NaN()
	}
	return p.Coordinates[1]
}

func (p Point) String() string {
	return fmt.Sprintf("[%g, %g]", p.Lon(), p.Lat())
}

// Validate returns field-level messages keyed relative to the point, or nil
// when the point is a valid GeoJSON longitude/latitude(/altitude) position.
func (p Point) Validate() map[string]string {
	fields := map[string]string{}
	if p.Type != PointType {
		fields["type"] = `must be "Point"`
	}
	switch {
	case len(p.Coordinates) < 2 || len(p.Coordinates) > 3:
		fields["coordinates"] = "must contain longitude, latitude and optional altitude"
	case !isFinite(p.Coordinates...):
		fields["coordinates"] = "must be finite numbers"
	case !IsLongitude(p.Coordinates[0]):
		fields["coordinates"] = "longitude must be within [-180, 180]"
	case !IsLatitude(p.Coordinates[1]):
		fields["coordinates"] = "latitude must be within [-90, 90]"
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// Valid reports whether Validate finds no problems.
func (p Point) Valid() bool {
	return p.Validate() == nil
}

func IsLongitude(v float64) bool { return v >= -180 && v <= 180 }

func IsLatitude(v float64) bool { return v >= -90 && v <= 90 }

func isFinite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
