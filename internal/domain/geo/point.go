package geo

import (
	"errors"
	"math"
	"time"
)

var (
	ErrInvalidLatitude  = errors.New("latitude must be between -90 and 90")
	ErrInvalidLongitude = errors.New("longitude must be between -180 and 180")
	ErrNotANumber       = errors.New("coordinates must be finite numbers")
)

// Point is a bare latitude/longitude pair in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks that the point is finite and within WGS84 ranges.
func (point Point) Validate() error {
	if math.IsNaN(point.Lat) || math.IsNaN(point.Lng) || math.IsInf(point.Lat, 0) || math.IsInf(point.Lng, 0) {
		return ErrNotANumber
	}
	if point.Lat < -90 || point.Lat > 90 {
		return ErrInvalidLatitude
	}
	if point.Lng < -180 || point.Lng > 180 {
		return ErrInvalidLongitude
	}
	return nil
}

// Valid is Validate() == nil.
func (point Point) Valid() bool {
	return point.Validate() == nil
}

// Position is a single device reading. Only the newest one matters.
type Position struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Accuracy   *float64  `json:"accuracy,omitempty"` // meters, when the backend reports it
	CapturedAt time.Time `json:"captured_at"`
	Source     string    `json:"source,omitempty"` // backend that produced the reading
}

// Point drops everything but the coordinates.
func (position Position) Point() Point {
	return Point{Lat: position.Lat, Lng: position.Lng}
}

// Validate checks coordinates and that the reading carries a timestamp.
func (position Position) Validate() error {
	if err := position.Point().Validate(); err != nil {
		return err
	}
	if position.CapturedAt.IsZero() {
		return ErrMissingTimestamp
	}
	return nil
}

// NewerThan reports whether position was captured after other.
func (position Position) NewerThan(other Position) bool {
	return position.CapturedAt.After(other.CapturedAt)
}
