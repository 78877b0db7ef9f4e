package model

import (
	"fmt"
	"math"
)

// Coordinates is a WGS84 position in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate checks the coordinates are finite and within the WGS84 ranges.
func (c Coordinates) Validate() error {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
		return &ValidationError{Field: "coordinates", Reason: fmt.Sprintf("(%g, %g) out of range", c.Lat, c.Lon)}
	}
	return nil
}

// Depot is the single origin and terminus of every route of the fleet.
type Depot struct {
	ID       int64       `json:"id"`
	Location Coordinates `json:"location"`
}

// Truck is a vehicle of the fleet. Position is refreshed by telemetry, the
// available capacity by planning and completion events.
type Truck struct {
	ID                int64       `json:"id"`
	Capacity          int         `json:"capacity"`
	AvailableCapacity int         `json:"available_capacity"`
	Position          Coordinates `json:"position"`
}

// Validate checks the capacity bookkeeping of the truck.
func (t Truck) Validate() error {
	if t.Capacity <= 0 {
		return &ValidationError{Field: "capacity", Reason: "must be positive"}
	}
	if t.AvailableCapacity < 0 || t.AvailableCapacity > t.Capacity {
		return &ValidationError{Field: "available_capacity", Reason: fmt.Sprintf("%d outside [0, %d]", t.AvailableCapacity, t.Capacity)}
	}
	return t.Position.Validate()
}

// CanCarry reports whether the free load of the truck covers demand.
func (t Truck) CanCarry(demand int) bool {
	return t.AvailableCapacity >= demand
}

// ValidationError reports malformed input on a single field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
