// Package units provides shared constants and conversions for speed,
// angle, and timezone handling.
package units

import (
	"math"
	"strings"
)

// Display units accepted by the API.
const (
	MPS   = "mps"
	MPH   = "mph"
	KMPH  = "kmph"
	KPH   = "kph"
	Knots = "knots"
)

// MetersPerNauticalMile converts knots to m/s. GPS receivers report speed
// over ground in knots.
const MetersPerNauticalMile = 1852.0

// ValidUnits lists every accepted display unit.
var ValidUnits = []string{MPS, MPH, KMPH, KPH, Knots}

// IsValid reports whether unit is an accepted display unit.
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString renders the accepted units for error messages.
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ConvertSpeed converts a speed from meters per second to the target units.
// Speeds are stored in m/s; conversion happens at display time.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPS:
		return speedMPS
	case MPH:
		return speedMPS * 2.2369362920544
	case KMPH, KPH:
		return speedMPS * 3.6
	case Knots:
		return speedMPS * 3600 / MetersPerNauticalMile
	default:
		return speedMPS
	}
}

// FromKnots converts a speed in knots to meters per second.
func FromKnots(knots float64) float64 {
	return knots * MetersPerNauticalMile / 3600
}

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}
