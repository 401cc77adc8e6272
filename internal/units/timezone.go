package units

import (
	"fmt"
	"time"
)

// IsTimezoneValid reports whether tz names a location in the system tz
// database. LoadLocation treats "" as UTC, so the empty name is rejected
// explicitly.
func IsTimezoneValid(tz string) bool {
	if tz == "" {
		return false
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

// ConvertTime renders a stored UTC timestamp in the display timezone.
// Cycle rows carry UTC only; conversion happens at the API edge.
func ConvertTime(utcTime time.Time, targetTimezone string) (time.Time, error) {
	if targetTimezone == "UTC" {
		return utcTime, nil
	}
	loc, err := time.LoadLocation(targetTimezone)
	if err != nil {
		return utcTime, fmt.Errorf("load timezone %s: %w", targetTimezone, err)
	}
	return utcTime.In(loc), nil
}
