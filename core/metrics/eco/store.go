// Package eco keeps a per vehicle and per day ledger of delivery emissions.
package eco

import "time"

// Store persists emission records. Add accumulates into the vehicle's day.
// Query with an empty vehicleID returns every vehicle.
type Store interface {
	Add(Record) error
	Query(vehicleID string, start, end time.Time) ([]Record, error)
}

// Day aligns t to the start of its day in UTC.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
