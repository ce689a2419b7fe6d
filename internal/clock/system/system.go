// Package system supplies the wall clock used for job and page timestamps.
package system

import "time"

// Precision matches Postgres timestamptz, so a time written to the page log
// reads back unchanged.
const Precision = time.Microsecond

// Clock reports UTC wall-clock time truncated to Precision.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(Precision)
}
