package booking

import "time"

// Clock abstracts time for the booking engine.  Production code uses
// RealClock; tests inject a fixed or advancing clock.
type Clock interface {
	Now() time.Time
}

// RealClock reads the wall clock.
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }
