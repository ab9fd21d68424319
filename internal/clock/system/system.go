// Package system provides a real clock implementation.
package system

import "time"

// Clock implements fetch.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current local time. Export file names carry local
// timestamps so they line up with the agency's reporting day.
func (Clock) Now() time.Time {
	return time.Now()
}
