// Package system provides the wall clock used to stamp raw documents and runs.
package system

import "time"

// Clock implements vacancy.Clock using time.Now truncated to milliseconds,
// the resolution BSON dates keep.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// Fixed is a Clock that always reports the same instant.
type Fixed time.Time

// Now returns the fixed instant.
func (f Fixed) Now() time.Time {
	return time.Time(f)
}
