// Package system provides the wall clock used to stamp checkpoints and events.
package system

import "time"

// Clock implements crawler.Clock using time.Now in UTC.
type Clock struct {
	// Precision truncates every reading when positive.
	Precision time.Duration
}

// New creates a Clock with full precision.
func New() *Clock {
	return &Clock{}
}

// NewWithPrecision creates a Clock whose readings are truncated to p,
// keeping checkpoint files readable.
func NewWithPrecision(p time.Duration) *Clock {
	return &Clock{Precision: p}
}

// Now returns the current UTC time.
func (c Clock) Now() time.Time {
	now := time.Now().UTC()
	if c.Precision > 0 {
		now = now.Truncate(c.Precision)
	}
	return now
}
