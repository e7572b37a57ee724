package access

import "time"

// Clock supplies the current time. Injected so that expiry decisions are
// testable without wall-clock tricks beyond choosing now.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant. For tests and demos.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }
