package clock

import "time"

// Func returns the current time. Services call it once per operation.
type Func func() time.Time

// Now is the production clock. Microsecond precision matches what the
// Postgres timestamptz columns round-trip.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// OrNow returns f, or Now when f is nil.
func OrNow(f Func) Func {
	if f == nil {
		return Now
	}
	return f
}
