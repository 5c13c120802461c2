// Package clock abstracts wall-clock access so that date arithmetic
// (due-ness, session expiry, streaks) is testable without sleeping.
package clock

import "time"

// Clock supplies the current time. Production code uses System; tests
// use a manually advanced clock from internal/testutil.
type Clock interface {
	Now() time.Time
}

// System reads the real wall clock.
type System struct{}

// Now returns time.Now().
func (System) Now() time.Time {
	return time.Now()
}

// DateOf truncates t to its calendar date in t's location.
//
// All due-date comparisons in the engine operate on calendar dates,
// never on instants, so due-ness cannot flip within a single day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDate reports whether a and b fall on the same calendar date.
func SameDate(a, b time.Time) bool {
	return CompareDates(a, b) == 0
}

// CompareDates orders two instants by calendar date alone, each in its
// own location: -1 when a's date precedes b's, 0 when equal, 1 after.
// Time of day never influences the result.
func CompareDates(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	switch {
	case ay != by:
		return sign(ay - by)
	case am != bm:
		return sign(int(am) - int(bm))
	default:
		return sign(ad - bd)
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
