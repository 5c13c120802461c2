package clock

import (
	"testing"
	"time"
)

func TestDateOf_TruncatesToMidnight(t *testing.T) {
	at := time.Date(2026, 3, 10, 23, 59, 59, 999, time.UTC)
	got := DateOf(at)
	want := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("DateOf() = %v, want %v", got, want)
	}
}

func TestSameDate(t *testing.T) {
	morning := time.Date(2026, 3, 10, 0, 0, 1, 0, time.UTC)
	night := time.Date(2026, 3, 10, 23, 59, 59, 0, time.UTC)
	nextDay := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)

	if !SameDate(morning, night) {
		t.Error("instants on the same date must compare equal")
	}
	if SameDate(night, nextDay) {
		t.Error("instants on different dates must not compare equal")
	}
}

func TestCompareDates(t *testing.T) {
	tests := []struct {
		name string
		a, b time.Time
		want int
	}{
		{"same date, different times",
			time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC),
			time.Date(2026, 3, 10, 22, 0, 0, 0, time.UTC), 0},
		{"day before", time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC),
			time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), -1},
		{"month after", time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), 1},
		{"year before", time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CompareDates(tt.a, tt.b); got != tt.want {
				t.Errorf("CompareDates() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSystem_Now(t *testing.T) {
	before := time.Now()
	got := System{}.Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Errorf("System.Now() = %v outside [%v, %v]", got, before, after)
	}
}
