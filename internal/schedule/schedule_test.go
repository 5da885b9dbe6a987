package schedule

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.Local)
}

func TestDailyNextIsAlwaysTomorrow(t *testing.T) {
	t.Parallel()
	cad := Daily(6, 1, 10*time.Minute)
	tests := []struct {
		name string
		ref  time.Time
		want time.Time
	}{
		{name: "before slot", ref: date(2026, time.March, 10, 5, 0), want: date(2026, time.March, 11, 6, 1)},
		{name: "at slot", ref: date(2026, time.March, 10, 6, 1), want: date(2026, time.March, 11, 6, 1)},
		{name: "after slot", ref: date(2026, time.March, 10, 23, 59), want: date(2026, time.March, 11, 6, 1)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := cad.Next(tt.ref)
			if !got.Equal(tt.want) {
				t.Fatalf("Next(%v) = %v, want %v", tt.ref, got, tt.want)
			}
		})
	}
}

func TestDailyFirstPrefersTodayWhenNotPassed(t *testing.T) {
	t.Parallel()
	cad := Daily(6, 1, 10*time.Minute)

	got := cad.First(date(2026, time.March, 10, 5, 0))
	if want := date(2026, time.March, 10, 6, 1); !got.Equal(want) {
		t.Fatalf("First before slot = %v, want %v", got, want)
	}

	got = cad.First(date(2026, time.March, 10, 7, 0))
	if want := date(2026, time.March, 11, 6, 1); !got.Equal(want) {
		t.Fatalf("First after slot = %v, want %v", got, want)
	}
}

func TestWeeklyNext(t *testing.T) {
	t.Parallel()
	cad := Weekly(time.Saturday, 10, 0, 30*time.Minute)

	// 2026-03-10 is a Tuesday; the upcoming Saturday is the 14th.
	tests := []struct {
		name string
		ref  time.Time
		want time.Time
	}{
		{name: "midweek", ref: date(2026, time.March, 10, 12, 0), want: date(2026, time.March, 14, 10, 0)},
		{name: "saturday before time", ref: date(2026, time.March, 14, 8, 0), want: date(2026, time.March, 14, 10, 0)},
		{name: "saturday at time", ref: date(2026, time.March, 14, 10, 0), want: date(2026, time.March, 21, 10, 0)},
		{name: "saturday after time", ref: date(2026, time.March, 14, 11, 0), want: date(2026, time.March, 21, 10, 0)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := cad.Next(tt.ref)
			if !got.Equal(tt.want) {
				t.Fatalf("Next(%v) = %v, want %v", tt.ref, got, tt.want)
			}
			if got.Weekday() != time.Saturday {
				t.Fatalf("Next landed on %v, want Saturday", got.Weekday())
			}
		})
	}
}

func TestNextIsStrictlyAfterRef(t *testing.T) {
	t.Parallel()
	cads := []Cadence{
		Daily(6, 1, 10*time.Minute),
		Weekly(time.Saturday, 10, 0, 30*time.Minute),
	}
	ref := date(2026, time.March, 14, 10, 0) // exactly a weekly slot
	for _, cad := range cads {
		if got := cad.Next(ref); !got.After(ref) {
			t.Fatalf("%s Next(%v) = %v, not strictly after ref", cad.Name, ref, got)
		}
	}
}
