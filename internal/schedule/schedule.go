// Package schedule holds the pure cadence math: given a reference time and a
// cadence definition, when is the next run expected.
package schedule

import (
	"fmt"
	"time"
)

// Cadence is one recurring schedule (daily or weekly) with its own
// time-of-day, optional day-of-week, and grace period.
type Cadence struct {
	Name   string
	Hour   int
	Minute int
	// Weekday is nil for the daily cadence.
	Weekday *time.Weekday
	Grace   time.Duration
}

// Daily builds the daily cadence.
func Daily(hour, minute int, grace time.Duration) Cadence {
	return Cadence{Name: "daily", Hour: hour, Minute: minute, Grace: grace}
}

// Weekly builds the weekly cadence.
func Weekly(day time.Weekday, hour, minute int, grace time.Duration) Cadence {
	d := day
	return Cadence{Name: "weekly", Hour: hour, Minute: minute, Weekday: &d, Grace: grace}
}

func (c Cadence) String() string {
	if c.Weekday != nil {
		return fmt.Sprintf("%s %s %02d:%02d", c.Name, c.Weekday, c.Hour, c.Minute)
	}
	return fmt.Sprintf("%s %02d:%02d", c.Name, c.Hour, c.Minute)
}

// At combines the calendar date of day with the cadence's time-of-day.
func (c Cadence) At(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour, c.Minute, 0, 0, day.Location())
}

// Next computes the deadline following ref.
//
// Daily: always tomorrow at the configured time, never later today. A run
// that just completed must schedule the next occurrence, not re-arm today's.
//
// Weekly: the next occurrence of the configured weekday at/after ref. If ref
// falls on the weekday before the configured time, that same day's occurrence
// is returned; once past it, the result is seven days out.
func (c Cadence) Next(ref time.Time) time.Time {
	if c.Weekday == nil {
		return c.At(ref.AddDate(0, 0, 1))
	}
	days := (int(*c.Weekday) - int(ref.Weekday()) + 7) % 7
	candidate := c.At(ref.AddDate(0, 0, days))
	if !candidate.After(ref) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}

// First computes the initial deadline at process start. Unlike Next, the
// daily cadence prefers today's occurrence when now precedes it, so a
// first-ever startup before the scheduled time doesn't immediately look like
// a missed run.
func (c Cadence) First(now time.Time) time.Time {
	if c.Weekday == nil {
		today := c.At(now)
		if now.Before(today) {
			return today
		}
		return c.Next(now)
	}
	// Weekly Next already prefers this week's occurrence when still ahead.
	return c.Next(now)
}
