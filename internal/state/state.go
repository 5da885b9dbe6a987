// Package state persists the supervisor's run bookkeeping across restarts.
package state

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// timeLayout is the persisted timestamp format: local time, no zone suffix.
const timeLayout = "2006-01-02T15:04:05"

// legacyDateLayout is the old date-only last_run_date format.
const legacyDateLayout = "2006-01-02"

// State is the persisted supervisor record.
//
// Invariant: once initialized, NextExpectedRun and NextExpectedWeeklyRun are
// never zero; they only move forward, either because a job succeeded or
// because the watchdog rolled a passed deadline to the next occurrence.
type State struct {
	LastSuccessfulRun       time.Time // zero means never
	NextExpectedRun         time.Time
	LastSuccessfulWeeklyRun time.Time // zero means never
	NextExpectedWeeklyRun   time.Time
}

// Initialized reports whether both deadline anchors are set.
func (s State) Initialized() bool {
	return !s.NextExpectedRun.IsZero() && !s.NextExpectedWeeklyRun.IsZero()
}

// stateFile is the on-disk JSON shape. The legacy last_run_date field is
// accepted on read, migrated, and never written back.
type stateFile struct {
	LastSuccessfulRun       string `json:"last_successful_run,omitempty"`
	NextExpectedRun         string `json:"next_expected_run,omitempty"`
	LastSuccessfulWeeklyRun string `json:"last_successful_weekly_run,omitempty"`
	NextExpectedWeeklyRun   string `json:"next_expected_weekly_run,omitempty"`

	LegacyLastRunDate string `json:"last_run_date,omitempty"`
}

func (s State) marshal() ([]byte, error) {
	f := stateFile{
		LastSuccessfulRun:       formatTime(s.LastSuccessfulRun),
		NextExpectedRun:         formatTime(s.NextExpectedRun),
		LastSuccessfulWeeklyRun: formatTime(s.LastSuccessfulWeeklyRun),
		NextExpectedWeeklyRun:   formatTime(s.NextExpectedWeeklyRun),
	}
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// unmarshal parses the on-disk shape. Individual bad fields are dropped, not
// fatal: whatever parses cleanly is kept.
func unmarshal(b []byte) (State, string, error) {
	var f stateFile
	if err := json.Unmarshal(b, &f); err != nil {
		return State{}, "", err
	}
	var s State
	s.LastSuccessfulRun = parseTime(f.LastSuccessfulRun)
	s.NextExpectedRun = parseTime(f.NextExpectedRun)
	s.LastSuccessfulWeeklyRun = parseTime(f.LastSuccessfulWeeklyRun)
	s.NextExpectedWeeklyRun = parseTime(f.NextExpectedWeeklyRun)
	return s, strings.TrimSpace(f.LegacyLastRunDate), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timeLayout)
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(timeLayout, s, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseLegacyDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(legacyDateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("legacy last_run_date %q: %w", s, err)
	}
	return t, nil
}
