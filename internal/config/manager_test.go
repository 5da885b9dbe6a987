package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return NewManager(path)
}

func TestParseMinimalConfig(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, `{
		"state_file": "./state.json",
		"schedule": {"daily_time": "06:01", "weekly_day": "saturday", "weekly_time": "10:00"}
	}`)
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.StateFile != "./state.json" {
		t.Fatalf("StateFile = %q", cfg.StateFile)
	}
	if cfg.Schedule.DailyTime != "06:01" || cfg.Schedule.WeeklyDay != "saturday" {
		t.Fatalf("schedule = %+v", cfg.Schedule)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, `{"state_file": "./s.json", "no_such_key": true}`)
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, `{"state_file": "./s.json"}{"state_file": "./other.json"}`)
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestParseYAMLCoercion(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "state_file: ./state.json\nschedule:\n  daily_time: \"06:01\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse yaml: %v", err)
	}
	if cfg.StateFile != "./state.json" {
		t.Fatalf("StateFile = %q", cfg.StateFile)
	}
}

func TestLoadCommitsAndGet(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, `{"state_file": "./s.json"}`)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Get() != cfg {
		t.Fatal("Get() should return the committed config")
	}
}

func TestSubscribeDropOldest(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, `{"state_file": "./s.json"}`)
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	first := &Config{StateFile: "a"}
	second := &Config{StateFile: "b"}
	m.publish(first)
	m.publish(second)

	select {
	case got := <-ch:
		if got != second {
			t.Fatalf("got %q, want newest config", got.StateFile)
		}
	case <-time.After(time.Second):
		t.Fatal("no config delivered")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{name: "minutes", raw: "10m", want: 10 * time.Minute},
		{name: "empty is zero", raw: "", want: 0},
		{name: "negative rejected", raw: "-5s", wantErr: true},
		{name: "garbage rejected", raw: "soon", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDurationField("x.y", tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseDurationField(%q): expected error", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDurationField(%q): %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseHHMM(t *testing.T) {
	t.Parallel()
	h, m, err := ParseHHMM("schedule.daily_time", "06:01")
	if err != nil {
		t.Fatalf("ParseHHMM: %v", err)
	}
	if h != 6 || m != 1 {
		t.Fatalf("got %d:%d", h, m)
	}

	for _, bad := range []string{"24:00", "06:60", "6", "six:one", ""} {
		if _, _, err := ParseHHMM("schedule.daily_time", bad); err == nil {
			t.Fatalf("ParseHHMM(%q): expected error", bad)
		}
	}
}

func TestParseWeekday(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want time.Weekday
	}{
		{raw: "saturday", want: time.Saturday},
		{raw: "Saturday", want: time.Saturday},
		{raw: "sat", want: time.Saturday},
		{raw: "monday", want: time.Monday},
	}
	for _, tt := range tests {
		got, err := ParseWeekday("schedule.weekly_day", tt.raw)
		if err != nil {
			t.Fatalf("ParseWeekday(%q): %v", tt.raw, err)
		}
		if got != tt.want {
			t.Fatalf("ParseWeekday(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
	if _, err := ParseWeekday("schedule.weekly_day", "someday"); err == nil {
		t.Fatal("expected error for unknown weekday")
	}
}
