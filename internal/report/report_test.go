package report

import (
	"strings"
	"testing"
	"time"
)

const rosterCSV = `textBox4,textBox16,textBox19,textBox6,textBox7,textBox8,textBox10
101,Double,Smith,2,1,,14:00
102 - Annex,Twin,,1,,,15:30
Total Arrivals:,,,,,,
,,,,,,
Daily Totals:,3,1,0,,,
`

func TestParseRoster(t *testing.T) {
	t.Parallel()
	entries, err := ParseRoster(strings.NewReader(rosterCSV), DefaultColumns())
	if err != nil {
		t.Fatalf("ParseRoster: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2 (totals rows skipped)", len(entries))
	}

	first := entries[0]
	if first.Room != "101" || first.Guest != "Smith" || first.Time != "14:00" {
		t.Fatalf("first entry = %+v", first)
	}
	if first.Adults != "2" || first.Children != "1" || first.Infants != "0" {
		t.Fatalf("pax counts = %s/%s/%s", first.Adults, first.Children, first.Infants)
	}

	second := entries[1]
	if second.Room != "102 - Annex" {
		t.Fatalf("second room = %q", second.Room)
	}
	if second.Guest != "Guest" {
		t.Fatalf("empty guest should default, got %q", second.Guest)
	}
}

func TestParseRosterWithBOM(t *testing.T) {
	t.Parallel()
	body := "\uFEFF" + rosterCSV
	entries, err := ParseRoster(strings.NewReader(body), DefaultColumns())
	if err != nil {
		t.Fatalf("ParseRoster: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want BOM-stripped header to match", len(entries))
	}
}

func TestParseRosterEmpty(t *testing.T) {
	t.Parallel()
	entries, err := ParseRoster(strings.NewReader(""), DefaultColumns())
	if err != nil {
		t.Fatalf("ParseRoster empty: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries = %d, want 0", len(entries))
	}
}

func TestSummary(t *testing.T) {
	t.Parallel()
	got := Summary(make([]Entry, 3), make([]Entry, 1))
	if got != "3 checking in, 1 checking out" {
		t.Fatalf("Summary = %q", got)
	}
}

func TestBuildEmail(t *testing.T) {
	t.Parallel()
	date := time.Date(2026, time.March, 11, 0, 0, 0, 0, time.Local)
	arrivals := []Entry{{Room: "101", RoomType: "Double", Guest: "O'Brien & <Co>", Adults: "2", Children: "0", Infants: "0", Time: "14:00"}}

	email := BuildEmail(date, arrivals, nil)

	if !strings.Contains(email.Subject, "11 Mar (Wednesday)") {
		t.Fatalf("Subject = %q", email.Subject)
	}
	if !strings.Contains(email.Subject, "1 checking in, 0 checking out") {
		t.Fatalf("Subject missing summary: %q", email.Subject)
	}
	if !strings.Contains(email.HTML, "O&#39;Brien &amp; &lt;Co&gt;") {
		t.Fatal("guest name not HTML-escaped")
	}
	if !strings.Contains(email.HTML, "No departures scheduled.") {
		t.Fatal("empty departures table should render the placeholder")
	}
	if !strings.Contains(email.Text, "Arrivals: 1 checking in") {
		t.Fatalf("Text = %q", email.Text)
	}
}
