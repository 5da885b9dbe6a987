// Package report turns exported roster CSVs into the human-readable summary
// and email body that go out with the daily run.
package report

import (
	"encoding/csv"
	"fmt"
	"html"
	"io"
	"strings"
	"time"
)

// Entry is one room row from an arrivals or departures roster.
type Entry struct {
	Room     string
	RoomType string
	Guest    string
	Adults   string
	Children string
	Infants  string
	Time     string
}

// ColumnMap names the CSV header columns carrying each field. The vendor's
// export uses generated column ids, so the mapping is data, not structure.
type ColumnMap struct {
	Room     string
	RoomType string
	Adults   string
	Children string
	Infants  string
	Time     string
	Guest    string
}

// DefaultColumns matches the dashboard's current report export.
func DefaultColumns() ColumnMap {
	return ColumnMap{
		Room:     "textBox4",
		RoomType: "textBox16",
		Adults:   "textBox6",
		Children: "textBox7",
		Infants:  "textBox8",
		Time:     "textBox10",
		Guest:    "textBox19",
	}
}

// ParseRoster reads a roster CSV. Rows whose room cell is empty, a totals
// label, or not room-shaped (first character not a digit) are skipped; the
// export appends summary lines below the data.
func ParseRoster(r io.Reader, cols ColumnMap) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("roster header: %w", err)
	}
	// Strip a UTF-8 BOM if the export carries one.
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}
	idx := map[string]int{}
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}

	cell := func(rec []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []Entry
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("roster row: %w", err)
		}
		room := cell(rec, cols.Room)
		if room == "" || isTotalsLabel(room) || !roomShaped(room) {
			continue
		}
		guest := cell(rec, cols.Guest)
		if guest == "" {
			guest = "Guest"
		}
		out = append(out, Entry{
			Room:     room,
			RoomType: cell(rec, cols.RoomType),
			Guest:    guest,
			Adults:   orZero(cell(rec, cols.Adults)),
			Children: orZero(cell(rec, cols.Children)),
			Infants:  orZero(cell(rec, cols.Infants)),
			Time:     cell(rec, cols.Time),
		})
	}
	return out, nil
}

func isTotalsLabel(s string) bool {
	switch strings.ToLower(s) {
	case "total arrivals:", "total departures:", "daily totals:":
		return true
	}
	return false
}

func roomShaped(s string) bool {
	s = strings.ReplaceAll(strings.ReplaceAll(s, " ", ""), "-", "")
	return s != "" && s[0] >= '0' && s[0] <= '9'
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

// Summary is the one-line count pair used in the subject and SMS body.
func Summary(arrivals, departures []Entry) string {
	return fmt.Sprintf("%d checking in, %d checking out", len(arrivals), len(departures))
}

// Email is the rendered outbound report message.
type Email struct {
	Subject string
	Text    string
	HTML    string
}

// BuildEmail renders the daily report message for the given report date
// (normally tomorrow).
func BuildEmail(reportDate time.Time, arrivals, departures []Entry) Email {
	dateStr := reportDate.Format("02 Jan (Monday)")

	subject := fmt.Sprintf("Tomorrow's Cleaning %s: %s", dateStr, Summary(arrivals, departures))

	text := fmt.Sprintf(`Hi,

Please find attached the cleaning reports for %s.

Summary:
- Arrivals: %d checking in
- Departures: %d checking out

See the email content for the detailed list.
`, dateStr, len(arrivals), len(departures))

	var b strings.Builder
	fmt.Fprintf(&b, `<div style="font-family: sans-serif; line-height: 1.6; color: #333;">`)
	fmt.Fprintf(&b, `<h2 style="color: #2c3e50;">Cleaning Reports for %s</h2>`, html.EscapeString(dateStr))
	fmt.Fprintf(&b, `<div style="margin-bottom: 20px; padding: 15px; background-color: #e8f4fd; border-radius: 5px;">`+
		`<strong>Summary:</strong><br>Checking In: <b>%d</b> rooms<br>Checking Out: <b>%d</b> rooms</div>`,
		len(arrivals), len(departures))
	b.WriteString(table("Arrivals", "Check-in", arrivals))
	b.WriteString("<br>")
	b.WriteString(table("Departures", "Check-out", departures))
	b.WriteString(`<hr style="border: 0; border-top: 1px solid #eee; margin: 20px 0;">` +
		`<p style="font-size: 0.9em; color: #777;"><i>Attached: PDF Reports (Official)</i></p></div>`)

	return Email{Subject: subject, Text: text, HTML: b.String()}
}

func table(title, timeLabel string, rows []Entry) string {
	if len(rows) == 0 {
		return fmt.Sprintf("<p>No %s scheduled.</p>", strings.ToLower(title))
	}
	const cell = "border: 1px solid #ddd; padding: 8px; text-align: left; vertical-align: top;"

	var b strings.Builder
	fmt.Fprintf(&b, "<h3>%s (%d)</h3>", html.EscapeString(title), len(rows))
	b.WriteString("<table style='border-collapse: collapse; width: 100%; font-family: sans-serif;'>")
	fmt.Fprintf(&b, "<tr style='background-color: #f2f2f2;'><th style='%[1]s'>Room</th><th style='%[1]s'>Type</th><th style='%[1]s'>Guest</th><th style='%[1]s'>Guests</th><th style='%[1]s'>%[2]s</th></tr>",
		cell, html.EscapeString(timeLabel))
	for _, r := range rows {
		pax := fmt.Sprintf("%s adults<br>%s children<br>%s infants", r.Adults, r.Children, r.Infants)
		fmt.Fprintf(&b, "<tr><td style='%[1]s'><b>%[2]s</b></td><td style='%[1]s'>%[3]s</td><td style='%[1]s'>%[4]s</td><td style='%[1]s'>%[5]s</td><td style='%[1]s'><b>%[6]s</b></td></tr>",
			cell,
			html.EscapeString(r.Room),
			html.EscapeString(orDash(r.RoomType)),
			html.EscapeString(r.Guest),
			pax,
			html.EscapeString(orDash(r.Time)),
		)
	}
	b.WriteString("</table>")
	return b.String()
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
