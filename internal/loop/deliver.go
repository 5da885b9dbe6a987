package loop

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"staywatch/internal/notify"
	"staywatch/internal/report"
	logx "staywatch/pkg/logx"
)

// deliver sends the run's artifacts through the notification gateway.
// Delivery is best-effort: the run already counts as successful, a delivery
// problem gets a warning, not an alert.
func (l *Loop) deliver(ctx context.Context, cadence string, artifacts []string) {
	if len(artifacts) == 0 {
		return
	}

	msg, err := l.buildMessage(cadence, artifacts)
	if err != nil {
		l.log.Warn("report message build failed", logx.Err(err))
		return
	}
	if err := l.gw.Send(ctx, msg); err != nil {
		l.log.Warn("report delivery failed", logx.Err(err))
	}
}

// buildMessage assembles the outgoing report. CSV artifacts are parsed into
// the arrival/departure summary email; everything else rides along as an
// attachment.
func (l *Loop) buildMessage(cadence string, artifacts []string) (notify.Message, error) {
	var (
		arrivals   []report.Entry
		departures []report.Entry
		parsedCSV  bool
	)

	msg := notify.Message{}
	for _, path := range artifacts {
		data, err := os.ReadFile(path)
		if err != nil {
			return notify.Message{}, fmt.Errorf("read artifact %s: %w", filepath.Base(path), err)
		}
		name := filepath.Base(path)
		msg.Attachments = append(msg.Attachments, notify.Attachment{
			Filename: name,
			MIMEType: notify.MIMETypeFor(name),
			Data:     data,
		})

		if strings.EqualFold(filepath.Ext(name), ".csv") {
			entries, err := report.ParseRoster(bytes.NewReader(data), report.DefaultColumns())
			if err != nil {
				l.log.Warn("roster parse failed", logx.String("file", name), logx.Err(err))
				continue
			}
			lower := strings.ToLower(name)
			switch {
			case strings.Contains(lower, "depart"):
				departures = append(departures, entries...)
			default:
				arrivals = append(arrivals, entries...)
			}
			parsedCSV = true
		}
	}

	now := time.Now()
	if parsedCSV {
		email := report.BuildEmail(now, arrivals, departures)
		msg.Subject = email.Subject
		msg.Text = email.Text
		msg.HTML = email.HTML
		return msg, nil
	}

	msg.Subject = fmt.Sprintf("Housekeeping %s reports - %s", cadence, now.Format("02 Jan 2006"))
	msg.Text = fmt.Sprintf("The %s report run completed at %s. %d file(s) attached.",
		cadence, now.Format("15:04"), len(artifacts))
	return msg, nil
}
