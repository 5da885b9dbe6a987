// Package notify delivers alerts and report messages through the configured
// channels. Delivery is best-effort: the supervisor never retries, a failed
// send is logged and dropped (retry, if any, belongs to the channel itself).
package notify

import (
	"context"
	"path/filepath"
	"strings"
)

// Message is one outbound notification. Alerts only fill Text; report
// deliveries add a subject, HTML body and attachments for channels that
// support them.
type Message struct {
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

// Attachment carries a downloaded report artifact.
type Attachment struct {
	Filename string
	MIMEType string
	Data     []byte
}

// Sender is one delivery channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, m Message) error
}

// MIMETypeFor guesses the content type from the file extension.
func MIMETypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".csv":
		return "text/csv"
	case ".txt":
		return "text/plain"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
