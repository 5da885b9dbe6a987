package notify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	logx "staywatch/pkg/logx"
)

type capturedPost struct {
	key     string
	payload commsPayload
}

func newCommsServer(t *testing.T, status int, success bool) (*httptest.Server, *[]capturedPost) {
	t.Helper()
	var posts []capturedPost
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p commsPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		posts = append(posts, capturedPost{key: r.Header.Get("x-integration-key"), payload: p})
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(commsResponse{Success: success})
	}))
	t.Cleanup(srv.Close)
	return srv, &posts
}

func TestCommsSendEmailAndSMS(t *testing.T) {
	t.Parallel()
	srv, posts := newCommsServer(t, http.StatusOK, true)

	c, err := NewCommsClient(CommsConfig{
		URL:     srv.URL,
		APIKey:  "key-123",
		From:    "reports@hotel.test",
		EmailTo: []string{"manager@hotel.test"},
		SMSTo:   "+447700900123",
	}, logx.Nop())
	if err != nil {
		t.Fatalf("NewCommsClient: %v", err)
	}

	m := Message{
		Subject: "Housekeeping report",
		Text:    "3 checking in, 1 checking out",
		HTML:    "<p>3 checking in</p>",
		Attachments: []Attachment{
			{Filename: "arrivals.pdf", MIMEType: "application/pdf", Data: []byte("%PDF-fake")},
		},
	}
	if err := c.Send(context.Background(), m); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if len(*posts) != 2 {
		t.Fatalf("posts = %d, want email + sms", len(*posts))
	}

	email := (*posts)[0]
	if email.key != "key-123" {
		t.Fatalf("integration key = %q", email.key)
	}
	if len(email.payload.Channels) != 1 || email.payload.Channels[0] != "email" {
		t.Fatalf("first post channels = %v, want [email]", email.payload.Channels)
	}
	if email.payload.Subject != m.Subject || email.payload.HTML != m.HTML {
		t.Fatalf("email payload = %+v", email.payload)
	}
	if len(email.payload.Attachments) != 1 {
		t.Fatal("email attachment missing")
	}
	wantContent := base64.StdEncoding.EncodeToString([]byte("%PDF-fake"))
	if a := email.payload.Attachments[0]; a.Filename != "arrivals.pdf" || a.Content != wantContent || a.ContentType != "application/pdf" {
		t.Fatalf("attachment = %+v", a)
	}

	sms := (*posts)[1]
	if len(sms.payload.Channels) != 1 || sms.payload.Channels[0] != "sms" {
		t.Fatalf("second post channels = %v, want [sms]", sms.payload.Channels)
	}
	if sms.payload.Body != m.Text || len(sms.payload.Attachments) != 0 {
		t.Fatalf("sms payload = %+v", sms.payload)
	}
}

func TestCommsSendTelegramFallback(t *testing.T) {
	t.Parallel()
	srv, posts := newCommsServer(t, http.StatusOK, true)

	c, err := NewCommsClient(CommsConfig{URL: srv.URL, APIKey: "k"}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Send(context.Background(), Message{Text: "alert"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(*posts) != 1 || (*posts)[0].payload.Channels[0] != "telegram" {
		t.Fatalf("posts = %+v, want one telegram post", *posts)
	}
}

func TestCommsSendRejectedByAPI(t *testing.T) {
	t.Parallel()
	srv, _ := newCommsServer(t, http.StatusOK, false)
	c, err := NewCommsClient(CommsConfig{URL: srv.URL, APIKey: "k", EmailTo: []string{"a@b.test"}}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Send(context.Background(), Message{Text: "x"}); err == nil {
		t.Fatal("expected error when API reports success=false")
	}
}

func TestCommsSendHTTPError(t *testing.T) {
	t.Parallel()
	srv, _ := newCommsServer(t, http.StatusInternalServerError, false)
	c, err := NewCommsClient(CommsConfig{URL: srv.URL, APIKey: "k", EmailTo: []string{"a@b.test"}}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Send(context.Background(), Message{Text: "x"}); err == nil {
		t.Fatal("expected error on HTTP 500")
	}
}

func TestNewCommsClientValidation(t *testing.T) {
	t.Parallel()
	if _, err := NewCommsClient(CommsConfig{APIKey: "k"}, logx.Nop()); err == nil {
		t.Fatal("expected error for missing url")
	}
	if _, err := NewCommsClient(CommsConfig{URL: "http://x.test"}, logx.Nop()); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestMIMETypeFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		want string
	}{
		{name: "report.pdf", want: "application/pdf"},
		{name: "roster.CSV", want: "text/csv"},
		{name: "unknown.bin", want: "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := MIMETypeFor(tt.name); got != tt.want {
			t.Fatalf("MIMETypeFor(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
