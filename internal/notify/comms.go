package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	logx "staywatch/pkg/logx"
)

// CommsConfig configures the comms-centre integration endpoint:
// one POST, fan-out to email/sms/telegram on the far side.
type CommsConfig struct {
	URL     string
	APIKey  string
	From    string
	EmailTo []string
	SMSTo   string
	Timeout time.Duration
}

// CommsClient talks to the multi-channel send API.
type CommsClient struct {
	cfg  CommsConfig
	http *http.Client
	log  logx.Logger
}

func NewCommsClient(cfg CommsConfig, log logx.Logger) (*CommsClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("comms: url is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("comms: api key is missing from environment")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &CommsClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}, nil
}

func (c *CommsClient) Name() string { return "comms" }

type commsAttachment struct {
	Filename    string `json:"filename"`
	Content     string `json:"content"` // base64
	ContentType string `json:"contentType"`
}

type commsPayload struct {
	Channels    []string          `json:"channels"`
	To          []string          `json:"to,omitempty"`
	From        string            `json:"from,omitempty"`
	Subject     string            `json:"subject,omitempty"`
	Body        string            `json:"body,omitempty"`
	HTML        string            `json:"html,omitempty"`
	Attachments []commsAttachment `json:"attachments,omitempty"`
}

type commsResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Send posts the message to every channel that has a recipient configured.
// Email gets the full body and attachments; SMS gets the plain text only.
func (c *CommsClient) Send(ctx context.Context, m Message) error {
	var errs []error

	if len(c.cfg.EmailTo) > 0 {
		p := commsPayload{
			Channels: []string{"email"},
			To:       c.cfg.EmailTo,
			From:     c.cfg.From,
			Subject:  m.Subject,
			Body:     m.Text,
			HTML:     m.HTML,
		}
		for _, a := range m.Attachments {
			p.Attachments = append(p.Attachments, commsAttachment{
				Filename:    a.Filename,
				Content:     base64.StdEncoding.EncodeToString(a.Data),
				ContentType: a.MIMEType,
			})
		}
		if err := c.post(ctx, p); err != nil {
			errs = append(errs, fmt.Errorf("email: %w", err))
		}
	}

	if strings.TrimSpace(c.cfg.SMSTo) != "" {
		p := commsPayload{
			Channels: []string{"sms"},
			To:       []string{c.cfg.SMSTo},
			Body:     m.Text,
		}
		if err := c.post(ctx, p); err != nil {
			errs = append(errs, fmt.Errorf("sms: %w", err))
		}
	}

	if len(c.cfg.EmailTo) == 0 && strings.TrimSpace(c.cfg.SMSTo) == "" {
		// Integration-default recipients (the API side decides who gets it).
		p := commsPayload{
			Channels: []string{"telegram"},
			Body:     m.Text,
		}
		if err := c.post(ctx, p); err != nil {
			errs = append(errs, fmt.Errorf("telegram: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (c *CommsClient) post(ctx context.Context, p commsPayload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-integration-key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	rb, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(rb)))
	}
	var cr commsResponse
	if err := json.Unmarshal(rb, &cr); err != nil {
		return fmt.Errorf("bad response: %w", err)
	}
	if !cr.Success {
		return fmt.Errorf("api rejected send: %s", cr.Error)
	}
	return nil
}
