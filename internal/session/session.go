// Package session wraps the authenticated web session against the vendor
// dashboard: keep-alive probes, expiry detection, and form re-login.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	logx "staywatch/pkg/logx"
)

// ErrInvalidated marks a session that landed on the auth flow or lost its
// authenticated page marker.
var ErrInvalidated = errors.New("session invalidated")

type Config struct {
	BaseURL        string
	LoginURL       string
	AuthURLPattern string
	MarkerSelector string

	UsernameField string
	PasswordField string
	Username      string
	Password      string

	Timeout time.Duration
}

// Session is the process-wide session handle. The supervisor loop is the only
// mutator; probes and re-auth share one cookie jar.
type Session struct {
	cfg    Config
	client *http.Client
	log    logx.Logger
}

func New(cfg Config, log logx.Logger) (*Session, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("session: base_url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Session{
		cfg: cfg,
		client: &http.Client{
			Jar:     jar,
			Timeout: cfg.Timeout,
		},
		log: log,
	}, nil
}

// Probe fetches url and checks it still looks authenticated.
//
// Invalidation manifests as a redirect onto the auth flow (final URL contains
// the configured pattern) or as the authenticated-only marker missing from
// the page. Returns ErrInvalidated for those; other errors are transport
// failures.
func (s *Session) Probe(ctx context.Context, rawURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: status %d", ErrInvalidated, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("probe %s: status %d", rawURL, resp.StatusCode)
	}

	final := resp.Request.URL.String()
	if p := strings.TrimSpace(s.cfg.AuthURLPattern); p != "" && strings.Contains(final, p) {
		return fmt.Errorf("%w: redirected to %s", ErrInvalidated, final)
	}

	if sel := strings.TrimSpace(s.cfg.MarkerSelector); sel != "" {
		doc, err := goquery.NewDocumentFromReader(resp.Body)
		if err != nil {
			return fmt.Errorf("probe %s: parse: %w", rawURL, err)
		}
		if doc.Find(sel).Length() == 0 {
			return fmt.Errorf("%w: marker %q absent", ErrInvalidated, sel)
		}
	}
	return nil
}

// CheckAlive probes each configured URL in order and fails on the first
// problem. The walk doubles as keep-alive traffic.
func (s *Session) CheckAlive(ctx context.Context, urls []string) error {
	if len(urls) == 0 {
		urls = []string{s.cfg.BaseURL}
	}
	for _, u := range urls {
		if err := s.Probe(ctx, u); err != nil {
			return err
		}
	}
	return nil
}

// CanReauthenticate reports whether credentials and a login form are configured.
func (s *Session) CanReauthenticate() bool {
	return strings.TrimSpace(s.cfg.LoginURL) != "" &&
		strings.TrimSpace(s.cfg.UsernameField) != "" &&
		strings.TrimSpace(s.cfg.PasswordField) != "" &&
		s.cfg.Username != "" &&
		s.cfg.Password != ""
}

// Reauthenticate submits the login form and verifies the session came back by
// probing the base URL. Which fields the vendor form wants is configuration.
func (s *Session) Reauthenticate(ctx context.Context) error {
	if !s.CanReauthenticate() {
		return errors.New("session: re-authentication not configured")
	}

	form := url.Values{}
	form.Set(s.cfg.UsernameField, s.cfg.Username)
	form.Set(s.cfg.PasswordField, s.cfg.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.LoginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("login: status %d", resp.StatusCode)
	}

	if err := s.Probe(ctx, s.cfg.BaseURL); err != nil {
		return fmt.Errorf("login did not stick: %w", err)
	}
	s.log.Info("session re-authenticated")
	return nil
}

// CredentialsFromEnv reads the named environment variables (with defaults)
// into the config.
func (c *Config) CredentialsFromEnv(usernameEnv, passwordEnv string) {
	if usernameEnv == "" {
		usernameEnv = "STAYWATCH_USERNAME"
	}
	if passwordEnv == "" {
		passwordEnv = "STAYWATCH_PASSWORD"
	}
	c.Username = os.Getenv(usernameEnv)
	c.Password = os.Getenv(passwordEnv)
}
