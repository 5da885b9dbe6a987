// Package heartbeat keeps the external session alive and escalates only when
// automatic recovery fails.
package heartbeat

import (
	"context"
	"fmt"
	"time"

	logx "staywatch/pkg/logx"
)

// Status of a liveness check.
type Status int

const (
	StatusAlive Status = iota
	StatusDegraded
)

func (s Status) String() string {
	if s == StatusAlive {
		return "alive"
	}
	return "degraded"
}

// Prober generates keep-alive traffic and detects session invalidation.
type Prober interface {
	CheckAlive(ctx context.Context, urls []string) error
}

// Authenticator re-establishes the session. nil error means logged in again.
type Authenticator interface {
	CanReauthenticate() bool
	Reauthenticate(ctx context.Context) error
}

// Gateway delivers the escalation alert.
type Gateway interface {
	SendAlert(ctx context.Context, msg string) error
}

type Config struct {
	Interval       time.Duration // default 5m
	ProbeURLs      []string
	ReauthAttempts int // default 2
}

// Monitor runs liveness checks on a fixed interval, independent of the
// cadence watchdogs. It never touches the persisted supervisor state.
//
// Not safe for concurrent use; ticked by the supervisor loop only.
type Monitor struct {
	cfg     Config
	session Prober
	auth    Authenticator
	gw      Gateway
	log     logx.Logger

	lastCheck time.Time
	// escalated marks the current failure episode as already alerted.
	// The episode ends when a check passes again.
	escalated bool
}

func NewMonitor(cfg Config, session Prober, auth Authenticator, gw Gateway, log logx.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.ReauthAttempts <= 0 {
		cfg.ReauthAttempts = 2
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Monitor{cfg: cfg, session: session, auth: auth, gw: gw, log: log}
}

// Due reports whether a check should run at now.
func (m *Monitor) Due(now time.Time) bool {
	return m.lastCheck.IsZero() || now.Sub(m.lastCheck) >= m.cfg.Interval
}

// Check performs one liveness pass: probe, recover, escalate.
//
// Recovery is a non-event: a failed probe followed by a successful re-login
// returns StatusAlive with no alert. Escalation happens exactly once per
// failure episode.
func (m *Monitor) Check(ctx context.Context, now time.Time) Status {
	m.lastCheck = now

	err := m.session.CheckAlive(ctx, m.cfg.ProbeURLs)
	if err == nil {
		if m.escalated {
			m.log.Info("session recovered")
		}
		m.escalated = false
		return StatusAlive
	}
	m.log.Warn("liveness check failed", logx.Err(err))

	if m.auth != nil && m.auth.CanReauthenticate() {
		// Bounded attempts: some auth flows need a re-submission.
		for i := 1; i <= m.cfg.ReauthAttempts; i++ {
			rerr := m.auth.Reauthenticate(ctx)
			if rerr == nil {
				m.log.Info("session recovered via re-authentication", logx.Int("attempt", i))
				m.escalated = false
				return StatusAlive
			}
			m.log.Warn("re-authentication failed", logx.Int("attempt", i), logx.Err(rerr))
		}
	}

	if !m.escalated {
		m.escalated = true
		msg := fmt.Sprintf("staywatch: dashboard session is DOWN and automatic re-login failed (%v). Manual login required.", err)
		if serr := m.gw.SendAlert(ctx, msg); serr != nil {
			m.log.Warn("liveness alert delivery failed", logx.Err(serr))
		}
	}
	return StatusDegraded
}
