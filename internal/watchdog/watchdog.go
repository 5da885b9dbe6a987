// Package watchdog decides, per cadence, whether a scheduled run was missed
// and whether that miss has already been alerted.
package watchdog

import (
	"context"
	"fmt"
	"time"

	"staywatch/internal/schedule"
	logx "staywatch/pkg/logx"
)

// Status is the watchdog state for the current deadline.
type Status int

const (
	// StatusPending: deadline (plus grace) not yet reached.
	StatusPending Status = iota
	// StatusSatisfied: the grace window passed but a success was recorded
	// at/after the deadline.
	StatusSatisfied
	// StatusOverdue: the grace window passed with no qualifying success and
	// no alert sent yet for this deadline.
	StatusOverdue
	// StatusAlerted: overdue and the alert for this exact deadline value has
	// been sent.
	StatusAlerted
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSatisfied:
		return "satisfied"
	case StatusOverdue:
		return "overdue"
	case StatusAlerted:
		return "alerted"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Gateway delivers an alert string. Best-effort: a failed send is logged by
// the watchdog, never retried here.
type Gateway interface {
	SendAlert(ctx context.Context, msg string) error
}

// Decision is the outcome of one evaluation tick.
type Decision struct {
	Status Status
	// NewDeadline is the rolled-forward deadline the caller must write back
	// into the state, or zero when the deadline is unchanged.
	NewDeadline time.Time
	// AlertSent is true when this tick sent the (single) alert for the
	// missed deadline.
	AlertSent bool
}

// Watchdog tracks one cadence. Not safe for concurrent use; it is owned and
// ticked by the supervisor loop only.
type Watchdog struct {
	cad schedule.Cadence
	gw  Gateway
	log logx.Logger

	// alertedFor is the deadline value an alert has already gone out for.
	// Keyed on the value (not a boolean) so a rollover past several missed
	// deadlines re-arms exactly once per deadline.
	alertedFor time.Time
}

func New(cad schedule.Cadence, gw Gateway, log logx.Logger) *Watchdog {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Watchdog{cad: cad, gw: gw, log: log.With(logx.String("cadence", cad.Name))}
}

func (w *Watchdog) Cadence() schedule.Cadence { return w.cad }

// Tick evaluates the cadence at now.
//
// deadline is the current expected-run anchor from the state; lastSuccess is
// the most recent success (zero if none). Tick itself never mutates state;
// deadline advancement is reported through Decision.NewDeadline so the
// single-owner loop applies and persists it.
func (w *Watchdog) Tick(ctx context.Context, now, deadline, lastSuccess time.Time) Decision {
	limit := deadline.Add(w.cad.Grace)
	if !now.After(limit) {
		return Decision{Status: StatusPending}
	}

	if !lastSuccess.IsZero() && !lastSuccess.Before(deadline) {
		// A run did complete, even if this check happens after the grace
		// window for bookkeeping reasons. No alert; roll to the next slot.
		return Decision{Status: StatusSatisfied, NewDeadline: w.cad.Next(lastSuccess)}
	}

	if w.alertedFor.Equal(deadline) {
		return Decision{Status: StatusAlerted}
	}

	msg := w.missedMessage(now, deadline, lastSuccess)
	if err := w.gw.SendAlert(ctx, msg); err != nil {
		w.log.Warn("missed-run alert delivery failed", logx.Err(err))
	}
	w.alertedFor = deadline
	w.log.Warn("run deadline missed",
		logx.Time("deadline", deadline),
		logx.Duration("grace", w.cad.Grace),
		logx.Time("now", now),
	)

	// Advance so the next occurrence is watched with a fresh dedup key.
	return Decision{Status: StatusAlerted, NewDeadline: w.cad.Next(deadline), AlertSent: true}
}

// RecordSuccess computes the deadline that follows a successful run at t.
// Recomputing on a new success implicitly re-arms the dedup tracker, because
// the tracked deadline value changes.
func (w *Watchdog) RecordSuccess(t time.Time) time.Time {
	return w.cad.Next(t)
}

func (w *Watchdog) missedMessage(now, deadline, lastSuccess time.Time) string {
	const layout = "2006-01-02 15:04"
	last := "never"
	if !lastSuccess.IsZero() {
		last = lastSuccess.Format(layout)
	}
	return fmt.Sprintf("staywatch: %s report run MISSED. Expected by %s (grace %s), no success as of %s. Last success: %s.",
		w.cad.Name, deadline.Format(layout), w.cad.Grace, now.Format(layout), last)
}
