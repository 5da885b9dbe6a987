package heartbeat

import (
	"context"
	"errors"
	"testing"
	"time"

	logx "staywatch/pkg/logx"
)

type fakeProber struct {
	err   error
	calls int
}

func (f *fakeProber) CheckAlive(context.Context, []string) error {
	f.calls++
	return f.err
}

type fakeAuth struct {
	can      bool
	errs     []error // consumed per attempt; nil past the end
	attempts int
}

func (f *fakeAuth) CanReauthenticate() bool { return f.can }

func (f *fakeAuth) Reauthenticate(context.Context) error {
	f.attempts++
	if f.attempts <= len(f.errs) {
		return f.errs[f.attempts-1]
	}
	return nil
}

type fakeGateway struct{ alerts int }

func (f *fakeGateway) SendAlert(context.Context, string) error {
	f.alerts++
	return nil
}

func newMonitor(p Prober, a Authenticator, g Gateway) *Monitor {
	return NewMonitor(Config{Interval: 5 * time.Minute, ReauthAttempts: 2}, p, a, g, logx.Nop())
}

func TestDueInterval(t *testing.T) {
	t.Parallel()
	m := newMonitor(&fakeProber{}, nil, &fakeGateway{})
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.Local)

	if !m.Due(now) {
		t.Fatal("first check must be due immediately")
	}
	m.Check(context.Background(), now)
	if m.Due(now.Add(time.Minute)) {
		t.Fatal("due again after one minute with a 5m interval")
	}
	if !m.Due(now.Add(5 * time.Minute)) {
		t.Fatal("not due after the full interval")
	}
}

func TestCheckAliveOnHealthyProbe(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	m := newMonitor(&fakeProber{}, nil, gw)
	if got := m.Check(context.Background(), time.Now()); got != StatusAlive {
		t.Fatalf("Status = %v, want alive", got)
	}
	if gw.alerts != 0 {
		t.Fatal("healthy check must not alert")
	}
}

func TestCheckRecoversSilentlyViaReauth(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	auth := &fakeAuth{can: true}
	m := newMonitor(&fakeProber{err: errors.New("expired")}, auth, gw)

	if got := m.Check(context.Background(), time.Now()); got != StatusAlive {
		t.Fatalf("Status = %v, want alive after re-login", got)
	}
	if auth.attempts != 1 {
		t.Fatalf("reauth attempts = %d, want 1", auth.attempts)
	}
	if gw.alerts != 0 {
		t.Fatal("successful recovery must be silent")
	}
}

func TestCheckRetriesReauthUpToBound(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	auth := &fakeAuth{can: true, errs: []error{errors.New("first try fails")}}
	m := newMonitor(&fakeProber{err: errors.New("expired")}, auth, gw)

	if got := m.Check(context.Background(), time.Now()); got != StatusAlive {
		t.Fatalf("Status = %v, want alive on second attempt", got)
	}
	if auth.attempts != 2 {
		t.Fatalf("reauth attempts = %d, want 2", auth.attempts)
	}
}

func TestCheckEscalatesOncePerEpisode(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	auth := &fakeAuth{can: true, errs: []error{
		errors.New("nope"), errors.New("nope"),
		errors.New("nope"), errors.New("nope"),
		errors.New("nope"), errors.New("nope"),
	}}
	probe := &fakeProber{err: errors.New("expired")}
	m := newMonitor(probe, auth, gw)

	now := time.Now()
	for i := 0; i < 3; i++ {
		if got := m.Check(context.Background(), now.Add(time.Duration(i)*5*time.Minute)); got != StatusDegraded {
			t.Fatalf("check %d Status = %v, want degraded", i, got)
		}
	}
	if gw.alerts != 1 {
		t.Fatalf("alerts = %d, want exactly 1 per failure episode", gw.alerts)
	}

	// Recovery ends the episode; the next failure escalates again.
	probe.err = nil
	if got := m.Check(context.Background(), now.Add(20*time.Minute)); got != StatusAlive {
		t.Fatalf("Status = %v, want alive after recovery", got)
	}
	probe.err = errors.New("expired again")
	auth.can = false
	m.Check(context.Background(), now.Add(25*time.Minute))
	if gw.alerts != 2 {
		t.Fatalf("alerts = %d, want 2 after a new episode", gw.alerts)
	}
}

func TestCheckWithoutAuthenticatorEscalates(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	m := newMonitor(&fakeProber{err: errors.New("expired")}, nil, gw)
	if got := m.Check(context.Background(), time.Now()); got != StatusDegraded {
		t.Fatalf("Status = %v, want degraded", got)
	}
	if gw.alerts != 1 {
		t.Fatalf("alerts = %d, want 1", gw.alerts)
	}
}
