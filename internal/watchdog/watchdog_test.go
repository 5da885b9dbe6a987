package watchdog

import (
	"context"
	"errors"
	"testing"
	"time"

	"staywatch/internal/schedule"
	logx "staywatch/pkg/logx"
)

type fakeGateway struct {
	alerts []string
	err    error
}

func (f *fakeGateway) SendAlert(_ context.Context, msg string) error {
	f.alerts = append(f.alerts, msg)
	return f.err
}

func date(d, hh, mm int) time.Time {
	return time.Date(2026, time.March, d, hh, mm, 0, 0, time.Local)
}

func TestTickPendingWithinGrace(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	w := New(schedule.Daily(6, 1, 10*time.Minute), gw, logx.Nop())
	deadline := date(10, 6, 1)

	tests := []struct {
		name string
		now  time.Time
	}{
		{name: "before deadline", now: date(10, 5, 0)},
		{name: "at deadline", now: date(10, 6, 1)},
		{name: "inside grace", now: date(10, 6, 9)},
		{name: "at grace limit", now: date(10, 6, 11)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			d := w.Tick(context.Background(), tt.now, deadline, time.Time{})
			if d.Status != StatusPending {
				t.Fatalf("Status = %v, want pending", d.Status)
			}
			if !d.NewDeadline.IsZero() || d.AlertSent {
				t.Fatalf("pending must not advance or alert: %+v", d)
			}
		})
	}
	if len(gw.alerts) != 0 {
		t.Fatalf("pending ticks sent %d alerts", len(gw.alerts))
	}
}

func TestTickAlertsExactlyOncePerDeadline(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	cad := schedule.Daily(6, 1, 10*time.Minute)
	w := New(cad, gw, logx.Nop())
	deadline := date(10, 6, 1)
	now := date(10, 6, 12) // past grace

	d := w.Tick(context.Background(), now, deadline, time.Time{})
	if d.Status != StatusAlerted || !d.AlertSent {
		t.Fatalf("first overdue tick = %+v, want alerted+sent", d)
	}
	if want := cad.Next(deadline); !d.NewDeadline.Equal(want) {
		t.Fatalf("NewDeadline = %v, want %v", d.NewDeadline, want)
	}
	if len(gw.alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(gw.alerts))
	}

	// Repeated ticks against the same deadline value stay deduplicated even
	// if the caller has not persisted the advancement yet.
	for i := 0; i < 5; i++ {
		d = w.Tick(context.Background(), now.Add(time.Duration(i)*time.Minute), deadline, time.Time{})
		if d.AlertSent {
			t.Fatalf("tick %d re-alerted for the same deadline", i)
		}
		if d.Status != StatusAlerted {
			t.Fatalf("tick %d Status = %v, want alerted", i, d.Status)
		}
	}
	if len(gw.alerts) != 1 {
		t.Fatalf("alerts = %d after repeats, want 1", len(gw.alerts))
	}
}

func TestTickAlertsAgainForNextDeadline(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	cad := schedule.Daily(6, 1, 10*time.Minute)
	w := New(cad, gw, logx.Nop())

	first := date(10, 6, 1)
	d := w.Tick(context.Background(), date(10, 7, 0), first, time.Time{})
	if !d.AlertSent {
		t.Fatal("expected alert for first missed deadline")
	}

	// The rolled-forward deadline misses too, a day later.
	second := d.NewDeadline
	d = w.Tick(context.Background(), second.Add(cad.Grace).Add(time.Minute), second, time.Time{})
	if !d.AlertSent {
		t.Fatal("expected fresh alert for the next deadline value")
	}
	if len(gw.alerts) != 2 {
		t.Fatalf("alerts = %d, want 2", len(gw.alerts))
	}
}

func TestTickSatisfiedByLateBookkeeping(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	cad := schedule.Daily(6, 1, 10*time.Minute)
	w := New(cad, gw, logx.Nop())

	deadline := date(10, 6, 1)
	success := date(10, 6, 5) // ran inside the window
	d := w.Tick(context.Background(), date(10, 8, 0), deadline, success)
	if d.Status != StatusSatisfied {
		t.Fatalf("Status = %v, want satisfied", d.Status)
	}
	if want := cad.Next(success); !d.NewDeadline.Equal(want) {
		t.Fatalf("NewDeadline = %v, want %v", d.NewDeadline, want)
	}
	if len(gw.alerts) != 0 {
		t.Fatal("satisfied deadline must not alert")
	}
}

func TestTickSuccessBeforeDeadlineDoesNotSatisfy(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	w := New(schedule.Daily(6, 1, 10*time.Minute), gw, logx.Nop())

	deadline := date(10, 6, 1)
	staleSuccess := date(9, 6, 3) // yesterday's run
	d := w.Tick(context.Background(), date(10, 6, 30), deadline, staleSuccess)
	if d.Status != StatusAlerted || !d.AlertSent {
		t.Fatalf("stale success must still alert, got %+v", d)
	}
}

func TestTickAlertFailureStillDeduplicates(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{err: errors.New("channel down")}
	w := New(schedule.Daily(6, 1, 10*time.Minute), gw, logx.Nop())

	deadline := date(10, 6, 1)
	now := date(10, 7, 0)
	d := w.Tick(context.Background(), now, deadline, time.Time{})
	if !d.AlertSent {
		t.Fatal("delivery failure must still count as the alert attempt")
	}
	d = w.Tick(context.Background(), now.Add(time.Minute), deadline, time.Time{})
	if d.AlertSent {
		t.Fatal("failed delivery must not cause alert spam on the next tick")
	}
}

func TestRecordSuccessAdvances(t *testing.T) {
	t.Parallel()
	cad := schedule.Weekly(time.Saturday, 10, 0, 30*time.Minute)
	w := New(cad, &fakeGateway{}, logx.Nop())

	at := date(14, 10, 5) // Saturday 2026-03-14
	got := w.RecordSuccess(at)
	if want := date(21, 10, 0); !got.Equal(want) {
		t.Fatalf("RecordSuccess = %v, want %v", got, want)
	}
}
