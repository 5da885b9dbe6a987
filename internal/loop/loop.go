// Package loop is the single thread of control. It owns the persisted state,
// the session handle and both watchdog dedup trackers; every mutation happens
// on its tick, never from cron or listener goroutines.
package loop

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"staywatch/internal/eventbus"
	"staywatch/internal/heartbeat"
	"staywatch/internal/history"
	"staywatch/internal/jobs"
	"staywatch/internal/notify"
	"staywatch/internal/schedule"
	"staywatch/internal/state"
	"staywatch/internal/watchdog"
	logx "staywatch/pkg/logx"
)

// Trigger asks for an immediate run of one cadence.
type Trigger struct {
	Cadence string // "daily" or "weekly"
	Source  string // "schedule", "manual", "startup"
}

// Notifier is the loop's view of the notification gateway.
type Notifier interface {
	Send(ctx context.Context, m notify.Message) error
	SendAlert(ctx context.Context, msg string) error
}

type Options struct {
	// Tick is the poll interval. Default 1s. Job execution blocks the loop
	// on purpose: only one blocking action runs at a time.
	Tick time.Duration

	Daily  schedule.Cadence
	Weekly schedule.Cadence

	// TestEvery, when nonzero, replaces the cron triggers with an
	// accelerated fixed interval (daily cadence only). Watchdog deadlines
	// are unaffected.
	TestEvery time.Duration

	// RunAtStart queues triggers fired on the first tick (the -run-now flags).
	RunAtStart []Trigger
}

type Loop struct {
	opts   Options
	store  *state.Store
	st     state.State
	daily  *watchdog.Watchdog
	weekly *watchdog.Watchdog
	hb     *heartbeat.Monitor // nil when disabled
	runner jobs.Runner
	gw     Notifier
	bus    eventbus.Bus
	log    logx.Logger

	triggers chan Trigger
	cr       *cron.Cron
}

func New(
	opts Options,
	store *state.Store,
	runner jobs.Runner,
	gw Notifier,
	hb *heartbeat.Monitor,
	bus eventbus.Bus,
	log logx.Logger,
) *Loop {
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	l := &Loop{
		opts:     opts,
		store:    store,
		runner:   runner,
		gw:       gw,
		hb:       hb,
		bus:      bus,
		log:      log,
		triggers: make(chan Trigger, 8),
	}
	l.daily = watchdog.New(opts.Daily, gatewayFunc(gw.SendAlert), log)
	l.weekly = watchdog.New(opts.Weekly, gatewayFunc(gw.SendAlert), log)
	return l
}

type gatewayFunc func(ctx context.Context, msg string) error

func (f gatewayFunc) SendAlert(ctx context.Context, msg string) error { return f(ctx, msg) }

// Enqueue raises a trigger without blocking. Drops (with a log line) when the
// queue is full; the loop drains it every tick so that only happens if the
// loop is wedged on a long job anyway.
func (l *Loop) Enqueue(t Trigger) {
	select {
	case l.triggers <- t:
	default:
		l.log.Warn("trigger dropped (queue full)", logx.String("cadence", t.Cadence), logx.String("source", t.Source))
	}
}

// State returns a copy of the current supervisor state.
func (l *Loop) State() state.State { return l.st }

// Run executes the supervisor loop until ctx is canceled.
func (l *Loop) Run(ctx context.Context) error {
	l.initState(time.Now())
	l.startCron()
	defer l.stopCron()

	for _, t := range l.opts.RunAtStart {
		l.Enqueue(t)
	}

	ticker := time.NewTicker(l.opts.Tick)
	defer ticker.Stop()

	l.log.Info("supervisor loop started",
		logx.Duration("tick", l.opts.Tick),
		logx.Time("next_daily", l.st.NextExpectedRun),
		logx.Time("next_weekly", l.st.NextExpectedWeeklyRun),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.tick(ctx, time.Now())
		}
	}
}

// tick processes pending triggers, evaluates both watchdogs, and runs the
// heartbeat when due. All blocking calls happen inline.
func (l *Loop) tick(ctx context.Context, now time.Time) {
	// Drain manual/scheduled triggers first so a trigger raised just before
	// the deadline counts against it.
	for {
		select {
		case t := <-l.triggers:
			l.runOnce(ctx, t)
			now = time.Now()
		default:
			goto drained
		}
	}
drained:

	l.evaluate(ctx, now)

	if l.hb != nil && l.hb.Due(now) {
		status := l.hb.Check(ctx, now)
		l.bus.Publish(eventbus.Event{Type: eventbus.TypeHeartbeat, Data: status.String()})
	}
}

// initState loads (and migrates) the persisted state, then fills in the first
// deadlines. First-run initialization prefers today's occurrence when the
// scheduled time is still ahead, so startup before the first slot doesn't
// read as a miss.
func (l *Loop) initState(now time.Time) {
	l.st = l.store.Load()

	changed := false
	if l.st.NextExpectedRun.IsZero() {
		l.st.NextExpectedRun = l.opts.Daily.First(now)
		changed = true
	}
	if l.st.NextExpectedWeeklyRun.IsZero() {
		l.st.NextExpectedWeeklyRun = l.opts.Weekly.First(now)
		changed = true
	}
	if changed {
		l.save()
		l.log.Info("state initialized",
			logx.Time("next_daily", l.st.NextExpectedRun),
			logx.Time("next_weekly", l.st.NextExpectedWeeklyRun),
		)
	}
}

// evaluate ticks both watchdogs and applies any deadline advancement.
// Deadlines only ever move forward.
func (l *Loop) evaluate(ctx context.Context, now time.Time) {
	changed := false

	d := l.daily.Tick(ctx, now, l.st.NextExpectedRun, l.st.LastSuccessfulRun)
	if !d.NewDeadline.IsZero() && d.NewDeadline.After(l.st.NextExpectedRun) {
		l.st.NextExpectedRun = d.NewDeadline
		changed = true
	}
	if d.AlertSent {
		l.bus.Publish(eventbus.Event{Type: eventbus.TypeAlertSent, Data: "daily deadline missed"})
	}

	w := l.weekly.Tick(ctx, now, l.st.NextExpectedWeeklyRun, l.st.LastSuccessfulWeeklyRun)
	if !w.NewDeadline.IsZero() && w.NewDeadline.After(l.st.NextExpectedWeeklyRun) {
		l.st.NextExpectedWeeklyRun = w.NewDeadline
		changed = true
	}
	if w.AlertSent {
		l.bus.Publish(eventbus.Event{Type: eventbus.TypeAlertSent, Data: "weekly deadline missed"})
	}

	if changed {
		l.save()
	}
}

// runOnce executes one job to completion. Success advances the cadence's
// state; failure leaves it untouched and raises a single alert with the
// reason, relying on the next scheduled attempt or a manual retrigger.
func (l *Loop) runOnce(ctx context.Context, t Trigger) {
	started := time.Now()
	l.log.Info("run starting", logx.String("cadence", t.Cadence), logx.String("source", t.Source))
	l.bus.Publish(eventbus.Event{Type: eventbus.TypeRunStarted, Data: t})

	var (
		artifacts []string
		err       error
	)
	switch t.Cadence {
	case "weekly":
		artifacts, err = l.runner.RunWeekly(ctx)
	default:
		artifacts, err = l.runner.RunDaily(ctx)
	}
	finished := time.Now()

	rec := history.RunRecord{
		Cadence:    t.Cadence,
		Source:     t.Source,
		StartedAt:  started,
		FinishedAt: finished,
		OK:         err == nil,
		Artifacts:  artifacts,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	defer l.bus.Publish(eventbus.Event{Type: eventbus.TypeRunFinished, Data: rec})

	if err != nil {
		l.log.Error("run failed", logx.String("cadence", t.Cadence), logx.Err(err))
		msg := fmt.Sprintf("staywatch: %s report run FAILED: %v", t.Cadence, err)
		if serr := l.gw.SendAlert(ctx, msg); serr != nil {
			l.log.Warn("failure alert delivery failed", logx.Err(serr))
		}
		return
	}

	l.recordSuccess(t.Cadence, finished)
	l.log.Info("run succeeded",
		logx.String("cadence", t.Cadence),
		logx.Duration("took", finished.Sub(started)),
		logx.Int("artifacts", len(artifacts)),
	)

	l.deliver(ctx, t.Cadence, artifacts)
}

// recordSuccess advances lastSuccessful/nextExpected for the cadence.
// A new deadline value implicitly re-arms the watchdog's dedup tracker.
func (l *Loop) recordSuccess(cadence string, at time.Time) {
	switch cadence {
	case "weekly":
		if at.After(l.st.LastSuccessfulWeeklyRun) {
			l.st.LastSuccessfulWeeklyRun = at
		}
		if next := l.weekly.RecordSuccess(at); next.After(l.st.NextExpectedWeeklyRun) {
			l.st.NextExpectedWeeklyRun = next
		}
	default:
		if at.After(l.st.LastSuccessfulRun) {
			l.st.LastSuccessfulRun = at
		}
		if next := l.daily.RecordSuccess(at); next.After(l.st.NextExpectedRun) {
			l.st.NextExpectedRun = next
		}
	}
	l.save()
}

func (l *Loop) save() {
	if err := l.store.Save(l.st); err != nil {
		l.log.Error("state save failed", logx.Err(err))
	}
}

func (l *Loop) startCron() {
	l.cr = cron.New()

	if l.opts.TestEvery > 0 {
		l.cr.Schedule(cron.Every(l.opts.TestEvery), cron.FuncJob(func() {
			l.Enqueue(Trigger{Cadence: "daily", Source: "schedule"})
		}))
		l.log.Info("accelerated test cadence active", logx.Duration("every", l.opts.TestEvery))
		l.cr.Start()
		return
	}

	dailySpec := fmt.Sprintf("%d %d * * *", l.opts.Daily.Minute, l.opts.Daily.Hour)
	if _, err := l.cr.AddFunc(dailySpec, func() {
		l.Enqueue(Trigger{Cadence: "daily", Source: "schedule"})
	}); err != nil {
		l.log.Error("daily cron entry failed", logx.Err(err))
	}

	if l.opts.Weekly.Weekday != nil {
		weeklySpec := fmt.Sprintf("%d %d * * %d", l.opts.Weekly.Minute, l.opts.Weekly.Hour, int(*l.opts.Weekly.Weekday))
		if _, err := l.cr.AddFunc(weeklySpec, func() {
			l.Enqueue(Trigger{Cadence: "weekly", Source: "schedule"})
		}); err != nil {
			l.log.Error("weekly cron entry failed", logx.Err(err))
		}
	}

	l.cr.Start()
}

func (l *Loop) stopCron() {
	if l.cr != nil {
		l.cr.Stop()
	}
}
