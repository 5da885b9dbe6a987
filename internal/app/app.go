// Package app wires configuration, logging, notification channels and the
// supervisor loop into one runnable unit.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"staywatch/internal/config"
	"staywatch/internal/eventbus"
	"staywatch/internal/heartbeat"
	"staywatch/internal/history"
	"staywatch/internal/jobs"
	"staywatch/internal/loop"
	"staywatch/internal/notify"
	supervisor "staywatch/internal/runtime/supervisor"
	"staywatch/internal/session"
	"staywatch/internal/state"
	logx "staywatch/pkg/logx"
)

// Options are the run-mode switches from the command line.
type Options struct {
	// TestEvery, when nonzero, runs the daily job on a fixed short interval
	// instead of the configured cron times.
	TestEvery time.Duration
	// RunNowDaily / RunNowWeekly queue a one-shot run on startup.
	RunNowDaily  bool
	RunNowWeekly bool
}

type App struct {
	cfgPath string
	opts    Options

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	sess   *session.Session
	runner jobs.Runner
	gw     *notify.Gateway
	hist   *history.Service
	loop   *loop.Loop
	lst    *loop.Listener
}

func New(cfgPath string, opts Options) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	sessCfg, err := mapSessionConfig(cfg)
	if err != nil {
		return nil, err
	}
	sess, err := session.New(sessCfg, log.With(logx.String("comp", "session")))
	if err != nil {
		return nil, err
	}

	jobsCfg, err := mapJobsConfig(cfg)
	if err != nil {
		return nil, err
	}
	runner, err := jobs.NewBrowserRunner(jobsCfg, log.With(logx.String("comp", "jobs")))
	if err != nil {
		return nil, err
	}

	senders, err := buildSenders(cfg, log)
	if err != nil {
		return nil, err
	}
	gw := notify.NewGateway(cfg.Notify.RatePerSec, log.With(logx.String("comp", "notify")), senders...)
	log.Info("notification channels ready", logx.Any("channels", gw.Channels()))

	daily, weekly, tick, err := mapCadences(cfg)
	if err != nil {
		return nil, err
	}
	store := state.NewStore(cfg.StateFile, daily.Hour, daily.Minute, log.With(logx.String("comp", "state")))

	var hb *heartbeat.Monitor
	if cfg.Heartbeat.Enabled {
		hbCfg, err := mapHeartbeatConfig(cfg)
		if err != nil {
			return nil, err
		}
		hb = heartbeat.NewMonitor(hbCfg, sess, sess, gw, log.With(logx.String("comp", "heartbeat")))
	}

	var hist *history.Service
	if hc, enabled, err := mapHistoryConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		hist, err = history.Open(hc, log.With(logx.String("comp", "history")))
		if err != nil {
			return nil, err
		}
		log.Info("run history enabled", logx.String("path", hc.Path))
	}

	loopOpts := loop.Options{
		Tick:      tick,
		Daily:     daily,
		Weekly:    weekly,
		TestEvery: opts.TestEvery,
	}
	if opts.RunNowDaily {
		loopOpts.RunAtStart = append(loopOpts.RunAtStart, loop.Trigger{Cadence: "daily", Source: "startup"})
	}
	if opts.RunNowWeekly {
		loopOpts.RunAtStart = append(loopOpts.RunAtStart, loop.Trigger{Cadence: "weekly", Source: "startup"})
	}
	lp := loop.New(loopOpts, store, runner, gw, hb, bus, log.With(logx.String("comp", "loop")))
	lst := loop.NewListener(lp, cfg.Triggers.DailyCommand, cfg.Triggers.WeeklyCommand,
		log.With(logx.String("comp", "listener")))

	return &App{
		cfgPath: cfgPath,
		opts:    opts,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		sess:    sess,
		runner:  runner,
		gw:      gw,
		hist:    hist,
		loop:    lp,
		lst:     lst,
	}, nil
}

// Done is closed when the supervisor context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validateConfig(cfg)
	})

	a.sup.Go("loop.run", func(c context.Context) error {
		return a.loop.Run(c)
	})

	a.sup.Go0("listener.stdin", func(c context.Context) {
		_ = a.lst.Listen(c, os.Stdin)
	})

	if a.hist != nil {
		a.sup.GoRestart("history.sink", func(c context.Context) error {
			return a.hist.Run(c, a.bus)
		})
	}

	// Hot reload applies logging changes live; schedule and channel changes
	// need a restart and say so.
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.logs.Apply(logx.Config{
					Level:   newCfg.Logging.Level,
					Console: newCfg.Logging.Console,
					File: logx.FileConfig{
						Enabled: newCfg.Logging.File.Enabled,
						Path:    newCfg.Logging.File.Path,
					},
				})
				a.log.Info("config reloaded (schedule/channel changes take effect on restart)")
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.startSystemdNotify()

	a.log.Info("staywatch started")
	return nil
}

// Record opens a visible browser and logs every page navigation until ctx
// is canceled. Used to discover selectors and URLs for a new dashboard.
func (a *App) Record(ctx context.Context) error {
	br, ok := a.runner.(*jobs.BrowserRunner)
	if !ok {
		return fmt.Errorf("record mode needs the browser runner")
	}
	return br.Record(ctx)
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")
	a.sup.Cancel()

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.sup.Wait(waitCtx); err != nil {
		a.log.Warn("shutdown wait", logx.Err(err))
	}

	if a.hist != nil {
		if err := a.hist.Close(); err != nil {
			a.log.Warn("history close", logx.Err(err))
		}
	}

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
