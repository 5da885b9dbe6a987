package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "staywatch/pkg/logx"
)

// startSystemdNotify reports readiness to systemd and, when WatchdogSec is
// set on the unit, feeds the systemd watchdog from the supervisor context.
// Outside systemd both calls are no-ops.
func (a *App) startSystemdNotify() {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		a.log.Warn("sd_notify failed", logx.Err(err))
		return
	}
	if !sent {
		return // not running under systemd
	}
	a.log.Info("systemd readiness notified")

	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		a.log.Warn("systemd watchdog query failed", logx.Err(err))
		return
	}
	if interval <= 0 {
		return
	}

	// Feed at half the unit's WatchdogSec, the conventional margin.
	a.sup.Go0("systemd.watchdog", func(c context.Context) {
		ticker := time.NewTicker(interval / 2)
		defer ticker.Stop()
		for {
			select {
			case <-c.Done():
				return
			case <-ticker.C:
				if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
					a.log.Warn("systemd watchdog ping failed", logx.Err(err))
				}
			}
		}
	})
}
