package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"staywatch/internal/config"
	"staywatch/internal/heartbeat"
	"staywatch/internal/history"
	"staywatch/internal/jobs"
	"staywatch/internal/notify"
	"staywatch/internal/schedule"
	"staywatch/internal/session"
	logx "staywatch/pkg/logx"
)

// mapCadences turns the schedule section into the two cadences plus the loop
// tick. Errors name the offending config path.
func mapCadences(cfg *config.Config) (daily, weekly schedule.Cadence, tick time.Duration, err error) {
	sc := cfg.Schedule

	dh, dm, err := config.ParseHHMM("schedule.daily_time", defaultStr(sc.DailyTime, "06:01"))
	if err != nil {
		return daily, weekly, 0, err
	}
	dg, err := config.ParseDurationOrDefault("schedule.daily_grace", sc.DailyGrace, 10*time.Minute)
	if err != nil {
		return daily, weekly, 0, err
	}
	daily = schedule.Daily(dh, dm, dg)

	wd, err := config.ParseWeekday("schedule.weekly_day", defaultStr(sc.WeeklyDay, "saturday"))
	if err != nil {
		return daily, weekly, 0, err
	}
	wh, wm, err := config.ParseHHMM("schedule.weekly_time", defaultStr(sc.WeeklyTime, "10:00"))
	if err != nil {
		return daily, weekly, 0, err
	}
	wg, err := config.ParseDurationOrDefault("schedule.weekly_grace", sc.WeeklyGrace, 30*time.Minute)
	if err != nil {
		return daily, weekly, 0, err
	}
	weekly = schedule.Weekly(wd, wh, wm, wg)

	tick, err = config.ParseDurationOrDefault("schedule.tick", sc.Tick, time.Second)
	if err != nil {
		return daily, weekly, 0, err
	}
	return daily, weekly, tick, nil
}

func mapSessionConfig(cfg *config.Config) (session.Config, error) {
	sc := cfg.Session
	timeout, err := config.ParseDurationOrDefault("session.timeout", sc.Timeout, 30*time.Second)
	if err != nil {
		return session.Config{}, err
	}
	out := session.Config{
		BaseURL:        sc.BaseURL,
		LoginURL:       sc.LoginURL,
		AuthURLPattern: sc.AuthURLPattern,
		MarkerSelector: sc.MarkerSelector,
		UsernameField:  sc.UsernameField,
		PasswordField:  sc.PasswordField,
		Timeout:        timeout,
	}
	out.CredentialsFromEnv(sc.UsernameEnv, sc.PasswordEnv)
	return out, nil
}

func mapJobsConfig(cfg *config.Config) (jobs.Config, error) {
	dc := cfg.Dashboard
	navTimeout, err := config.ParseDurationOrDefault("dashboard.nav_timeout", dc.NavTimeout, 30*time.Second)
	if err != nil {
		return jobs.Config{}, err
	}
	out := jobs.Config{
		ReportListURL:   dc.ReportListURL,
		PreviewSelector: dc.PreviewSelector,
		ExportSelector:  dc.ExportSelector,
		FormatLabel:     dc.FormatLabel,
		DownloadDir:     defaultStr(dc.DownloadDir, "./downloads"),
		UserDataDir:     dc.UserDataDir,
		Headless:        dc.Headless,
		NavTimeout:      navTimeout,
	}
	for _, r := range dc.DailyReports {
		out.DailyReports = append(out.DailyReports, jobs.ReportSpec{Name: r.Name, RangeLabel: r.RangeLabel})
	}
	for _, r := range dc.WeeklyReports {
		out.WeeklyReports = append(out.WeeklyReports, jobs.ReportSpec{Name: r.Name, RangeLabel: r.RangeLabel})
	}
	return out, nil
}

func mapHeartbeatConfig(cfg *config.Config) (heartbeat.Config, error) {
	hc := cfg.Heartbeat
	interval, err := config.ParseDurationOrDefault("heartbeat.interval", hc.Interval, 5*time.Minute)
	if err != nil {
		return heartbeat.Config{}, err
	}
	return heartbeat.Config{
		Interval:       interval,
		ProbeURLs:      hc.ProbeURLs,
		ReauthAttempts: hc.ReauthAttempts,
	}, nil
}

func mapHistoryConfig(cfg *config.Config) (history.Config, bool, error) {
	if cfg.History == nil || !cfg.History.Enabled {
		return history.Config{}, false, nil
	}
	if strings.TrimSpace(cfg.History.Path) == "" {
		return history.Config{}, false, fmt.Errorf("history.path is required when history is enabled")
	}
	busy, err := config.ParseDurationOrDefault("history.busy_timeout", cfg.History.BusyTimeout, 5*time.Second)
	if err != nil {
		return history.Config{}, false, err
	}
	return history.Config{
		Path:        cfg.History.Path,
		BusyTimeout: busy,
		Keep:        cfg.History.Keep,
	}, true, nil
}

// buildSenders assembles the configured notification channels. Missing
// secrets disable a channel with a warning rather than failing startup; an
// unreachable channel should not keep the supervisor from watching deadlines.
func buildSenders(cfg *config.Config, log logx.Logger) ([]notify.Sender, error) {
	var senders []notify.Sender

	if cc := cfg.Notify.Comms; cc != nil {
		keyEnv := defaultStr(cc.APIKeyEnv, "COMMS_API_KEY")
		key := os.Getenv(keyEnv)
		if key == "" {
			log.Warn("comms channel disabled: api key env is empty", logx.String("env", keyEnv))
		} else {
			timeout, err := config.ParseDurationOrDefault("notify.comms.timeout", cc.Timeout, 30*time.Second)
			if err != nil {
				return nil, err
			}
			client, err := notify.NewCommsClient(notify.CommsConfig{
				URL:     cc.URL,
				APIKey:  key,
				From:    cc.From,
				EmailTo: cc.EmailTo,
				SMSTo:   cc.SMSTo,
				Timeout: timeout,
			}, log.With(logx.String("comp", "comms")))
			if err != nil {
				return nil, err
			}
			senders = append(senders, client)
		}
	}

	if tc := cfg.Notify.Telegram; tc != nil {
		tokenEnv := defaultStr(tc.TokenEnv, "TELEGRAM_BOT_TOKEN")
		token := os.Getenv(tokenEnv)
		if token == "" {
			log.Warn("telegram channel disabled: token env is empty", logx.String("env", tokenEnv))
		} else {
			tg, err := notify.NewTelegramSender(token, tc.ChatID, log.With(logx.String("comp", "telegram")))
			if err != nil {
				return nil, err
			}
			senders = append(senders, tg)
		}
	}

	return senders, nil
}

// validateConfig is the hot-reload gate: a config that fails here is rejected
// before commit, keeping the previous one live.
func validateConfig(cfg *config.Config) error {
	if strings.TrimSpace(cfg.StateFile) == "" {
		return fmt.Errorf("state_file is required")
	}
	if _, _, _, err := mapCadences(cfg); err != nil {
		return err
	}
	if _, err := mapSessionConfig(cfg); err != nil {
		return err
	}
	if _, err := mapJobsConfig(cfg); err != nil {
		return err
	}
	if _, err := mapHeartbeatConfig(cfg); err != nil {
		return err
	}
	if _, _, err := mapHistoryConfig(cfg); err != nil {
		return err
	}
	if cfg.Notify.RatePerSec < 0 {
		return fmt.Errorf("notify.rate_per_sec must be >= 0")
	}
	if cc := cfg.Notify.Comms; cc != nil && strings.TrimSpace(cc.URL) == "" {
		return fmt.Errorf("notify.comms.url is required when comms is configured")
	}
	return nil
}

func defaultStr(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
