package config

// Config is the full staywatch configuration.
//
// Secrets (dashboard credentials, comms API key, bot token) are NOT part of
// the config file; fields ending in Env name the environment variable that
// carries the secret. A .env file next to the binary is honored at startup.
type Config struct {
	// StateFile is the path of the persisted supervisor state (JSON).
	StateFile string `json:"state_file"`

	Logging   LoggingConfig   `json:"logging"`
	Schedule  ScheduleConfig  `json:"schedule"`
	Heartbeat HeartbeatConfig `json:"heartbeat"`
	Session   SessionConfig   `json:"session"`
	Dashboard DashboardConfig `json:"dashboard"`
	Notify    NotifyConfig    `json:"notify"`
	Triggers  TriggersConfig  `json:"triggers"`

	// History controls the optional run-history store.
	History *HistoryConfig `json:"history,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// ScheduleConfig carries the two cadences and the loop tick.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
// Times of day are "HH:MM" 24h strings; weekly_day is an English weekday name.
type ScheduleConfig struct {
	DailyTime   string `json:"daily_time"`   // default "06:01"
	DailyGrace  string `json:"daily_grace"`  // default "10m"
	WeeklyDay   string `json:"weekly_day"`   // default "saturday"
	WeeklyTime  string `json:"weekly_time"`  // default "10:00"
	WeeklyGrace string `json:"weekly_grace"` // default "30m"

	// Tick is the supervisor loop poll interval. Default "1s".
	Tick string `json:"tick,omitempty"`
}

// HeartbeatConfig controls the session liveness monitor.
type HeartbeatConfig struct {
	Enabled bool `json:"enabled"`
	// Interval between liveness checks. Default "5m".
	Interval string `json:"interval,omitempty"`
	// ProbeURLs are low-risk authenticated pages fetched each check.
	// At least two are recommended so a single flaky page doesn't decide.
	ProbeURLs []string `json:"probe_urls"`
	// ReauthAttempts bounds automatic re-login attempts per failure episode.
	// Default 2 (some auth flows need a re-submission).
	ReauthAttempts int `json:"reauth_attempts,omitempty"`
	// Timeout per probe/reauth call. Default "30s".
	Timeout string `json:"timeout,omitempty"`
}

// SessionConfig describes the external authenticated web session.
//
// AuthURLPattern and MarkerSelector detect invalidation: a response landing on
// a URL containing the pattern, or a page missing the marker, means the
// session expired.
type SessionConfig struct {
	BaseURL        string `json:"base_url"`
	LoginURL       string `json:"login_url"`
	AuthURLPattern string `json:"auth_url_pattern"`
	MarkerSelector string `json:"marker_selector"`

	// Login form field names; empty means re-auth is not configured and
	// liveness failures escalate immediately.
	UsernameField string `json:"username_field,omitempty"`
	PasswordField string `json:"password_field,omitempty"`
	UsernameEnv   string `json:"username_env,omitempty"` // default "STAYWATCH_USERNAME"
	PasswordEnv   string `json:"password_env,omitempty"` // default "STAYWATCH_PASSWORD"

	Timeout string `json:"timeout,omitempty"` // default "30s"
}

// DashboardConfig drives the report export job (browser automation).
// Selectors are configuration, not code, so vendor markup changes don't
// require a rebuild.
type DashboardConfig struct {
	ReportListURL string `json:"report_list_url"`

	// DailyReports / WeeklyReports name the report links to export per run.
	DailyReports  []ReportSpec `json:"daily_reports"`
	WeeklyReports []ReportSpec `json:"weekly_reports"`

	PreviewSelector string `json:"preview_selector"` // button opening the preview tab
	ExportSelector  string `json:"export_selector"`  // export dropdown in the preview
	FormatLabel     string `json:"format_label"`     // e.g. "Acrobat (PDF) file"

	DownloadDir string `json:"download_dir"` // default "./downloads"
	UserDataDir string `json:"user_data_dir,omitempty"`
	Headless    bool   `json:"headless"`
	NavTimeout  string `json:"nav_timeout,omitempty"` // default "30s"
}

// ReportSpec is one report to export in a run.
type ReportSpec struct {
	// Name is the visible link text on the report list page.
	Name string `json:"name"`
	// RangeLabel is the date-range option clicked in the popup (e.g. "Tomorrow").
	RangeLabel string `json:"range_label"`
}

// NotifyConfig selects the alert delivery channels. All are optional;
// with none configured alerts are logged only.
type NotifyConfig struct {
	Comms    *CommsConfig    `json:"comms,omitempty"`
	Telegram *TelegramConfig `json:"telegram,omitempty"`

	// RatePerSec caps outbound sends across all channels. Default 1.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

// CommsConfig is the multi-channel send API (email/sms/telegram relay).
type CommsConfig struct {
	URL       string   `json:"url"`
	APIKeyEnv string   `json:"api_key_env,omitempty"` // default "COMMS_API_KEY"
	From      string   `json:"from,omitempty"`
	EmailTo   []string `json:"email_to,omitempty"`
	SMSTo     string   `json:"sms_to,omitempty"` // E.164
	Timeout   string   `json:"timeout,omitempty"`
}

// TelegramConfig is the direct Telegram channel (send-only bot).
type TelegramConfig struct {
	TokenEnv string `json:"token_env,omitempty"` // default "TELEGRAM_BOT_TOKEN"
	ChatID   int64  `json:"chat_id"`
}

// TriggersConfig names the stdin commands that force an immediate run.
// Matching is case-insensitive on the trimmed line.
type TriggersConfig struct {
	DailyCommand  string `json:"daily_command,omitempty"`  // default "run"
	WeeklyCommand string `json:"weekly_command,omitempty"` // default "runweekly"
}

// HistoryConfig controls the sqlite run-history store.
type HistoryConfig struct {
	Enabled     bool   `json:"enabled"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
	// Keep bounds how many run records are retained. Default 500.
	Keep int `json:"keep,omitempty"`
}
