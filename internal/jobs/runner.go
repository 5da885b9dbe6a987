// Package jobs runs the report generation workflow against the vendor
// dashboard and hands back the downloaded artifact paths.
package jobs

import (
	"context"
	"time"
)

// Runner is the supervisor's view of the report generation job. A run either
// succeeds with the exported artifact paths or fails with a reason; the
// supervisor decides what that means for state and alerting.
type Runner interface {
	RunDaily(ctx context.Context) ([]string, error)
	RunWeekly(ctx context.Context) ([]string, error)
}

// ReportSpec names one report link to export and the date-range option to
// pick in its popup.
type ReportSpec struct {
	Name       string
	RangeLabel string
}

// Config drives the browser automation. All selectors are configuration so a
// dashboard markup change doesn't require a rebuild.
type Config struct {
	ReportListURL string

	DailyReports  []ReportSpec
	WeeklyReports []ReportSpec

	PreviewSelector string
	ExportSelector  string
	FormatLabel     string

	DownloadDir string
	UserDataDir string
	Headless    bool
	NavTimeout  time.Duration // per navigation step
}
