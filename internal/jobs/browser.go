package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	logx "staywatch/pkg/logx"
)

// BrowserRunner exports reports through a real Chrome instance. One browser
// is launched per run and torn down afterwards; the persistent user data dir
// keeps the dashboard login between runs.
type BrowserRunner struct {
	cfg Config
	log logx.Logger
}

func NewBrowserRunner(cfg Config, log logx.Logger) (*BrowserRunner, error) {
	if strings.TrimSpace(cfg.ReportListURL) == "" {
		return nil, errors.New("jobs: report_list_url is required")
	}
	if cfg.DownloadDir == "" {
		cfg.DownloadDir = "./downloads"
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &BrowserRunner{cfg: cfg, log: log}, nil
}

func (r *BrowserRunner) RunDaily(ctx context.Context) ([]string, error) {
	return r.run(ctx, "daily", r.cfg.DailyReports)
}

func (r *BrowserRunner) RunWeekly(ctx context.Context) ([]string, error) {
	return r.run(ctx, "weekly", r.cfg.WeeklyReports)
}

func (r *BrowserRunner) run(ctx context.Context, cadence string, reports []ReportSpec) ([]string, error) {
	if len(reports) == 0 {
		return nil, fmt.Errorf("jobs: no %s reports configured", cadence)
	}
	if err := os.MkdirAll(r.cfg.DownloadDir, 0o755); err != nil {
		return nil, err
	}

	browserCtx, cancel, err := r.newBrowser(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	artifacts := make([]string, 0, len(reports))
	for _, spec := range reports {
		path, err := r.exportReport(browserCtx, spec)
		if err != nil {
			return nil, fmt.Errorf("export %q: %w", spec.Name, err)
		}
		r.log.Info("report exported", logx.String("report", spec.Name), logx.String("path", path))
		artifacts = append(artifacts, path)
	}
	return artifacts, nil
}

func (r *BrowserRunner) newBrowser(ctx context.Context) (context.Context, context.CancelFunc, error) {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", r.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if r.cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(r.cfg.UserDataDir))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	cancel := func() {
		browserCancel()
		allocCancel()
	}

	// Route downloads into our directory.
	if err := chromedp.Run(browserCtx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(mustAbs(r.cfg.DownloadDir)),
	); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("jobs: browser start: %w", err)
	}
	return browserCtx, cancel, nil
}

// exportReport walks one report through the dashboard: open the report list,
// open the report, pick the date range, preview (new tab), export, and wait
// for the download to land.
func (r *BrowserRunner) exportReport(browserCtx context.Context, spec ReportSpec) (string, error) {
	navCtx, cancel := context.WithTimeout(browserCtx, r.cfg.NavTimeout)
	defer cancel()

	if err := chromedp.Run(navCtx,
		chromedp.Navigate(r.cfg.ReportListURL),
		chromedp.WaitReady("body"),
		clickText(spec.Name),
		clickText(spec.RangeLabel),
	); err != nil {
		return "", err
	}

	// The preview button opens the report in a new tab.
	targetCh := chromedp.WaitNewTarget(browserCtx, func(info *target.Info) bool {
		return info.Type == "page" && info.OpenerID != ""
	})
	if err := chromedp.Run(navCtx, chromedp.Click(r.cfg.PreviewSelector, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("preview click: %w", err)
	}

	var previewID target.ID
	select {
	case previewID = <-targetCh:
	case <-time.After(r.cfg.NavTimeout):
		return "", errors.New("preview tab did not open")
	}

	previewCtx, previewCancel := chromedp.NewContext(browserCtx, chromedp.WithTargetID(previewID))
	defer previewCancel()
	defer func() {
		_ = chromedp.Cancel(previewCtx)
	}()

	before, err := snapshotDir(r.cfg.DownloadDir)
	if err != nil {
		return "", err
	}

	expCtx, expCancel := context.WithTimeout(previewCtx, r.cfg.NavTimeout)
	defer expCancel()
	if err := chromedp.Run(expCtx,
		chromedp.WaitVisible(r.cfg.ExportSelector, chromedp.ByQuery),
		chromedp.Click(r.cfg.ExportSelector, chromedp.ByQuery),
		clickText(r.cfg.FormatLabel),
	); err != nil {
		return "", fmt.Errorf("export click: %w", err)
	}

	downloaded, err := waitForDownload(previewCtx, r.cfg.DownloadDir, before, 2*time.Minute)
	if err != nil {
		return "", err
	}

	final := filepath.Join(r.cfg.DownloadDir, artifactName(spec.Name, time.Now(), filepath.Ext(downloaded)))
	if err := os.Rename(downloaded, final); err != nil {
		// Keep the original name rather than losing the artifact.
		r.log.Warn("artifact rename failed", logx.String("from", downloaded), logx.Err(err))
		return downloaded, nil
	}
	return final, nil
}

// clickText clicks the first visible element whose text matches exactly.
func clickText(text string) chromedp.Action {
	xp := fmt.Sprintf(`//*[normalize-space(text())=%s]`, xpathQuote(text))
	return chromedp.Click(xp, chromedp.BySearch)
}

// xpathQuote builds an XPath string literal, handling embedded quotes.
func xpathQuote(s string) string {
	if !strings.Contains(s, `'`) {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, `'`)
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		quoted = append(quoted, "'"+p+"'")
	}
	return "concat(" + strings.Join(quoted, ",") + ")"
}

// artifactName builds e.g. "arrival_report_20260106.pdf".
func artifactName(report string, now time.Time, ext string) string {
	slug := strings.ToLower(strings.TrimSpace(report))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, slug)
	if ext == "" {
		ext = ".pdf"
	}
	return fmt.Sprintf("%s_%s%s", slug, now.Format("20060102"), ext)
}

func snapshotDir(dir string) (map[string]struct{}, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		seen[e.Name()] = struct{}{}
	}
	return seen, nil
}

// waitForDownload polls the download dir for a new, fully written file.
// Chrome writes "<name>.crdownload" while the transfer is in flight.
func waitForDownload(ctx context.Context, dir string, before map[string]struct{}, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return "", err
		}
		for _, e := range entries {
			name := e.Name()
			if _, old := before[name]; old || e.IsDir() {
				continue
			}
			if strings.HasSuffix(name, ".crdownload") || strings.HasSuffix(name, ".tmp") {
				continue
			}
			return filepath.Join(dir, name), nil
		}
		if time.Now().After(deadline) {
			return "", errors.New("download did not complete in time")
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func mustAbs(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
