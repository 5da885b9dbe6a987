package jobs

import (
	"context"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	logx "staywatch/pkg/logx"
)

// Record opens a visible browser on the report list and logs every page the
// operator navigates to, until ctx is canceled. Used to discover the click
// path for a new report without touching any state.
func (r *BrowserRunner) Record(ctx context.Context) error {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if r.cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(r.cfg.UserDataDir))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var last string
	chromedp.ListenTarget(browserCtx, func(ev any) {
		if e, ok := ev.(*page.EventFrameNavigated); ok && e.Frame.ParentID == "" {
			url := e.Frame.URL
			if url != "" && url != last {
				last = url
				r.log.Info("visited", logx.String("url", url))
			}
		}
	})

	if err := chromedp.Run(browserCtx, chromedp.Navigate(r.cfg.ReportListURL)); err != nil {
		return err
	}
	r.log.Info("recording navigation; press Ctrl+C to stop")
	<-browserCtx.Done()
	return nil
}
