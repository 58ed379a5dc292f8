package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	appLog "loadshedcal/internal/log"
)

// DefaultBrowserTimeout bounds a single page render.
const DefaultBrowserTimeout = 30 * time.Second

// BrowserOptions configures a headless Chromium page render.
type BrowserOptions struct {
	// URL of the announcement page.
	URL string

	// Selector is the CSS query whose outer HTML is returned. If empty,
	// DefaultSelector is used.
	Selector string

	// Timeout bounds navigation plus wait. If zero, DefaultBrowserTimeout is used.
	Timeout time.Duration

	// ExecAllocatorOptions are passed to chromedp when non-empty, e.g. to
	// point at a specific Chromium binary.
	ExecAllocatorOptions []chromedp.ExecAllocatorOption
}

func (o BrowserOptions) withDefaults() BrowserOptions {
	if o.Selector == "" {
		o.Selector = DefaultSelector
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultBrowserTimeout
	}
	return o
}

// RenderPage launches headless Chromium, navigates to opts.URL, waits for
// opts.Selector to be present and returns its outer HTML. It is used for
// pages that only fill in the announcement with client-side scripts.
func RenderPage(parentCtx context.Context, opts BrowserOptions) ([]byte, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("schedule: browser URL is required")
	}
	opts = opts.withDefaults()

	ctx := parentCtx
	if len(opts.ExecAllocatorOptions) > 0 {
		allocCtx, cancel := chromedp.NewExecAllocator(parentCtx, opts.ExecAllocatorOptions...)
		defer cancel()
		ctx = allocCtx
	}

	ctx, cancel := chromedp.NewContext(ctx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var outer string
	tasks := chromedp.Tasks{
		chromedp.Navigate(opts.URL),
		chromedp.WaitReady(opts.Selector, chromedp.ByQuery),
		chromedp.OuterHTML(opts.Selector, &outer, chromedp.ByQuery),
	}

	start := time.Now()
	if err := chromedp.Run(ctx, tasks); err != nil {
		return nil, fmt.Errorf("schedule: chromedp run failed: %w", err)
	}
	appLog.Info("schedule page rendered", "url", redactURL(opts.URL), "elapsed", time.Since(start), "bytes", len(outer))

	return []byte(outer), nil
}
