package mht2pdf

import (
	"context"
	"os"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/keenmouse/mht2pdf/internal/process"
)

// chromedpRenderer implements Renderer over the DevTools protocol with
// chromedp. One browser serves every render; each file gets its own tab.
type chromedpRenderer struct {
	timeout       time.Duration
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
}

func newChromedpRenderer(timeout time.Duration) *chromedpRenderer {
	return &chromedpRenderer{timeout: timeout}
}

func (r *chromedpRenderer) ensureBrowser() error {
	if r.browserCtx != nil {
		return nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
	)
	if bin := os.Getenv(EnvBrowserBin); bin != "" {
		opts = append(opts, chromedp.ExecPath(bin))
	}
	if noSandbox() {
		opts = append(opts, chromedp.NoSandbox)
	}

	actx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	bctx, cancelBrowser := chromedp.NewContext(actx)

	// An empty Run starts the browser.
	if err := chromedp.Run(bctx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return newRenderError(ErrBrowserConnect, err)
	}

	r.browserCtx = bctx
	r.cancelBrowser = cancelBrowser
	r.cancelAlloc = cancelAlloc
	return nil
}

// Render opens path in a new tab and prints it to PDF.
func (r *chromedpRenderer) Render(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.ensureBrowser(); err != nil {
		return nil, err
	}

	timeout, err := remaining(ctx, r.timeout)
	if err != nil {
		return nil, err
	}

	tabCtx, cancelTab := chromedp.NewContext(r.browserCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, timeout)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancelTimeout)
	defer stop()

	if err := chromedp.Run(tabCtx,
		chromedp.Navigate(fileURL(path)),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, newRenderError(ErrPageLoad, err)
	}

	var pdf []byte
	err = chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		buf, _, err := page.PrintToPDF().
			WithPaperWidth(paperWidthInches).
			WithPaperHeight(paperHeightInches).
			WithMarginTop(marginInches).
			WithMarginBottom(marginInches).
			WithMarginLeft(marginInches).
			WithMarginRight(marginInches).
			WithPrintBackground(true).
			Do(ctx)
		pdf = buf
		return err
	}))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, newRenderError(ErrPDFGeneration, err)
	}
	return pdf, nil
}

// Close shuts the browser down and kills any process it left behind.
func (r *chromedpRenderer) Close() error {
	if r.browserCtx == nil {
		return nil
	}

	pid := 0
	if c := chromedp.FromContext(r.browserCtx); c != nil && c.Browser != nil {
		if p := c.Browser.Process(); p != nil {
			pid = p.Pid
		}
	}

	err := chromedp.Cancel(r.browserCtx)
	r.cancelBrowser()
	r.cancelAlloc()
	if pid > 0 {
		_ = process.KillProcessGroup(pid)
	}

	r.browserCtx = nil
	r.cancelBrowser = nil
	r.cancelAlloc = nil
	return err
}
