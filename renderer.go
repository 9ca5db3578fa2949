package mht2pdf

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/keenmouse/mht2pdf/internal/config"
	"github.com/keenmouse/mht2pdf/internal/process"
)

// Renderer turns a local archive into PDF bytes.
type Renderer interface {
	// Render loads the file at path, which must be absolute, and prints
	// it. Failures wrap ErrRenderFailure.
	Render(ctx context.Context, path string) ([]byte, error)
	// Close releases the browser.
	Close() error
}

// Compile-time interface checks
var (
	_ Renderer = (*rodRenderer)(nil)
	_ Renderer = (*chromedpRenderer)(nil)
)

// Browser environment variables.
const (
	EnvBrowserBin = "MHT2PDF_BROWSER_BIN"
	EnvNoSandbox  = "MHT2PDF_NO_SANDBOX"
)

// PDF page dimensions in inches (US Letter format).
const (
	paperWidthInches  = 8.5
	paperHeightInches = 11
	marginInches      = 0.5
)

// NewRenderer returns the renderer for engine ("rod" or "chromedp"; empty
// selects rod). The browser starts on the first Render.
func NewRenderer(engine string, timeout time.Duration) (Renderer, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", config.EngineRod:
		return newRodRenderer(timeout), nil
	case config.EngineChromedp:
		return newChromedpRenderer(timeout), nil
	default:
		return nil, fmt.Errorf("%w: unknown render engine %q", ErrConfig, engine)
	}
}

// noSandbox reports whether Chrome must run without its sandbox, as in
// containers and CI.
func noSandbox() bool {
	return os.Getenv(EnvNoSandbox) == "1" ||
		os.Getenv("CI") == "true" ||
		os.Getenv(EnvBrowserBin) != ""
}

// rodRenderer implements Renderer using go-rod.
// Rod downloads Chromium on first run if none is found.
type rodRenderer struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	timeout  time.Duration
}

func newRodRenderer(timeout time.Duration) *rodRenderer {
	return &rodRenderer{timeout: timeout}
}

// ensureBrowser lazily launches and connects to the browser.
func (r *rodRenderer) ensureBrowser() error {
	if r.browser != nil {
		return nil
	}

	l := launcher.New()
	if bin := os.Getenv(EnvBrowserBin); bin != "" {
		l = l.Bin(bin)
	}
	if noSandbox() {
		l = l.NoSandbox(true)
	}
	u, err := l.Launch()
	if err != nil {
		return newRenderError(ErrBrowserConnect, err)
	}
	r.launcher = l

	r.browser = rod.New().ControlURL(u)
	if err := r.browser.Connect(); err != nil {
		r.browser = nil
		r.kill()
		return newRenderError(ErrBrowserConnect, err)
	}
	return nil
}

// Close disconnects and kills the browser with its children.
func (r *rodRenderer) Close() error {
	var err error
	if r.browser != nil {
		err = r.browser.Close()
		r.browser = nil
	}
	r.kill()
	return err
}

func (r *rodRenderer) kill() {
	if r.launcher == nil {
		return
	}
	if pid := r.launcher.PID(); pid > 0 {
		_ = process.KillProcessGroup(pid)
	}
	r.launcher.Kill()
	r.launcher = nil
}

// Render opens path in headless Chrome and prints it to PDF.
func (r *rodRenderer) Render(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.ensureBrowser(); err != nil {
		return nil, err
	}

	page, err := r.browser.Page(proto.TargetCreateTarget{URL: fileURL(path)})
	if err != nil {
		return nil, newRenderError(ErrPageCreate, err)
	}
	defer page.Close()

	timeout, err := remaining(ctx, r.timeout)
	if err != nil {
		return nil, err
	}
	page = page.Context(ctx).Timeout(timeout)

	if err := page.WaitLoad(); err != nil {
		return nil, newRenderError(ErrPageLoad, err)
	}

	reader, err := page.PDF(&proto.PagePrintToPDF{
		PaperWidth:      floatPtr(paperWidthInches),
		PaperHeight:     floatPtr(paperHeightInches),
		MarginTop:       floatPtr(marginInches),
		MarginBottom:    floatPtr(marginInches),
		MarginLeft:      floatPtr(marginInches),
		MarginRight:     floatPtr(marginInches),
		PrintBackground: true,
	})
	if err != nil {
		return nil, newRenderError(ErrPDFGeneration, err)
	}

	pdf, err := io.ReadAll(reader)
	if err != nil {
		return nil, newRenderError(ErrPDFGeneration, fmt.Errorf("reading PDF stream: %w", err))
	}
	return pdf, nil
}

// remaining returns the time left before ctx's deadline, or fallback when
// ctx has none.
func remaining(ctx context.Context, fallback time.Duration) (time.Duration, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return fallback, nil
	}
	d := time.Until(deadline)
	if d <= 0 {
		return 0, context.DeadlineExceeded
	}
	return d, nil
}

// fileURL builds a file:// URL for an absolute path on any platform.
func fileURL(path string) string {
	p := strings.ReplaceAll(path, `\`, "/")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return (&url.URL{Scheme: "file", Path: p}).String()
}

func floatPtr(v float64) *float64 {
	return &v
}
