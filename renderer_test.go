package mht2pdf

// Notes:
// - Covers engine selection, URL building and deadline handling; the
//   browser itself is exercised only by integration runs, never here
// - Tests touching the environment use t.Setenv and therefore do not run
//   in parallel

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewRenderer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		engine  string
		want    string
		wantErr bool
	}{
		{"", "rod", false},
		{"rod", "rod", false},
		{" ROD ", "rod", false},
		{"chromedp", "chromedp", false},
		{"webkit", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.engine, func(t *testing.T) {
			t.Parallel()

			r, err := NewRenderer(tt.engine, time.Second)
			if tt.wantErr {
				if !errors.Is(err, ErrConfig) {
					t.Errorf("error = %v, want ErrConfig", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			switch r.(type) {
			case *rodRenderer:
				if tt.want != "rod" {
					t.Errorf("got rod renderer, want %s", tt.want)
				}
			case *chromedpRenderer:
				if tt.want != "chromedp" {
					t.Errorf("got chromedp renderer, want %s", tt.want)
				}
			}
			if err := r.Close(); err != nil {
				t.Errorf("Close() on an unstarted renderer: %v", err)
			}
		})
	}
}

func TestNewRenderer_DefaultTimeout(t *testing.T) {
	t.Parallel()

	r, err := NewRenderer("rod", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := r.(*rodRenderer).timeout; got != defaultTimeout {
		t.Errorf("timeout = %v, want %v", got, defaultTimeout)
	}
}

func TestFileURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
	}{
		{"/tmp/page.mhtml", "file:///tmp/page.mhtml"},
		{"/tmp/a b.mhtml", "file:///tmp/a%20b.mhtml"},
		{`C:\archive\page.mhtml`, "file:///C:/archive/page.mhtml"},
	}

	for _, tt := range tests {
		if got := fileURL(tt.path); got != tt.want {
			t.Errorf("fileURL(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestRemaining(t *testing.T) {
	t.Parallel()

	t.Run("no deadline uses fallback", func(t *testing.T) {
		t.Parallel()

		d, err := remaining(context.Background(), 3*time.Second)
		if err != nil || d != 3*time.Second {
			t.Errorf("remaining() = %v, %v; want 3s", d, err)
		}
	})

	t.Run("deadline bounds the wait", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		d, err := remaining(ctx, time.Hour)
		if err != nil || d <= 0 || d > time.Minute {
			t.Errorf("remaining() = %v, %v; want at most 1m", d, err)
		}
	})

	t.Run("passed deadline", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
		defer cancel()
		if _, err := remaining(ctx, time.Hour); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("error = %v, want DeadlineExceeded", err)
		}
	})
}

func TestRender_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, r := range []Renderer{newRodRenderer(time.Second), newChromedpRenderer(time.Second)} {
		if _, err := r.Render(ctx, "/tmp/page.mhtml"); !errors.Is(err, context.Canceled) {
			t.Errorf("%T.Render() error = %v, want context.Canceled", r, err)
		}
	}
}

func TestNoSandbox(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want bool
	}{
		{"nothing set", map[string]string{"CI": "", EnvNoSandbox: "", EnvBrowserBin: ""}, false},
		{"explicit", map[string]string{"CI": "", EnvNoSandbox: "1", EnvBrowserBin: ""}, true},
		{"ci", map[string]string{"CI": "true", EnvNoSandbox: "", EnvBrowserBin: ""}, true},
		{"custom browser", map[string]string{"CI": "", EnvNoSandbox: "", EnvBrowserBin: "/usr/bin/chromium"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if got := noSandbox(); got != tt.want {
				t.Errorf("noSandbox() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRenderError(t *testing.T) {
	t.Parallel()

	cause := errors.New("socket closed")
	err := newRenderError(ErrPageLoad, cause)

	for _, target := range []error{ErrRenderFailure, ErrPageLoad, cause} {
		if !errors.Is(err, target) {
			t.Errorf("errors.Is(%v, %v) = false", err, target)
		}
	}
	if want := "failed to load page: socket closed"; err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
