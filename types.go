package mht2pdf

import (
	"time"

	"go.uber.org/zap"

	"github.com/keenmouse/mht2pdf/internal/metadata"
	"github.com/keenmouse/mht2pdf/internal/pathing"
)

// Job names one archive to convert.
type Job struct {
	// Source is the archive path as given by the caller.
	Source string
	// Rel is Source relative to the scanned root. Its directories are
	// mirrored under OutputRoot and it feeds the filename hash. Empty means
	// the base name of Source.
	Rel string
	// OutputRoot is the directory receiving the PDF and its sidecar.
	OutputRoot string
}

// Status is the outcome of one job.
type Status string

// Job outcomes.
const (
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// ConversionRecord is the per-file result of Convert.
type ConversionRecord struct {
	Status   Status
	Source   string
	Output   string
	Sidecar  string
	Metadata metadata.Record
	Err      error
	Duration time.Duration
}

// Summary tallies the records of a run.
type Summary struct {
	Records   []ConversionRecord
	Succeeded int
	Skipped   int
	Failed    int
	// NotStarted counts jobs left unprocessed after cancellation.
	NotStarted int
}

func (s *Summary) add(r ConversionRecord) {
	s.Records = append(s.Records, r)
	switch r.Status {
	case StatusSuccess:
		s.Succeeded++
	case StatusSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
}

// OK reports whether every job succeeded or was skipped.
func (s Summary) OK() bool {
	return s.Failed == 0 && s.NotStarted == 0
}

// Option configures a Converter.
type Option func(*Converter)

// converterConfig holds internal configuration for Converter.
type converterConfig struct {
	timeout      time.Duration
	skipExisting bool
}

// defaultTimeout bounds a single render.
const defaultTimeout = 90 * time.Second

// WithTimeout sets the per-file render timeout.
// Panics if d <= 0 (programmer error, similar to time.NewTicker).
func WithTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("mht2pdf: WithTimeout duration must be positive")
	}
	return func(c *Converter) {
		c.cfg.timeout = d
	}
}

// WithRenderer sets the renderer. The Converter closes it on Close.
// Panics if r is nil.
func WithRenderer(r Renderer) Option {
	if r == nil {
		panic("mht2pdf: WithRenderer renderer must not be nil")
	}
	return func(c *Converter) {
		c.renderer = r
	}
}

// WithLogger sets the conversion log. A nil logger discards entries.
func WithLogger(l *zap.Logger) Option {
	return func(c *Converter) {
		if l == nil {
			l = zap.NewNop()
		}
		c.logger = l
	}
}

// WithPathEngine sets the output path engine.
// Panics if e is nil.
func WithPathEngine(e *pathing.Engine) Option {
	if e == nil {
		panic("mht2pdf: WithPathEngine engine must not be nil")
	}
	return func(c *Converter) {
		c.paths = e
	}
}

// WithResolverOptions appends options to the metadata resolver.
func WithResolverOptions(opts ...metadata.Option) Option {
	return func(c *Converter) {
		c.resolverOpts = append(c.resolverOpts, opts...)
	}
}

// WithSkipExisting leaves sources whose PDF already exists and is
// non-empty untouched.
func WithSkipExisting(skip bool) Option {
	return func(c *Converter) {
		c.cfg.skipExisting = skip
	}
}

// WithNow sets the clock used to time jobs.
// Panics if now is nil.
func WithNow(now func() time.Time) Option {
	if now == nil {
		panic("mht2pdf: WithNow clock must not be nil")
	}
	return func(c *Converter) {
		c.now = now
	}
}
