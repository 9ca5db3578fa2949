package mht2pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/keenmouse/mht2pdf/internal/content"
	"github.com/keenmouse/mht2pdf/internal/fileutil"
	"github.com/keenmouse/mht2pdf/internal/logging"
	"github.com/keenmouse/mht2pdf/internal/metadata"
	"github.com/keenmouse/mht2pdf/internal/mhtml"
	"github.com/keenmouse/mht2pdf/internal/pathing"
	"github.com/keenmouse/mht2pdf/internal/pdfmeta"
	"github.com/keenmouse/mht2pdf/internal/sidecar"
)

// Converter drives archives through parsing, metadata resolution, path
// planning, rendering, embedding and the sidecar. Create with NewConverter,
// run jobs with Convert or Run, and Close when done.
type Converter struct {
	cfg          converterConfig
	renderer     Renderer
	logger       *zap.Logger
	paths        *pathing.Engine
	resolverOpts []metadata.Option
	resolver     *metadata.Resolver
	now          func() time.Time

	mu      sync.Mutex
	claimed map[string]string // output path -> source file
}

// NewConverter creates a Converter. Without WithRenderer the go-rod
// renderer is used.
func NewConverter(opts ...Option) *Converter {
	c := &Converter{
		cfg:     converterConfig{timeout: defaultTimeout},
		logger:  zap.NewNop(),
		paths:   pathing.New(),
		now:     time.Now,
		claimed: make(map[string]string),
		resolverOpts: []metadata.Option{
			metadata.WithLanguageDetector(content.DetectLanguage),
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.renderer == nil {
		c.renderer = newRodRenderer(c.cfg.timeout)
	}
	c.resolver = metadata.NewResolver(c.resolverOpts...)
	return c
}

// Close releases the renderer.
func (c *Converter) Close() error {
	if c.renderer == nil {
		return nil
	}
	return c.renderer.Close()
}

// Run converts jobs one after another. A failed file does not stop the
// run; a canceled context stops it before the next file.
func (c *Converter) Run(ctx context.Context, jobs []Job) Summary {
	var s Summary
	for i, job := range jobs {
		if ctx.Err() != nil {
			s.NotStarted = len(jobs) - i
			c.logger.Warn("run canceled", zap.Int("not_started", s.NotStarted), zap.Error(ctx.Err()))
			break
		}
		s.add(c.Convert(ctx, job))
	}
	return s
}

// Convert processes one archive and logs the outcome. Panics inside the
// pipeline are recovered into a failed record.
func (c *Converter) Convert(ctx context.Context, job Job) (rec ConversionRecord) {
	start := c.now()
	rec = ConversionRecord{Source: job.Source}

	defer func() {
		if r := recover(); r != nil {
			rec.Status = StatusFailed
			rec.Err = fmt.Errorf("internal error: %v", r)
		}
		rec.Duration = c.now().Sub(start)
		c.logRecord(rec)
	}()

	if err := c.convert(ctx, job, &rec); err != nil {
		rec.Status = StatusFailed
		rec.Err = err
	}
	return rec
}

func (c *Converter) convert(ctx context.Context, job Job, rec *ConversionRecord) error {
	if job.Source == "" {
		return ErrEmptyJob
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	record, err := c.resolve(job.Source)
	if err != nil {
		return err
	}
	rec.Metadata = record

	out, err := c.plan(job, record)
	if err != nil {
		return err
	}
	rec.Output = out.String()
	rec.Sidecar = out.Sidecar()

	if c.cfg.skipExisting && fileutil.NonEmptyFile(rec.Output) && fileutil.NonEmptyFile(rec.Sidecar) {
		rec.Status = StatusSkipped
		return nil
	}

	pdf, err := c.render(ctx, job.Source)
	if err != nil {
		return err
	}

	embedded, err := pdfmeta.Embed(pdf, record)
	if err != nil {
		return err
	}

	if err := fileutil.WriteFileAtomic(rec.Output, embedded, filePermissions); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteOutput, err)
	}
	if err := sidecar.Write(rec.Sidecar, record); err != nil {
		// A PDF without its sidecar is never left behind.
		if rmErr := os.Remove(rec.Output); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			c.logger.Warn("removing orphaned pdf", zap.String(logging.FieldOutput, rec.Output), zap.Error(rmErr))
		}
		return fmt.Errorf("%w: %v", ErrWriteOutput, err)
	}

	rec.Status = StatusSuccess
	return nil
}

// resolve reads the archive and merges its header, content and file
// candidates into a record.
func (c *Converter) resolve(source string) (metadata.Record, error) {
	raw, err := os.ReadFile(source) // #nosec G304 -- discovered source path
	if err != nil {
		return metadata.Record{}, fmt.Errorf("%w: %v", ErrReadSource, err)
	}

	doc, err := mhtml.Parse(raw)
	if err != nil {
		// The document still carries the raw payload as HTML.
		c.logger.Warn("resolving from content only", zap.String(logging.FieldSource, source), zap.Error(err))
	}
	parsed := []zap.Field{
		zap.String(logging.FieldSource, source),
		zap.String(logging.FieldMIME, doc.MIMEType),
		zap.String(logging.FieldSHA256, doc.ContentSHA256),
	}
	if captured, ok := doc.CapturedAt(); ok {
		parsed = append(parsed, zap.Time(logging.FieldCaptured, captured))
	}
	c.logger.Debug("archive parsed", parsed...)

	meta := content.Extract(doc.HTML)
	times, err := fileutil.StatTimes(source)
	if err != nil {
		times = fileutil.Times{}
	}

	record := c.resolver.Resolve(metadata.Input{
		SourcePath:    source,
		Headers:       doc.Headers,
		Content:       meta,
		PartURL:       doc.PartURL,
		ContentSHA256: doc.ContentSHA256,
		Text:          meta.Text(),
		Created:       times.Created,
		Modified:      times.Modified,
	})

	for _, w := range record.Warnings() {
		c.logger.Warn("metadata field degraded", zap.String(logging.FieldSource, source), zap.Error(w))
	}
	record.Each(func(f metadata.Field, _ string) {
		c.logger.Debug("field resolved",
			zap.String(logging.FieldSource, source),
			zap.String(logging.FieldField, f.String()),
			zap.String(logging.FieldOrigin, record.Origin(f)))
	})
	return record, nil
}

// plan computes the output path. A path claimed by another source, in this
// run or by an earlier run's sidecar, is replaced by its disambiguated form.
func (c *Converter) plan(job Job, record metadata.Record) (pathing.OutputPath, error) {
	rel := job.Rel
	if rel == "" {
		rel = filepath.Base(job.Source)
	}
	title := record.Value(metadata.Title)
	source := record.Value(metadata.SourceFile)

	out, err := c.paths.Plan(job.OutputRoot, rel, title)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.takenLocked(out, source) {
		out, err = c.paths.Disambiguate(job.OutputRoot, rel, title)
		if err != nil {
			return "", err
		}
	}
	c.claimed[claimKey(out)] = source
	return out, nil
}

func (c *Converter) takenLocked(out pathing.OutputPath, source string) bool {
	if owner, ok := c.claimed[claimKey(out)]; ok {
		return owner != source
	}
	prev, err := sidecar.Read(out.Sidecar())
	if err != nil {
		return false
	}
	owner, ok := prev.Get(metadata.SourceFile)
	return ok && owner != source
}

// claimKey folds case so names differing only in case collide, as they
// do on case-insensitive filesystems.
func claimKey(p pathing.OutputPath) string {
	return strings.ToLower(filepath.Clean(p.String()))
}

// render prints the archive through the renderer under the job timeout.
// Archives saved as .mht are staged under a .mhtml name first.
func (c *Converter) render(ctx context.Context, source string) ([]byte, error) {
	path := source
	if fileutil.HasExtension(source, ".mht") {
		tmp, cleanup, err := fileutil.CopyToTemp(source, "mhtml")
		if err != nil {
			return nil, fmt.Errorf("%w: staging %s: %v", ErrRenderFailure, source, err)
		}
		defer cleanup()
		path = tmp
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailure, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.timeout)
	defer cancel()

	pdf, err := c.renderer.Render(ctx, abs)
	if err != nil {
		if errors.Is(err, ErrRenderFailure) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrRenderFailure, err)
	}
	if len(pdf) == 0 {
		return nil, fmt.Errorf("%w: renderer returned no bytes", ErrRenderFailure)
	}
	return pdf, nil
}

func (c *Converter) logRecord(r ConversionRecord) {
	fields := []zap.Field{
		zap.String(logging.FieldSource, r.Source),
		zap.String(logging.FieldOutput, r.Output),
		zap.String(logging.FieldStatus, string(r.Status)),
		zap.Duration(logging.FieldDuration, r.Duration),
	}
	if r.Sidecar != "" && r.Status == StatusSuccess {
		fields = append(fields, zap.String(logging.FieldSidecar, r.Sidecar))
	}
	if r.Err != nil {
		c.logger.Error("file failed", append(fields, zap.Error(r.Err))...)
		return
	}
	c.logger.Info("file done", fields...)
}
