package mht2pdf

import (
	"errors"

	"github.com/keenmouse/mht2pdf/internal/mhtml"
	"github.com/keenmouse/mht2pdf/internal/pathing"
	"github.com/keenmouse/mht2pdf/internal/pdfmeta"
)

// Sentinel errors for conversion runs.
var (
	// ErrRenderFailure marks a renderer that produced no PDF bytes. The
	// file is marked failed and the run continues.
	ErrRenderFailure  = errors.New("render failed")
	ErrBrowserConnect = errors.New("failed to connect to browser")
	ErrPageCreate     = errors.New("failed to create browser page")
	ErrPageLoad       = errors.New("failed to load page")
	ErrPDFGeneration  = errors.New("PDF generation failed")

	// ErrConfig marks fatal run-level problems that abort a run before
	// any file is processed.
	ErrConfig     = errors.New("configuration error")
	ErrOutputRoot = errors.New("output root is not writable")
	ErrLockHeld   = errors.New("output root is locked by another run")

	ErrReadSource  = errors.New("failed to read source file")
	ErrWriteOutput = errors.New("failed to write output")
	ErrEmptyJob    = errors.New("job has no source path")
)

// Errors raised by the pipeline stages, re-exported for errors.Is.
var (
	ErrMalformedEnvelope = mhtml.ErrMalformedEnvelope
	ErrPathTooLong       = pathing.ErrPathTooLong
	ErrEmbedFailure      = pdfmeta.ErrEmbedFailure
)

// renderError wraps a browser-stage error so that it matches both the
// stage sentinel and ErrRenderFailure.
type renderError struct {
	stage error
	err   error
}

func (e *renderError) Error() string {
	return e.stage.Error() + ": " + e.err.Error()
}

func (e *renderError) Unwrap() []error {
	return []error{ErrRenderFailure, e.stage, e.err}
}

func newRenderError(stage, err error) error {
	return &renderError{stage: stage, err: err}
}
