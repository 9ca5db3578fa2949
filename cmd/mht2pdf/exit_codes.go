package main

import (
	"errors"
	"os"

	"github.com/keenmouse/mht2pdf"
	"github.com/keenmouse/mht2pdf/internal/config"
)

// Exit codes for the mht2pdf CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess = 0 // Every file converted or skipped
	ExitGeneral = 1 // Some files failed, or an unexpected error
	ExitUsage   = 2 // Invalid flags, config, or validation
	ExitIO      = 3 // File not found, permission denied
	ExitBrowser = 4 // Browser/Chrome errors
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	// Browser errors (exit 4)
	if errors.Is(err, mht2pdf.ErrBrowserConnect) ||
		errors.Is(err, mht2pdf.ErrPageCreate) {
		return ExitBrowser
	}

	// I/O errors (exit 3)
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, mht2pdf.ErrOutputRoot) ||
		errors.Is(err, ErrNoInput) ||
		errors.Is(err, ErrWriteReport) {
		return ExitIO
	}

	// Usage/config/validation errors (exit 2)
	if errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrFieldTooLong) ||
		errors.Is(err, config.ErrInvalidValue) ||
		errors.Is(err, mht2pdf.ErrConfig) ||
		errors.Is(err, ErrInvalidFormat) ||
		errors.Is(err, ErrInvalidExtension) {
		return ExitUsage
	}

	return ExitGeneral
}
