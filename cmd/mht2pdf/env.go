package main

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/keenmouse/mht2pdf"
	"github.com/keenmouse/mht2pdf/internal/config"
)

// Environment holds injectable dependencies for testability.
// Includes I/O, time, configuration, and the browser renderer.
type Environment struct {
	Now    func() time.Time
	Stdout io.Writer
	Stderr io.Writer
	Config *config.Config // Defaults, replaced when --config is given
	// IsTerminal reports whether w is an interactive terminal.
	IsTerminal func(w io.Writer) bool
	// NewRenderer builds the renderer for a run.
	NewRenderer func(engine string, timeout time.Duration) (mht2pdf.Renderer, error)
}

// DefaultEnv returns the production environment.
func DefaultEnv() *Environment {
	return &Environment{
		Now:         time.Now,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Config:      config.DefaultConfig(),
		IsTerminal:  isTerminal,
		NewRenderer: mht2pdf.NewRenderer,
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
