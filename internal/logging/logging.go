// Package logging builds the line-oriented conversion log.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Structured field keys shared by every log line.
const (
	FieldRunID    = "run_id"
	FieldSource   = "source"
	FieldOutput   = "output"
	FieldSidecar  = "sidecar"
	FieldStatus   = "status"
	FieldDuration = "duration"
	FieldField    = "field"
	FieldOrigin   = "origin"
	FieldMIME     = "mime"
	FieldSHA256   = "sha256"
	FieldCaptured = "captured"
)

// ErrInvalidLevel indicates an unrecognized log level name.
var ErrInvalidLevel = errors.New("invalid log level")

// Options describes logger construction parameters.
type Options struct {
	// Path is the log file, opened for append. Empty disables the file.
	Path string
	// Level is debug, info, warn or error. Empty means info.
	Level string
	// Mirror receives a copy of every line when set, e.g. stderr in
	// verbose mode.
	Mirror io.Writer
	// RunID tags every line. Empty generates one.
	RunID string
}

// New constructs a console-encoded zap logger. The returned close function
// flushes and closes the log file.
func New(opts Options) (*zap.Logger, func() error, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	enc := zapcore.NewConsoleEncoder(encoderConfig())
	var cores []zapcore.Core
	closeFile := func() error { return nil }

	if opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("ensure log directory: %w", err)
		}
		f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(f), level))
		closeFile = f.Close
	}
	if opts.Mirror != nil {
		cores = append(cores, zapcore.NewCore(enc.Clone(), zapcore.AddSync(opts.Mirror), level))
	}
	if len(cores) == 0 {
		return zap.NewNop(), closeFile, nil
	}

	runID := opts.RunID
	if runID == "" {
		runID = NewRunID()
	}
	logger := zap.New(zapcore.NewTee(cores...)).With(zap.String(FieldRunID, runID))

	closeFn := func() error {
		// Sync on a terminal mirror returns EINVAL on some platforms.
		_ = logger.Sync()
		return closeFile()
	}
	return logger, closeFn, nil
}

// NewRunID returns a fresh identifier for one invocation.
func NewRunID() string {
	return uuid.NewString()
}

// ParseLevel maps a level name to a zap level.
func ParseLevel(s string) (zapcore.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	if s == "warning" {
		s = "warn"
	}
	level, err := zapcore.ParseLevel(s)
	if err != nil || level > zapcore.ErrorLevel {
		return zapcore.InfoLevel, fmt.Errorf("%w: %q (expected debug, info, warn or error)", ErrInvalidLevel, s)
	}
	return level, nil
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:          "ts",
		LevelKey:         "level",
		MessageKey:       "msg",
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
}
