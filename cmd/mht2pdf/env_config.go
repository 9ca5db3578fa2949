package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/keenmouse/mht2pdf"
	"github.com/keenmouse/mht2pdf/internal/config"
	"github.com/keenmouse/mht2pdf/internal/fileutil"
)

// envPrefix starts every environment variable the CLI reads.
const envPrefix = "MHT2PDF_"

// envConfig holds configuration from environment variables.
// Provides CI/CD-friendly overrides without requiring config files.
type envConfig struct {
	ConfigPath string // MHT2PDF_CONFIG: config file path
	SourceRoot string // MHT2PDF_SOURCE_ROOT: directory of archives
	OutputRoot string // MHT2PDF_OUTPUT_ROOT: artifact directory
	LogPath    string // MHT2PDF_LOG_PATH: conversion log file
	LogLevel   string // MHT2PDF_LOG_LEVEL: debug, info, warn, error
	Engine     string // MHT2PDF_ENGINE: rod or chromedp
	Timeout    string // MHT2PDF_TIMEOUT: per-file render timeout
	MaxPath    int    // MHT2PDF_MAX_PATH: output path ceiling
}

// knownEnvVars lists valid MHT2PDF_* environment variables.
// Used to detect typos and warn users about unknown variables.
var knownEnvVars = map[string]bool{
	"MHT2PDF_CONFIG":      true,
	"MHT2PDF_SOURCE_ROOT": true,
	"MHT2PDF_OUTPUT_ROOT": true,
	"MHT2PDF_LOG_PATH":    true,
	"MHT2PDF_LOG_LEVEL":   true,
	"MHT2PDF_ENGINE":      true,
	"MHT2PDF_TIMEOUT":     true,
	"MHT2PDF_MAX_PATH":    true,
	// Read by the renderers and doctor
	mht2pdf.EnvBrowserBin: true,
	mht2pdf.EnvNoSandbox:  true,
	"MHT2PDF_CONTAINER":   true,
}

// loadEnvConfig reads configuration from environment variables.
// Path values are trimmed of whitespace and stray line breaks.
func loadEnvConfig() *envConfig {
	cfg := &envConfig{
		ConfigPath: fileutil.CleanArg(os.Getenv("MHT2PDF_CONFIG")),
		SourceRoot: fileutil.CleanArg(os.Getenv("MHT2PDF_SOURCE_ROOT")),
		OutputRoot: fileutil.CleanArg(os.Getenv("MHT2PDF_OUTPUT_ROOT")),
		LogPath:    fileutil.CleanArg(os.Getenv("MHT2PDF_LOG_PATH")),
		LogLevel:   strings.TrimSpace(os.Getenv("MHT2PDF_LOG_LEVEL")),
		Engine:     strings.TrimSpace(os.Getenv("MHT2PDF_ENGINE")),
		Timeout:    strings.TrimSpace(os.Getenv("MHT2PDF_TIMEOUT")),
	}

	if v := os.Getenv("MHT2PDF_MAX_PATH"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			cfg.MaxPath = n
		}
	}

	return cfg
}

// warnUnknownEnvVars logs warnings for unrecognized MHT2PDF_* variables.
// Helps catch typos like MHT2PDF_OUTPUT_DIR instead of MHT2PDF_OUTPUT_ROOT.
func warnUnknownEnvVars(w io.Writer) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, envPrefix) {
			name := strings.SplitN(env, "=", 2)[0]
			if !knownEnvVars[name] {
				fmt.Fprintf(w, "warning: unknown environment variable %s (typo?)\n", name)
			}
		}
	}
}

// applyEnvConfig applies environment variable values to config.
// The log path always wins over the file, as the variable exists to
// redirect logs on shared machines. Everything else only fills values the
// file left at their defaults.
// This ensures: CLI flags > env vars > config file > defaults
// (CLI flags are applied later via mergeFlags)
func applyEnvConfig(env *envConfig, cfg *config.Config) {
	defaults := config.DefaultConfig()

	if env.SourceRoot != "" && cfg.Input.SourceRoot == "" {
		cfg.Input.SourceRoot = env.SourceRoot
	}
	if env.OutputRoot != "" && cfg.Output.Root == "" {
		cfg.Output.Root = env.OutputRoot
	}
	if env.LogPath != "" {
		cfg.Log.Path = env.LogPath
	}
	if env.LogLevel != "" && cfg.Log.Level == defaults.Log.Level {
		cfg.Log.Level = env.LogLevel
	}
	if env.Engine != "" && cfg.Render.Engine == defaults.Render.Engine {
		cfg.Render.Engine = env.Engine
	}
	if env.Timeout != "" && cfg.Render.Timeout == "" {
		cfg.Render.Timeout = env.Timeout
	}
	if env.MaxPath > 0 && cfg.Path.MaxLength == defaults.Path.MaxLength {
		cfg.Path.MaxLength = env.MaxPath
	}
}
