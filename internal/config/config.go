package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/keenmouse/mht2pdf/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrFieldTooLong    = errors.New("field exceeds maximum length")
	ErrInvalidValue    = errors.New("invalid config value")
)

// Field length limits.
const (
	MaxPathLength    = 4096 // Paths and file lists
	MaxToolLength    = 200  // creator / producer
	MaxLevelLength   = 10   // "debug", "warning"
	MaxEngineLength  = 20   // "rod", "chromedp"
	MaxTimeoutLength = 20   // "90s", "2m30s"
	MaxFiles         = 10000
)

// Defaults applied when a field is left empty.
const (
	DefaultEngine       = EngineRod
	DefaultLevel        = "info"
	DefaultMaxLength    = 260
	DefaultPrefixBudget = 80
)

// Renderer engines.
const (
	EngineRod      = "rod"
	EngineChromedp = "chromedp"
)

// Config holds all configuration for a conversion run.
type Config struct {
	Input    InputConfig    `yaml:"input" toml:"input"`
	Output   OutputConfig   `yaml:"output" toml:"output"`
	Log      LogConfig      `yaml:"log" toml:"log"`
	Render   RenderConfig   `yaml:"render" toml:"render"`
	Path     PathConfig     `yaml:"path" toml:"path"`
	Metadata MetadataConfig `yaml:"metadata" toml:"metadata"`
}

// InputConfig selects the archives to convert.
type InputConfig struct {
	SourceRoot string   `yaml:"sourceRoot" toml:"sourceRoot"` // Directory scanned for .mht/.mhtml
	Files      []string `yaml:"files" toml:"files"`           // Explicit files, in addition to sourceRoot
	Recurse    bool     `yaml:"recurse" toml:"recurse"`
	MaxFiles   int      `yaml:"maxFiles" toml:"maxFiles"` // 0 = no limit
}

// OutputConfig defines the artifact destination.
type OutputConfig struct {
	Root         string `yaml:"root" toml:"root"` // Empty = _pdf_archive next to the sources
	SkipExisting bool   `yaml:"skipExisting" toml:"skipExisting"`
}

// LogConfig defines the conversion log.
type LogConfig struct {
	Path  string `yaml:"path" toml:"path"`   // Empty = <output root>/logs/convert.log
	Level string `yaml:"level" toml:"level"` // debug, info, warn, error
}

// RenderConfig defines the headless browser renderer.
type RenderConfig struct {
	Engine  string `yaml:"engine" toml:"engine"`   // "rod" (default) or "chromedp"
	Timeout string `yaml:"timeout" toml:"timeout"` // Go duration, e.g. "90s"
}

// PathConfig defines output path shortening.
type PathConfig struct {
	MaxLength    int `yaml:"maxLength" toml:"maxLength"`       // Ceiling in characters (default 260)
	PrefixBudget int `yaml:"prefixBudget" toml:"prefixBudget"` // Title characters kept when shortening (default 80)
}

// MetadataConfig defines the tool-identifying fields and fallbacks.
type MetadataConfig struct {
	Creator        string `yaml:"creator" toml:"creator"`
	Producer       string `yaml:"producer" toml:"producer"`
	DetectLanguage *bool  `yaml:"detectLanguage" toml:"detectLanguage"` // nil = enabled
}

// LanguageDetection reports whether language detection is enabled.
func (m MetadataConfig) LanguageDetection() bool {
	return m.DetectLanguage == nil || *m.DetectLanguage
}

// RenderTimeout returns the parsed timeout, or zero when unset.
func (c *Config) RenderTimeout() (time.Duration, error) {
	if c.Render.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Render.Timeout)
	if err != nil {
		return 0, fmt.Errorf("%w: render.timeout %q: %v", ErrInvalidValue, c.Render.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: render.timeout must be positive, got %s", ErrInvalidValue, d)
	}
	return d, nil
}

// Validate checks field lengths and value ranges. Called automatically by
// LoadConfig, but available for configs built in code.
func (c *Config) Validate() error {
	if err := validateFieldLength("input.sourceRoot", c.Input.SourceRoot, MaxPathLength); err != nil {
		return err
	}
	if len(c.Input.Files) > MaxFiles {
		return fmt.Errorf("%w: input.files (%d entries, max %d)", ErrFieldTooLong, len(c.Input.Files), MaxFiles)
	}
	for i, f := range c.Input.Files {
		if err := validateFieldLength(fmt.Sprintf("input.files[%d]", i), f, MaxPathLength); err != nil {
			return err
		}
	}
	if c.Input.MaxFiles < 0 {
		return fmt.Errorf("%w: input.maxFiles must not be negative, got %d", ErrInvalidValue, c.Input.MaxFiles)
	}

	if err := validateFieldLength("output.root", c.Output.Root, MaxPathLength); err != nil {
		return err
	}
	if err := validateFieldLength("log.path", c.Log.Path, MaxPathLength); err != nil {
		return err
	}
	if err := validateFieldLength("log.level", c.Log.Level, MaxLevelLength); err != nil {
		return err
	}
	if c.Log.Level != "" {
		switch strings.ToLower(c.Log.Level) {
		case "debug", "info", "warn", "warning", "error":
			// valid
		default:
			return fmt.Errorf("%w: log.level %q (must be debug, info, warn, or error)", ErrInvalidValue, c.Log.Level)
		}
	}

	if err := validateFieldLength("render.engine", c.Render.Engine, MaxEngineLength); err != nil {
		return err
	}
	if c.Render.Engine != "" {
		switch strings.ToLower(c.Render.Engine) {
		case EngineRod, EngineChromedp:
			// valid
		default:
			return fmt.Errorf("%w: render.engine %q (must be rod or chromedp)", ErrInvalidValue, c.Render.Engine)
		}
	}
	if err := validateFieldLength("render.timeout", c.Render.Timeout, MaxTimeoutLength); err != nil {
		return err
	}
	if _, err := c.RenderTimeout(); err != nil {
		return err
	}

	if c.Path.MaxLength < 0 {
		return fmt.Errorf("%w: path.maxLength must not be negative, got %d", ErrInvalidValue, c.Path.MaxLength)
	}
	if c.Path.PrefixBudget < 0 {
		return fmt.Errorf("%w: path.prefixBudget must not be negative, got %d", ErrInvalidValue, c.Path.PrefixBudget)
	}

	if err := validateFieldLength("metadata.creator", c.Metadata.Creator, MaxToolLength); err != nil {
		return err
	}
	if err := validateFieldLength("metadata.producer", c.Metadata.Producer, MaxToolLength); err != nil {
		return err
	}
	return nil
}

// validateFieldLength checks if a field exceeds its maximum allowed length.
func validateFieldLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s (%d chars, max %d)", ErrFieldTooLong, fieldName, len(value), maxLength)
	}
	return nil
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Log:    LogConfig{Level: DefaultLevel},
		Render: RenderConfig{Engine: DefaultEngine},
		Path: PathConfig{
			MaxLength:    DefaultMaxLength,
			PrefixBudget: DefaultPrefixBudget,
		},
	}
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard locations.
// Files ending in .toml are parsed as TOML, everything else as YAML.
// Returns error if the file is not found (no silent fallback).
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	var configPath string
	var err error

	if isFilePath(nameOrPath) {
		configPath = nameOrPath
	} else {
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := decode(configPath, data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// decode parses data into cfg, rejecting unknown fields.
func decode(path string, data []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(cfg)
	}
	return yamlutil.UnmarshalStrict(data, cfg)
}

// isFilePath returns true if the string looks like a file path.
func isFilePath(s string) bool {
	return strings.ContainsAny(s, "/\\")
}

// resolveConfigPath searches for a config file by name in standard locations.
// Tries extensions in order: .yaml, .yml, .toml
// Tries locations in order: current directory, ~/.config/mht2pdf/
func resolveConfigPath(name string) (string, error) {
	extensions := []string{".yaml", ".yml", ".toml"}
	triedPaths := make([]string, 0, len(extensions)*2) // 2 locations

	// Try current directory first
	for _, ext := range extensions {
		localPath := name + ext
		if fileExists(localPath) {
			return localPath, nil
		}
		triedPaths = append(triedPaths, localPath)
	}

	// Try user config directory
	userConfigDir, err := os.UserConfigDir()
	if err == nil {
		for _, ext := range extensions {
			userPath := filepath.Join(userConfigDir, "mht2pdf", name+ext)
			if fileExists(userPath) {
				return userPath, nil
			}
			triedPaths = append(triedPaths, userPath)
		}
	}

	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(triedPaths, ", "))
}

// fileExists returns true if the path exists and is a regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
