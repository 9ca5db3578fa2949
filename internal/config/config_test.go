package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("setup: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Render.Engine != EngineRod {
		t.Errorf("Render.Engine = %q, want %q", cfg.Render.Engine, EngineRod)
	}
	if cfg.Path.MaxLength != DefaultMaxLength {
		t.Errorf("Path.MaxLength = %d, want %d", cfg.Path.MaxLength, DefaultMaxLength)
	}
	if cfg.Path.PrefixBudget != DefaultPrefixBudget {
		t.Errorf("Path.PrefixBudget = %d, want %d", cfg.Path.PrefixBudget, DefaultPrefixBudget)
	}
	if cfg.Output.SkipExisting {
		t.Error("Output.SkipExisting = true, want false")
	}
	if !cfg.Metadata.LanguageDetection() {
		t.Error("LanguageDetection() = false, want true by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestValidateFieldLength(t *testing.T) {
	tests := []struct {
		name      string
		fieldName string
		value     string
		maxLength int
		wantErr   bool
	}{
		{"empty value is valid", "test", "", 10, false},
		{"value at limit is valid", "test", "1234567890", 10, false},
		{"value over limit returns error", "test.field", "12345678901", 10, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFieldLength(tt.fieldName, tt.value, tt.maxLength)
			if tt.wantErr {
				if !errors.Is(err, ErrFieldTooLong) {
					t.Errorf("error = %v, want ErrFieldTooLong", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestConfig_Validate - Value ranges and lengths
// ---------------------------------------------------------------------------

func TestConfig_Validate(t *testing.T) {
	no := false

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{"defaults", func(c *Config) {}, nil},
		{"chromedp engine", func(c *Config) { c.Render.Engine = "chromedp" }, nil},
		{"engine is case-insensitive", func(c *Config) { c.Render.Engine = "ROD" }, nil},
		{"unknown engine", func(c *Config) { c.Render.Engine = "webkit" }, ErrInvalidValue},
		{"valid timeout", func(c *Config) { c.Render.Timeout = "2m" }, nil},
		{"unparseable timeout", func(c *Config) { c.Render.Timeout = "soon" }, ErrInvalidValue},
		{"zero timeout", func(c *Config) { c.Render.Timeout = "0s" }, ErrInvalidValue},
		{"warning level", func(c *Config) { c.Log.Level = "warning" }, nil},
		{"unknown level", func(c *Config) { c.Log.Level = "trace" }, ErrInvalidValue},
		{"negative max length", func(c *Config) { c.Path.MaxLength = -1 }, ErrInvalidValue},
		{"negative prefix budget", func(c *Config) { c.Path.PrefixBudget = -5 }, ErrInvalidValue},
		{"negative max files", func(c *Config) { c.Input.MaxFiles = -1 }, ErrInvalidValue},
		{"language detection off", func(c *Config) { c.Metadata.DetectLanguage = &no }, nil},
		{"creator too long", func(c *Config) { c.Metadata.Creator = strings.Repeat("x", MaxToolLength+1) }, ErrFieldTooLong},
		{"source root too long", func(c *Config) { c.Input.SourceRoot = strings.Repeat("x", MaxPathLength+1) }, ErrFieldTooLong},
		{"file entry too long", func(c *Config) { c.Input.Files = []string{"ok", strings.Repeat("x", MaxPathLength+1)} }, ErrFieldTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_RenderTimeout(t *testing.T) {
	cfg := DefaultConfig()
	if d, err := cfg.RenderTimeout(); err != nil || d != 0 {
		t.Errorf("unset RenderTimeout() = %v, %v; want 0, nil", d, err)
	}
	cfg.Render.Timeout = "90s"
	if d, err := cfg.RenderTimeout(); err != nil || d != 90*time.Second {
		t.Errorf("RenderTimeout() = %v, %v; want 90s", d, err)
	}
}

// ---------------------------------------------------------------------------
// TestLoadConfig - Files and names
// ---------------------------------------------------------------------------

func TestLoadConfig(t *testing.T) {
	t.Run("empty name returns ErrEmptyConfigName", func(t *testing.T) {
		_, err := LoadConfig("")
		if !errors.Is(err, ErrEmptyConfigName) {
			t.Errorf("error = %v, want ErrEmptyConfigName", err)
		}
	})

	t.Run("yaml file loads every section", func(t *testing.T) {
		path := writeConfig(t, "test.yaml", `input:
  sourceRoot: "/archive/in"
  files: ["/archive/extra.mht"]
  recurse: true
  maxFiles: 10
output:
  root: "/archive/out"
  skipExisting: true
log:
  path: "/archive/out/logs/run.log"
  level: debug
render:
  engine: chromedp
  timeout: 45s
path:
  maxLength: 200
  prefixBudget: 60
metadata:
  creator: "Archive Team"
  producer: "archiver"
  detectLanguage: false
`)

		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if cfg.Input.SourceRoot != "/archive/in" || !cfg.Input.Recurse || cfg.Input.MaxFiles != 10 {
			t.Errorf("Input = %+v", cfg.Input)
		}
		if len(cfg.Input.Files) != 1 || cfg.Input.Files[0] != "/archive/extra.mht" {
			t.Errorf("Input.Files = %v", cfg.Input.Files)
		}
		if cfg.Output.Root != "/archive/out" || !cfg.Output.SkipExisting {
			t.Errorf("Output = %+v", cfg.Output)
		}
		if cfg.Log.Level != "debug" {
			t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
		}
		if cfg.Render.Engine != EngineChromedp || cfg.Render.Timeout != "45s" {
			t.Errorf("Render = %+v", cfg.Render)
		}
		if cfg.Path.MaxLength != 200 || cfg.Path.PrefixBudget != 60 {
			t.Errorf("Path = %+v", cfg.Path)
		}
		if cfg.Metadata.Creator != "Archive Team" || cfg.Metadata.LanguageDetection() {
			t.Errorf("Metadata = %+v", cfg.Metadata)
		}
	})

	t.Run("partial file keeps defaults", func(t *testing.T) {
		path := writeConfig(t, "partial.yaml", "output:\n  skipExisting: true\n")

		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if cfg.Path.MaxLength != DefaultMaxLength {
			t.Errorf("Path.MaxLength = %d, want default %d", cfg.Path.MaxLength, DefaultMaxLength)
		}
		if cfg.Render.Engine != DefaultEngine {
			t.Errorf("Render.Engine = %q, want default", cfg.Render.Engine)
		}
	})

	t.Run("toml file is parsed by extension", func(t *testing.T) {
		path := writeConfig(t, "test.toml", `[output]
root = "/archive/out"
skipExisting = true

[path]
maxLength = 180
`)

		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if cfg.Output.Root != "/archive/out" || !cfg.Output.SkipExisting {
			t.Errorf("Output = %+v", cfg.Output)
		}
		if cfg.Path.MaxLength != 180 {
			t.Errorf("Path.MaxLength = %d, want 180", cfg.Path.MaxLength)
		}
	})

	t.Run("unknown toml key returns ErrConfigParse", func(t *testing.T) {
		path := writeConfig(t, "unknown.toml", "[output]\nbogus = 1\n")

		_, err := LoadConfig(path)
		if !errors.Is(err, ErrConfigParse) {
			t.Errorf("error = %v, want ErrConfigParse", err)
		}
	})

	t.Run("nonexistent file path returns ErrConfigNotFound", func(t *testing.T) {
		_, err := LoadConfig("/nonexistent/path/config.yaml")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("error = %v, want ErrConfigNotFound", err)
		}
	})

	t.Run("invalid YAML returns ErrConfigParse", func(t *testing.T) {
		path := writeConfig(t, "invalid.yaml", "output: [unclosed")

		_, err := LoadConfig(path)
		if !errors.Is(err, ErrConfigParse) {
			t.Errorf("error = %v, want ErrConfigParse", err)
		}
	})

	t.Run("unknown field returns ErrConfigParse in strict mode", func(t *testing.T) {
		path := writeConfig(t, "unknown.yaml", "output:\n  root: out\nunknownField: x\n")

		_, err := LoadConfig(path)
		if !errors.Is(err, ErrConfigParse) {
			t.Errorf("error = %v, want ErrConfigParse", err)
		}
	})

	t.Run("invalid value is rejected after parsing", func(t *testing.T) {
		path := writeConfig(t, "engine.yaml", "render:\n  engine: webkit\n")

		_, err := LoadConfig(path)
		if !errors.Is(err, ErrInvalidValue) {
			t.Errorf("error = %v, want ErrInvalidValue", err)
		}
	})

	t.Run("config name resolves in current directory", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "myconfig.toml"), []byte("[log]\nlevel = \"warn\"\n"), 0600); err != nil {
			t.Fatalf("setup: %v", err)
		}

		originalWd, err := os.Getwd()
		if err != nil {
			t.Fatalf("failed to get working directory: %v", err)
		}
		defer os.Chdir(originalWd)
		if err := os.Chdir(dir); err != nil {
			t.Fatalf("chdir: %v", err)
		}

		cfg, err := LoadConfig("myconfig")
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if cfg.Log.Level != "warn" {
			t.Errorf("Log.Level = %q, want warn", cfg.Log.Level)
		}
	})

	t.Run("unknown name lists tried paths", func(t *testing.T) {
		_, err := LoadConfig("no-such-config-name")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("error = %v, want ErrConfigNotFound", err)
		}
		if !strings.Contains(err.Error(), "no-such-config-name.toml") {
			t.Errorf("error %q does not list the .toml candidate", err)
		}
	})
}
