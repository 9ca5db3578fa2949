// Package pathing maps a source archive and its resolved title to an output
// path that mirrors the source tree and stays within a length ceiling.
package pathing

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ErrPathTooLong indicates that not even a hash-only name fits under the
// ceiling, usually because the output root is too deep.
var ErrPathTooLong = errors.New("output path too long")

// Defaults and fixed widths.
const (
	DefaultMaxLength    = 260
	DefaultPrefixBudget = 80
	HashLength          = 12
	MaxNameBytes        = 255
	PDFExt              = ".pdf"
	SidecarExt          = ".metadata.json"
)

// longestExt is the longest artifact suffix sharing a stem; measuring with
// it keeps every artifact under the ceiling.
const longestExt = SidecarExt

// OutputPath is the planned location of a PDF.
type OutputPath string

// String returns the path.
func (p OutputPath) String() string {
	return string(p)
}

// Sidecar returns the sidecar location belonging to the PDF.
func (p OutputPath) Sidecar() string {
	return SidecarPath(string(p))
}

// Engine plans output paths. It holds only configuration, so one Engine
// may serve any number of files.
type Engine struct {
	maxLength    int
	prefixBudget int
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxLength sets the path length ceiling. Panics if n <= 0.
func WithMaxLength(n int) Option {
	if n <= 0 {
		panic("pathing: max length must be positive")
	}
	return func(e *Engine) {
		e.maxLength = n
	}
}

// WithPrefixBudget sets how many characters of the title a shortened name
// keeps. Panics if n <= 0.
func WithPrefixBudget(n int) Option {
	if n <= 0 {
		panic("pathing: prefix budget must be positive")
	}
	return func(e *Engine) {
		e.prefixBudget = n
	}
}

// New creates an Engine with the given options.
func New(opts ...Option) *Engine {
	e := &Engine{
		maxLength:    DefaultMaxLength,
		prefixBudget: DefaultPrefixBudget,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxLength returns the configured ceiling.
func (e *Engine) MaxLength() int {
	return e.maxLength
}

// Plan returns the output path for a source. The naive path
// outputDir/<source subdirectories>/<sanitized title>.pdf is used whenever
// it fits; otherwise the title is truncated and a hash suffix appended.
// The result depends only on the arguments.
func (e *Engine) Plan(outputDir, sourceRel, title string) (OutputPath, error) {
	sanitized := Sanitize(title)
	dir := targetDir(outputDir, sourceRel)

	naive := filepath.Join(dir, sanitized)
	if e.fits(naive) && nameFits(sanitized) {
		return OutputPath(naive + PDFExt), nil
	}
	return e.shorten(dir, sanitized, sourceRel)
}

// Disambiguate returns the hash-suffixed path for a source whose naive
// path is already taken by another source.
func (e *Engine) Disambiguate(outputDir, sourceRel, title string) (OutputPath, error) {
	return e.shorten(targetDir(outputDir, sourceRel), Sanitize(title), sourceRel)
}

func (e *Engine) shorten(dir, sanitized, sourceRel string) (OutputPath, error) {
	suffix := "-" + Hash(sanitized, sourceRel)

	fixed := pathLen(dir) + 1 + pathLen(suffix) + pathLen(longestExt)
	room := e.maxLength - fixed
	if room < 0 {
		return "", fmt.Errorf("%w: directory %q leaves no room under %d characters", ErrPathTooLong, dir, e.maxLength)
	}

	prefix := truncate(sanitized, min(e.prefixBudget, room), MaxNameBytes-len(suffix)-len(longestExt))
	prefix = strings.TrimRight(prefix, " .-")

	name := prefix + suffix
	if prefix == "" {
		name = suffix[1:]
	}
	return OutputPath(filepath.Join(dir, name) + PDFExt), nil
}

// Hash is the suffix identifying a (title, source) pair. The source path
// is slash-normalized so the value is identical on every platform.
func Hash(sanitizedTitle, sourceRel string) string {
	sum := sha256.Sum256([]byte(sanitizedTitle + "\x00" + normalizeRel(sourceRel)))
	return hex.EncodeToString(sum[:HashLength/2])
}

// SidecarPath returns the sidecar location for a PDF path.
func SidecarPath(pdf string) string {
	return strings.TrimSuffix(pdf, PDFExt) + SidecarExt
}

func (e *Engine) fits(stem string) bool {
	return pathLen(stem)+pathLen(longestExt) <= e.maxLength
}

func nameFits(name string) bool {
	return len(name)+len(longestExt) <= MaxNameBytes
}

// targetDir mirrors the directory part of sourceRel under outputDir.
func targetDir(outputDir, sourceRel string) string {
	relDir := path.Dir(normalizeRel(sourceRel))
	if relDir == "." {
		return filepath.Clean(outputDir)
	}
	return filepath.Join(outputDir, filepath.FromSlash(relDir))
}

// normalizeRel cleans a relative path to slash form and drops components
// that would climb out of the output root.
func normalizeRel(rel string) string {
	rel = path.Clean(strings.ReplaceAll(rel, `\`, "/"))
	rel = strings.TrimLeft(rel, "/")
	for rel == ".." || strings.HasPrefix(rel, "../") {
		rel = strings.TrimPrefix(strings.TrimPrefix(rel, ".."), "/")
	}
	return rel
}

// pathLen measures s in UTF-16 code units, the unit Windows path limits
// are expressed in.
func pathLen(s string) int {
	n := 0
	for _, r := range s {
		if r > 0xFFFF {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// truncate cuts s to at most units UTF-16 code units and maxBytes bytes,
// on a rune boundary.
func truncate(s string, units, maxBytes int) string {
	used, end := 0, 0
	for i, r := range s {
		w := 1
		if r > 0xFFFF {
			w = 2
		}
		if used+w > units || i+utf8.RuneLen(r) > maxBytes {
			break
		}
		used += w
		end = i + utf8.RuneLen(r)
	}
	return s[:end]
}
