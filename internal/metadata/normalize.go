package metadata

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/keenmouse/mht2pdf/internal/dateutil"
)

// MaxValueLength caps a normalized value, in runes.
const MaxValueLength = 4096

var (
	errInvalidLanguage = errors.New("invalid language tag")
	errInvalidURL      = errors.New("not an absolute URL")
)

// Normalize converts a raw candidate for f into its canonical form. An
// empty result with a nil error means the candidate carried no content.
func Normalize(f Field, raw string) (string, error) {
	switch {
	case f.IsDate():
		s := CleanText(raw)
		if s == "" {
			return "", nil
		}
		return dateutil.Normalize(s)
	case f == Keywords:
		return normalizeKeywords(raw), nil
	case f == Language:
		return normalizeLanguage(raw)
	case f == SourceURL:
		return normalizeURL(raw)
	case f == Author:
		return normalizeAuthor(raw), nil
	default:
		return CleanText(raw), nil
	}
}

// CleanText applies Unicode NFC, drops control characters, collapses
// whitespace runs to one space and trims the result.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return ' '
		case unicode.IsControl(r), r == unicode.ReplacementChar, r == '\uFEFF':
			return -1
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), " ")
	if n := []rune(s); len(n) > MaxValueLength {
		s = strings.TrimSpace(string(n[:MaxValueLength]))
	}
	return s
}

// SplitKeywords splits a keyword list on commas and semicolons, cleaning
// each entry and dropping case-insensitive duplicates. The first spelling
// of a keyword wins.
func SplitKeywords(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	folder := cases.Fold()
	seen := make(map[string]bool, len(parts))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = CleanText(p)
		if p == "" {
			continue
		}
		key := folder.String(p)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

func normalizeKeywords(s string) string {
	return strings.Join(SplitKeywords(s), ", ")
}

func normalizeAuthor(s string) string {
	s = CleanText(s)
	if len(s) > 3 && strings.EqualFold(s[:3], "by ") {
		s = strings.TrimSpace(s[3:])
	}
	return s
}

func normalizeLanguage(s string) (string, error) {
	s = CleanText(s)
	if s == "" {
		return "", nil
	}
	// Lists like "en, fr" keep the first entry; og:locale uses underscores.
	if i := strings.IndexAny(s, ",; "); i > 0 {
		s = s[:i]
	}
	s = strings.ReplaceAll(s, "_", "-")
	tag, err := language.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", errInvalidLanguage, s)
	}
	if tag == language.Und {
		return "", nil
	}
	return tag.String(), nil
}

func normalizeURL(s string) (string, error) {
	s = CleanText(s)
	if s == "" {
		return "", nil
	}
	s = strings.ReplaceAll(s, " ", "%20")
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errInvalidURL, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ftp", "file":
	default:
		return "", fmt.Errorf("%w: %q", errInvalidURL, s)
	}
	if u.Host == "" && u.Scheme != "file" {
		return "", fmt.Errorf("%w: %q", errInvalidURL, s)
	}
	return u.String(), nil
}
