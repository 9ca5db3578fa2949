// Package dateutil parses the loosely formatted timestamps found in web
// archives and normalizes them to a single canonical representation.
package dateutil

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// ErrInvalidDate indicates a timestamp that could not be parsed.
var ErrInvalidDate = errors.New("invalid date")

// MaxDateLength limits input length to prevent abuse.
const MaxDateLength = 128

// Canonical is the layout every normalized timestamp uses (RFC 3339, UTC).
const Canonical = "2006-01-02T15:04:05Z"

// zoneOffsets maps the timezone abbreviations found in archived headers
// and page text to their UTC offsets in hours. time.Parse only resolves
// abbreviations that match time.Local, so they are stripped and the value
// is parsed in a fixed zone instead.
var zoneOffsets = map[string]int{
	"UT":   0,
	"UTC":  0,
	"GMT":  0,
	"Z":    0,
	"EST":  -5,
	"EDT":  -4,
	"CST":  -6,
	"CDT":  -5,
	"MST":  -7,
	"MDT":  -6,
	"PST":  -8,
	"PDT":  -7,
	"AKST": -9,
	"AKDT": -8,
	"HST":  -10,
}

var (
	commentPattern = regexp.MustCompile(`\([^)]*\)`)
	offsetPattern  = regexp.MustCompile(`[+-]\d{2}:?\d{2}\b`)
	zonePattern    = regexp.MustCompile(`\b(UTC|UT|GMT|Z|EST|EDT|CST|CDT|MST|MDT|PST|PDT|AKST|AKDT|HST)\b`)
	// dateparse reads "Tue, 14 Mar" but not "Tuesday, March 14".
	weekdayPattern = regexp.MustCompile(`(?i)^(mon|tue|tues|wed|thu|thur|thurs|fri|sat|sun)(day|sday|nesday|rsday|urday)?\.?,\s+([a-z])`)
)

// headerLayouts are the mail-style forms tried before dateparse once the
// zone has been split off.
var headerLayouts = []string{
	"Mon, _2 Jan 2006 15:04:05",
	"Mon, _2 Jan 2006 15:04",
	"_2 Jan 2006 15:04:05",
}

// Parse interprets s as a point in time. Inputs without any zone
// information are taken as UTC.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrInvalidDate)
	}
	if len(s) > MaxDateLength {
		return time.Time{}, fmt.Errorf("%w: value exceeds %d characters", ErrInvalidDate, MaxDateLength)
	}

	cleaned := strings.Join(strings.Fields(commentPattern.ReplaceAllString(s, " ")), " ")
	cleaned = weekdayPattern.ReplaceAllString(cleaned, "$3")
	cleaned, loc := splitZone(cleaned)

	for _, layout := range headerLayouts {
		if t, err := time.ParseInLocation(layout, cleaned, loc); err == nil {
			return t.UTC(), nil
		}
	}

	t, err := dateparse.ParseIn(cleaned, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidDate, s, err)
	}
	return t.UTC(), nil
}

// Normalize parses s and formats it in the canonical layout.
func Normalize(s string) (string, error) {
	t, err := Parse(s)
	if err != nil {
		return "", err
	}
	return Format(t), nil
}

// Format renders t in the canonical layout.
func Format(t time.Time) string {
	return t.UTC().Format(Canonical)
}

// splitZone removes a zone abbreviation from s and returns the location
// the remainder is to be read in. A numeric offset already present wins
// over the abbreviation.
func splitZone(s string) (string, *time.Location) {
	m := zonePattern.FindStringSubmatchIndex(s)
	if m == nil {
		return s, time.UTC
	}
	abbr := s[m[2]:m[3]]
	rest := strings.Join(strings.Fields(s[:m[0]]+" "+s[m[1]:]), " ")
	if offsetPattern.MatchString(s) {
		return rest, time.UTC
	}
	return rest, time.FixedZone(abbr, zoneOffsets[abbr]*3600)
}

// ---------------------------------------------------------------------------
// PDF date syntax
// ---------------------------------------------------------------------------

const pdfLayout = "20060102150405"

// FormatPDF renders t in PDF date syntax, always in UTC.
func FormatPDF(t time.Time) string {
	return "D:" + t.UTC().Format(pdfLayout) + "+00'00'"
}

// CanonicalToPDF converts a canonical timestamp to PDF date syntax.
func CanonicalToPDF(s string) (string, error) {
	t, err := time.Parse(Canonical, s)
	if err != nil {
		return "", fmt.Errorf("%w: %q is not canonical", ErrInvalidDate, s)
	}
	return FormatPDF(t), nil
}

// ParsePDF parses PDF date syntax ("D:YYYYMMDDHHmmSSOHH'mm'"), accepting
// the truncated forms the format allows.
func ParsePDF(s string) (time.Time, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "D:")
	if len(s) < 4 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}

	digits, zone := s, ""
	if i := strings.IndexAny(s, "Z+-"); i >= 0 {
		digits, zone = s[:i], s[i:]
	}
	// Missing components take their minimum value.
	const minimum = "00000101000000"
	if len(digits) > len(minimum) || len(digits)%2 != 0 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	t, err := time.Parse(pdfLayout, digits+minimum[len(digits):])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidDate, s, err)
	}

	offset, err := pdfZoneOffset(zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidDate, s, err)
	}
	return t.Add(-offset).UTC(), nil
}

func pdfZoneOffset(zone string) (time.Duration, error) {
	if zone == "" || zone[0] == 'Z' {
		return 0, nil
	}
	sign := time.Duration(1)
	if zone[0] == '-' {
		sign = -1
	}
	parts := strings.Split(strings.Trim(zone[1:], "'"), "'")
	var hh, mm int
	if _, err := fmt.Sscanf(parts[0], "%d", &hh); err != nil {
		return 0, err
	}
	if len(parts) > 1 && parts[1] != "" {
		if _, err := fmt.Sscanf(parts[1], "%d", &mm); err != nil {
			return 0, err
		}
	}
	return sign * (time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute), nil
}
