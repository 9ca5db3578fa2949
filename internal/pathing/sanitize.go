package pathing

import (
	"regexp"
	"strings"

	"github.com/keenmouse/mht2pdf/internal/metadata"
)

// Untitled replaces a title that sanitizes to nothing.
const Untitled = "untitled"

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

var (
	dashRun = regexp.MustCompile(`-{2,}`)
	dotRun  = regexp.MustCompile(`\.{2,}`)
)

// reservedNames are device names Windows refuses as file names, with or
// without an extension.
var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// Sanitize turns a title into a portable file name stem. Slashes,
// backslashes, colons and asterisks become dashes; other characters
// Windows rejects are removed, as are control characters. Runs of
// whitespace, dashes and dots collapse, and leading or trailing dots,
// dashes and spaces are trimmed. The result is never empty.
func Sanitize(title string) string {
	s := metadata.CleanText(title)
	s = fileNameReplacer.Replace(s)
	s = dashRun.ReplaceAllString(s, "-")
	s = dotRun.ReplaceAllString(s, ".")
	s = strings.Join(strings.Fields(s), " ")
	s = strings.Trim(s, " .-")
	if s == "" {
		return Untitled
	}

	stem := s
	if i := strings.IndexByte(stem, '.'); i >= 0 {
		stem = stem[:i]
	}
	if reservedNames[strings.ToUpper(strings.TrimSpace(stem))] {
		s += "_"
	}
	return s
}
