// Package hints appends actionable advice to CLI error messages.
// Every hint renders as "\n  hint: <text>".
package hints

import (
	"os"
	"strings"

	"github.com/keenmouse/mht2pdf/internal/fileutil"
)

// IsInContainer reports whether the process runs inside Docker. Swappable
// in tests.
var IsInContainer = func() bool {
	return fileutil.FileExists("/.dockerenv")
}

// ciVars are set by the common CI providers.
var ciVars = []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL"}

// ForBrowserConnect returns hints for a browser that failed to start.
func ForBrowserConnect() string {
	var hints []string

	inCI := false
	for _, v := range ciVars {
		if os.Getenv(v) != "" {
			inCI = true
			break
		}
	}
	if (inCI || IsInContainer()) && os.Getenv("MHT2PDF_NO_SANDBOX") != "1" {
		hints = append(hints, "set MHT2PDF_NO_SANDBOX=1 for Docker/CI")
	}
	if os.Getenv("MHT2PDF_BROWSER_BIN") == "" {
		hints = append(hints, "set MHT2PDF_BROWSER_BIN to use a specific Chrome")
	}
	hints = append(hints, "run 'mht2pdf doctor' to check the browser")

	return format(strings.Join(hints, "; "))
}

// ForTimeout returns a hint for pages that did not finish loading.
func ForTimeout() string {
	return format("heavy archives may need a longer --timeout")
}

// ForConfigNotFound suggests --config, or creating the user config file
// when one of the searched paths is in the user config directory.
func ForConfigNotFound(searchedPaths []string) string {
	hint := "use --config /path/to/file.yaml"
	for _, p := range searchedPaths {
		if strings.Contains(filepathSlash(p), ".config/mht2pdf") {
			hint += " or create " + p
			break
		}
	}
	return format(hint)
}

// ForOutputDirectory returns a hint for output roots that cannot be written.
func ForOutputDirectory() string {
	return format("check the output root exists or can be created, and is writable")
}

// ForLockHeld explains a lock held by another run.
func ForLockHeld(lockPath string) string {
	return format("another mht2pdf run is writing to this output root; wait for it to finish (lock: " + lockPath + ")")
}

// ForPathTooLong suggests ways to gain room under the path ceiling.
func ForPathTooLong() string {
	return format("choose a shorter --output-root or raise --max-path")
}

// ForNoInput explains how to name the archives to convert.
func ForNoInput() string {
	return format("pass a source directory, --source-root, or one or more --file arguments")
}

func filepathSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

func format(hint string) string {
	if hint == "" {
		return ""
	}
	return "\n  hint: " + hint
}
