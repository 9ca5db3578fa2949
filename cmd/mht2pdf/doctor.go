package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/go-rod/rod/lib/launcher"
	flag "github.com/spf13/pflag"

	"github.com/keenmouse/mht2pdf"
	"github.com/keenmouse/mht2pdf/internal/fileutil"
)

// Doctor statuses.
const (
	doctorReady    = "ready"
	doctorWarnings = "warnings"
	doctorErrors   = "errors"
)

// doctorResult holds all diagnostic information.
type doctorResult struct {
	Status   string     `json:"status"`
	Chrome   chromeInfo `json:"chrome"`
	Env      envInfo    `json:"environment"`
	System   systemInfo `json:"system"`
	Warnings []string   `json:"warnings,omitempty"`
	Errors   []string   `json:"errors,omitempty"`
}

// chromeInfo holds Chrome/Chromium detection results.
type chromeInfo struct {
	Found   bool   `json:"found"`
	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"`
	Sandbox bool   `json:"sandbox"`
}

// envInfo holds environment detection results.
type envInfo struct {
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	Container     bool   `json:"container"`
	ContainerHint string `json:"container_hint,omitempty"`
	CI            bool   `json:"ci"`
	NoSandbox     string `json:"no_sandbox"`
	BrowserBin    string `json:"browser_bin"`
}

// systemInfo holds system check results.
type systemInfo struct {
	TempWritable   bool   `json:"temp_writable"`
	OutputRoot     string `json:"output_root,omitempty"`
	OutputWritable bool   `json:"output_writable,omitempty"`
}

// runDoctorCmd executes the doctor command and returns an exit code.
// Exit codes: 0 = OK (including warnings), 1 = errors found.
func runDoctorCmd(args []string, env *Environment) int {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	jsonOutput := fs.Bool("json", false, "print the result as JSON")
	outputRoot := fs.StringP("output-root", "o", "", "output root to check for writability")
	fs.Usage = func() { printDoctorUsage(env.Stderr) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		fmt.Fprintln(env.Stderr, err)
		return ExitUsage
	}

	root := fileutil.CleanArg(*outputRoot)
	if root == "" {
		root = loadEnvConfig().OutputRoot
	}
	result := runDoctor(root)

	if *jsonOutput {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		printDoctorResult(env.Stdout, result)
	}

	if result.Status == doctorErrors {
		return ExitGeneral
	}
	return ExitSuccess
}

// runDoctor performs all diagnostic checks. An empty outputRoot skips the
// output check.
func runDoctor(outputRoot string) *doctorResult {
	result := &doctorResult{
		Status: doctorReady,
		Env: envInfo{
			OS:         runtime.GOOS,
			Arch:       runtime.GOARCH,
			NoSandbox:  os.Getenv(mht2pdf.EnvNoSandbox),
			BrowserBin: fileutil.CleanArg(os.Getenv(mht2pdf.EnvBrowserBin)),
		},
	}

	checkChrome(result)
	checkEnvironment(result)
	checkSystem(result)
	if outputRoot != "" {
		checkOutputRoot(result, outputRoot)
	}

	if len(result.Errors) > 0 {
		result.Status = doctorErrors
	} else if len(result.Warnings) > 0 {
		result.Status = doctorWarnings
	}
	return result
}

// checkChrome detects Chrome/Chromium installation.
func checkChrome(result *doctorResult) {
	chromePath := result.Env.BrowserBin

	if chromePath == "" {
		var found bool
		chromePath, found = launcher.LookPath()
		if !found {
			result.Errors = append(result.Errors,
				"Chrome/Chromium not found. Install Chrome or set "+mht2pdf.EnvBrowserBin)
			return
		}
	}

	if _, err := os.Stat(chromePath); err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Chrome not found at %s", chromePath))
		return
	}

	result.Chrome.Found = true
	result.Chrome.Path = chromePath

	out, err := exec.Command(chromePath, "--version").Output() // #nosec G204 -- browser path from env or launcher lookup
	if err == nil {
		result.Chrome.Version = strings.TrimSpace(string(out))
	} else {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Could not get Chrome version: %v", err))
	}

	result.Chrome.Sandbox = result.Env.NoSandbox != "1"
}

// checkEnvironment detects container and CI environments.
func checkEnvironment(result *doctorResult) {
	result.Env.Container, result.Env.ContainerHint = isContainer()

	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "CIRCLECI"}
	for _, v := range ciVars {
		if os.Getenv(v) != "" {
			result.Env.CI = true
			break
		}
	}

	if (result.Env.Container || result.Env.CI) && result.Env.NoSandbox != "1" {
		result.Warnings = append(result.Warnings,
			"Container/CI detected but "+mht2pdf.EnvNoSandbox+" not set. Set "+mht2pdf.EnvNoSandbox+"=1")
	}
}

// isContainer detects if running in a container environment.
// Returns (isContainer, hint) where hint indicates which signal was detected.
func isContainer() (bool, string) {
	if os.Getenv("MHT2PDF_CONTAINER") == "1" {
		return true, "MHT2PDF_CONTAINER=1"
	}
	if fileutil.FileExists("/.dockerenv") {
		return true, "/.dockerenv"
	}
	if v := os.Getenv("container"); v != "" {
		return true, "container=" + v
	}
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true, "KUBERNETES_SERVICE_HOST"
	}
	return false, ""
}

// checkSystem verifies the temp directory used to stage .mht copies.
func checkSystem(result *doctorResult) {
	if err := probeWritable(os.TempDir()); err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Temp directory not writable: %s", os.TempDir()))
		return
	}
	result.System.TempWritable = true
}

// checkOutputRoot verifies the output root can be created and written, and
// that no other run holds its lock.
func checkOutputRoot(result *doctorResult, root string) {
	result.System.OutputRoot = root

	lock, err := mht2pdf.LockOutputRoot(root)
	if err != nil {
		if errors.Is(err, mht2pdf.ErrLockHeld) {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Output root %s is locked by a running conversion", root))
		} else {
			result.Errors = append(result.Errors,
				fmt.Sprintf("Output root not usable: %v", err))
			return
		}
	} else {
		defer func() { _ = lock.Unlock() }()
	}

	if err := probeWritable(root); err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Output root not writable: %s", root))
		return
	}
	result.System.OutputWritable = true
}

// probeWritable creates and removes a file in dir.
func probeWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".mht2pdf-doctor-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

// printDoctorResult outputs human-readable diagnostic results.
func printDoctorResult(w io.Writer, r *doctorResult) {
	fmt.Fprintln(w, "mht2pdf doctor")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Chrome/Chromium")
	if r.Chrome.Found {
		fmt.Fprintf(w, "  [OK] Found at %s\n", r.Chrome.Path)
		if r.Chrome.Version != "" {
			fmt.Fprintf(w, "  [OK] Version: %s\n", r.Chrome.Version)
		}
		if r.Chrome.Sandbox {
			fmt.Fprintln(w, "  [OK] Sandbox: enabled")
		} else {
			fmt.Fprintf(w, "  [OK] Sandbox: disabled (%s=1)\n", mht2pdf.EnvNoSandbox)
		}
	} else {
		fmt.Fprintln(w, "  [ERROR] Not found")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Environment")
	fmt.Fprintf(w, "  [OK] Platform: %s/%s\n", r.Env.OS, r.Env.Arch)
	if r.Env.Container {
		fmt.Fprintf(w, "  [OK] Container: detected (%s)\n", r.Env.ContainerHint)
	}
	if r.Env.CI {
		fmt.Fprintln(w, "  [OK] CI: detected")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "System")
	if r.System.TempWritable {
		fmt.Fprintln(w, "  [OK] Temp directory: writable")
	} else {
		fmt.Fprintln(w, "  [ERROR] Temp directory: not writable")
	}
	if r.System.OutputRoot != "" {
		if r.System.OutputWritable {
			fmt.Fprintf(w, "  [OK] Output root: %s writable\n", r.System.OutputRoot)
		} else {
			fmt.Fprintf(w, "  [ERROR] Output root: %s not writable\n", r.System.OutputRoot)
		}
	}
	fmt.Fprintln(w)

	if len(r.Warnings) > 0 {
		fmt.Fprintln(w, "Warnings:")
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "  [WARN] %s\n", warn)
		}
		fmt.Fprintln(w)
	}

	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "Errors:")
		for _, err := range r.Errors {
			fmt.Fprintf(w, "  [ERROR] %s\n", err)
		}
		fmt.Fprintln(w)
	}

	switch r.Status {
	case doctorReady:
		fmt.Fprintln(w, "Status: Ready to convert")
	case doctorWarnings:
		fmt.Fprintln(w, "Status: Ready with warnings")
	case doctorErrors:
		fmt.Fprintln(w, "Status: Not ready (see errors above)")
	}
}
