package main

// Notes:
// - run: we test command dispatch and exit codes without a browser; the
//   convert path is exercised end to end in convert_test.go.
// - hasVerbose: we test flag detection for the maxprocs logger.
// These are acceptable gaps: main itself only wires os.Args and os.Exit.

import (
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// TestRun - Command dispatch
// ---------------------------------------------------------------------------

func TestRun(t *testing.T) {
	t.Parallel()

	empty := t.TempDir()

	tests := []struct {
		name       string
		args       []string
		wantCode   int
		wantStdout string
		wantStderr string
	}{
		{"no command", []string{"mht2pdf"}, ExitUsage, "", "Usage: mht2pdf"},
		{"version", []string{"mht2pdf", "version"}, ExitSuccess, "mht2pdf " + Version, ""},
		{"--version", []string{"mht2pdf", "--version"}, ExitSuccess, "mht2pdf " + Version, ""},
		{"help", []string{"mht2pdf", "help"}, ExitSuccess, "Commands:", ""},
		{"--help", []string{"mht2pdf", "--help"}, ExitSuccess, "Commands:", ""},
		{"help convert", []string{"mht2pdf", "help", "convert"}, ExitSuccess, "--output-root", ""},
		{"unknown command", []string{"mht2pdf", "frobnicate"}, ExitUsage, "", "Unknown command: frobnicate"},
		{"convert without input", []string{"mht2pdf", "convert", empty}, ExitIO, "", "no input"},
		{"flags imply convert", []string{"mht2pdf", "--source-root", empty}, ExitIO, "", "hint:"},
		{"inspect usage", []string{"mht2pdf", "inspect"}, ExitUsage, "", "Usage: mht2pdf inspect"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv()
			if code := run(tt.args, env.Environment); code != tt.wantCode {
				t.Errorf("run(%v) = %d, want %d; stderr: %s", tt.args, code, tt.wantCode, env.stderr)
			}
			if !strings.Contains(env.stdout.String(), tt.wantStdout) {
				t.Errorf("stdout = %q, want %q", env.stdout, tt.wantStdout)
			}
			if !strings.Contains(env.stderr.String(), tt.wantStderr) {
				t.Errorf("stderr = %q, want %q", env.stderr, tt.wantStderr)
			}
		})
	}
}

func TestHasVerbose(t *testing.T) {
	t.Parallel()

	tests := []struct {
		args []string
		want bool
	}{
		{[]string{"mht2pdf", "convert", "-v"}, true},
		{[]string{"mht2pdf", "--verbose", "dir"}, true},
		{[]string{"mht2pdf", "convert", "-vq"}, false},
		{[]string{"mht2pdf", "convert", "dir"}, false},
	}

	for _, tt := range tests {
		if got := hasVerbose(tt.args); got != tt.want {
			t.Errorf("hasVerbose(%v) = %v, want %v", tt.args, got, tt.want)
		}
	}
}
