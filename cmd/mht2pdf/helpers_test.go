package main

// Notes:
// - This file contains fixtures shared by the command tests: a renderer
//   fake, a generated one-page PDF, archive writers and a buffered
//   Environment.
// No coverage gaps: this is test infrastructure, not production code.

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/keenmouse/mht2pdf"
	"github.com/keenmouse/mht2pdf/internal/config"
)

// ---------------------------------------------------------------------------
// Renderer fake
// ---------------------------------------------------------------------------

type fakeRenderer struct {
	mu     sync.Mutex
	calls  int
	err    error
	closed bool
}

func (f *fakeRenderer) Render(_ context.Context, _ string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return minimalPDF(), nil
}

func (f *fakeRenderer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// minimalPDF returns a valid one-page PDF without metadata.
func minimalPDF() []byte {
	const content = "BT /F1 12 Tf 72 720 Td (page) Tj ET"
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
	}

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return b.Bytes()
}

// ---------------------------------------------------------------------------
// Archives
// ---------------------------------------------------------------------------

const archiveTemplate = "From: <Saved by Blink>\n" +
	"Snapshot-Content-Location: https://example.com/%[1]s\n" +
	"Subject: %[2]s\n" +
	"Date: Tue, 02 Jan 2024 10:00:00 +0000\n" +
	"MIME-Version: 1.0\n" +
	"Content-Type: multipart/related; type=\"text/html\"; boundary=\"----B\"\n" +
	"\n" +
	"------B\n" +
	"Content-Type: text/html; charset=utf-8\n" +
	"Content-Location: https://example.com/%[1]s\n" +
	"\n" +
	"<html><head><title>%[2]s</title></head>" +
	"<body><p>Archived page body.</p></body></html>\n" +
	"------B--\n"

// writeArchive writes an archive titled after its base name under dir.
func writeArchive(t *testing.T, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("setup: %v", err)
	}
	stem := filepath.Base(name)
	stem = stem[:len(stem)-len(filepath.Ext(stem))]
	data := fmt.Sprintf(archiveTemplate, stem, "Page "+stem)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	return path
}

// touch creates an empty file, with parents.
func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Environment
// ---------------------------------------------------------------------------

type testEnv struct {
	*Environment
	stdout   *bytes.Buffer
	stderr   *bytes.Buffer
	renderer *fakeRenderer
}

// newTestEnv returns an Environment writing to buffers and rendering with
// a fake.
func newTestEnv() *testEnv {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	r := &fakeRenderer{}
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &testEnv{
		Environment: &Environment{
			Now:        func() time.Time { return clock },
			Stdout:     stdout,
			Stderr:     stderr,
			Config:     config.DefaultConfig(),
			IsTerminal: func(io.Writer) bool { return false },
			NewRenderer: func(string, time.Duration) (mht2pdf.Renderer, error) {
				return r, nil
			},
		},
		stdout:   stdout,
		stderr:   stderr,
		renderer: r,
	}
}
