package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/keenmouse/mht2pdf"
	"github.com/keenmouse/mht2pdf/internal/fileutil"
)

// defaultOutputDir is created beside the sources when no output root is
// given.
const defaultOutputDir = "_pdf_archive"

// archiveExtensions are the file types the converter accepts.
var archiveExtensions = []string{".mht", ".mhtml"}

// Sentinel errors for file discovery.
var (
	ErrNoInput          = errors.New("no input specified")
	ErrInvalidExtension = errors.New("file must have .mht or .mhtml extension")
)

// discoveryOptions describes where archives come from and where they go.
type discoveryOptions struct {
	SourceRoot string
	Files      []string
	Recurse    bool
	OutputRoot string // empty = _pdf_archive beside the sources
	MaxFiles   int    // 0 = no limit
}

// primaryOutputRoot is the output root that holds the default log: the
// explicit root, else _pdf_archive under the source root, else beside the
// first explicit file.
func (o discoveryOptions) primaryOutputRoot() string {
	switch {
	case o.OutputRoot != "":
		return o.OutputRoot
	case o.SourceRoot != "":
		return filepath.Join(o.SourceRoot, defaultOutputDir)
	case len(o.Files) > 0:
		return filepath.Join(filepath.Dir(o.Files[0]), defaultOutputDir)
	default:
		return ""
	}
}

// discoverJobs lists the archives to convert in sorted order and assigns
// each its output root. An unreadable source root is a fatal ErrConfig.
func discoverJobs(opts discoveryOptions) ([]mht2pdf.Job, error) {
	if opts.SourceRoot == "" && len(opts.Files) == 0 {
		return nil, ErrNoInput
	}

	var sources []string
	if opts.SourceRoot != "" {
		found, err := scanSourceRoot(opts.SourceRoot, opts.Recurse, opts.OutputRoot)
		if err != nil {
			return nil, err
		}
		sources = append(sources, found...)
	}
	for _, f := range opts.Files {
		if !fileutil.HasExtension(f, archiveExtensions...) {
			return nil, fmt.Errorf("%w: got %q", ErrInvalidExtension, f)
		}
		sources = append(sources, filepath.Clean(f))
	}

	sources = sortUnique(sources)
	if opts.MaxFiles > 0 && len(sources) > opts.MaxFiles {
		sources = sources[:opts.MaxFiles]
	}

	jobs := make([]mht2pdf.Job, 0, len(sources))
	for _, src := range sources {
		jobs = append(jobs, planJob(src, opts))
	}
	return jobs, nil
}

// scanSourceRoot returns the archives under root. Output directories are
// never scanned.
func scanSourceRoot(root string, recurse bool, outputRoot string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: source root: %w", mht2pdf.ErrConfig, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: source root %s is not a directory", mht2pdf.ErrConfig, root)
	}

	skipDir := func(path string, name string) bool {
		if name == defaultOutputDir {
			return true
		}
		return outputRoot != "" && samePath(path, outputRoot)
	}

	var found []string
	if !recurse {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("%w: source root: %w", mht2pdf.ErrConfig, err)
		}
		for _, e := range entries {
			if e.Type().IsRegular() && fileutil.HasExtension(e.Name(), archiveExtensions...) {
				found = append(found, filepath.Join(root, e.Name()))
			}
		}
		return found, nil
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("%w: scanning %s: %w", mht2pdf.ErrConfig, path, err)
		}
		if d.IsDir() {
			if path != root && skipDir(path, d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && fileutil.HasExtension(path, archiveExtensions...) {
			found = append(found, path)
		}
		return nil
	})
	return found, err
}

// planJob assigns the output root and relative path of one archive.
// With an explicit output root the source tree is mirrored under it.
// Otherwise a recursive scan puts each directory's PDFs in its own
// _pdf_archive, and a flat scan uses the one under the source root.
func planJob(src string, opts discoveryOptions) mht2pdf.Job {
	job := mht2pdf.Job{Source: src, Rel: filepath.Base(src)}
	rel, under := relativeTo(opts.SourceRoot, src)

	switch {
	case opts.OutputRoot != "":
		job.OutputRoot = opts.OutputRoot
		if under {
			job.Rel = rel
		}
	case under && !opts.Recurse:
		job.OutputRoot = filepath.Join(opts.SourceRoot, defaultOutputDir)
	default:
		job.OutputRoot = filepath.Join(filepath.Dir(src), defaultOutputDir)
	}
	return job
}

// relativeTo returns path relative to root when it lies inside root.
func relativeTo(root, path string) (string, bool) {
	if root == "" {
		return "", false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

func sortUnique(paths []string) []string {
	sort.Strings(paths)
	out := paths[:0]
	for i, p := range paths {
		if i > 0 && p == paths[i-1] {
			continue
		}
		out = append(out, p)
	}
	return out
}

// outputRoots returns the distinct output roots of jobs in sorted order.
func outputRoots(jobs []mht2pdf.Job) []string {
	roots := make([]string, 0, 1)
	for _, j := range jobs {
		roots = append(roots, j.OutputRoot)
	}
	return sortUnique(roots)
}
