package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/keenmouse/mht2pdf/internal/fileutil"
	"github.com/keenmouse/mht2pdf/internal/metadata"
	"github.com/keenmouse/mht2pdf/internal/pathing"
	"github.com/keenmouse/mht2pdf/internal/pdfmeta"
	"github.com/keenmouse/mht2pdf/internal/sidecar"
	"github.com/keenmouse/mht2pdf/internal/yamlutil"
)

// Sentinel errors for the inspect command.
var (
	ErrInvalidFormat = errors.New("invalid output format")
	ErrWriteReport   = errors.New("failed to write report")
)

// Report formats.
const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// inspectReport is the printed view of one PDF.
type inspectReport struct {
	File    string            `json:"file" yaml:"file"`
	Info    map[string]string `json:"info" yaml:"info"`
	XMP     map[string]string `json:"xmp" yaml:"xmp"`
	Updates int               `json:"updates" yaml:"updates"`
	// Consistent is true when the Info fields and XMP agree, and the
	// sidecar agrees too when one exists.
	Consistent bool              `json:"consistent" yaml:"consistent"`
	Sidecar    map[string]string `json:"sidecar,omitempty" yaml:"sidecar,omitempty"`
}

// runInspectCmd prints the embedded metadata of a produced PDF.
// Exit codes: 0 = consistent, 1 = mismatch, otherwise per exitCodeFor.
func runInspectCmd(args []string, env *Environment) int {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	format := fs.StringP("format", "F", formatJSON, "report format: json, yaml")
	fs.Usage = func() { printInspectUsage(env.Stderr) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		fmt.Fprintln(env.Stderr, err)
		return ExitUsage
	}
	if fs.NArg() != 1 {
		printInspectUsage(env.Stderr)
		return ExitUsage
	}

	report, err := inspectPDF(fileutil.CleanArg(fs.Arg(0)))
	if err == nil {
		err = writeReport(env.Stdout, report, *format)
	}
	if err != nil {
		fmt.Fprintln(env.Stderr, err)
		return exitCodeFor(err)
	}
	if !report.Consistent {
		fmt.Fprintln(env.Stderr, "metadata mismatch between Info, XMP and sidecar")
		return ExitGeneral
	}
	return ExitSuccess
}

// inspectPDF reads a PDF and its sidecar, if present.
func inspectPDF(path string) (*inspectReport, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is user-provided
	if err != nil {
		return nil, fmt.Errorf("reading PDF: %w", err)
	}
	r, err := pdfmeta.Inspect(data)
	if err != nil {
		return nil, err
	}

	info := r.InfoFields()
	report := &inspectReport{
		File:       path,
		Info:       r.Info,
		XMP:        r.XMP,
		Updates:    r.Updates,
		Consistent: maps.Equal(info, r.XMP),
	}

	rec, err := sidecar.Read(pathing.SidecarPath(path))
	switch {
	case err == nil:
		report.Sidecar = infoKeyed(rec)
		report.Consistent = report.Consistent && maps.Equal(info, report.Sidecar)
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}
	return report, nil
}

// infoKeyed returns the record values keyed like the Info dictionary.
func infoKeyed(rec metadata.Record) map[string]string {
	out := make(map[string]string, rec.Len())
	rec.Each(func(f metadata.Field, value string) {
		out[f.InfoKey()] = value
	})
	return out
}

func writeReport(w io.Writer, report *inspectReport, format string) error {
	var data []byte
	var err error
	switch strings.ToLower(format) {
	case formatJSON:
		data, err = json.MarshalIndent(report, "", "  ")
		data = append(data, '\n')
	case formatYAML:
		data, err = yamlutil.Marshal(report)
	default:
		return fmt.Errorf("%w: %q (must be json or yaml)", ErrInvalidFormat, format)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteReport, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteReport, err)
	}
	return nil
}
