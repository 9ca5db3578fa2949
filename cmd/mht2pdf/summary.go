package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/keenmouse/mht2pdf"
)

// printSummary reports every record, then the DONE line. Interactive
// terminals get a table; pipes and log collectors get one line per file.
// Failures always reach stderr, even when quiet.
func printSummary(env *Environment, s mht2pdf.Summary, quiet bool) {
	if !quiet && env.IsTerminal != nil && env.IsTerminal(env.Stdout) {
		fmt.Fprintln(env.Stdout, renderSummaryTable(s.Records))
		for _, r := range s.Records {
			if r.Status == mht2pdf.StatusFailed {
				fmt.Fprintf(env.Stderr, "FAILED %s: %v%s\n", r.Source, r.Err, fileHint(r.Err))
			}
		}
	} else {
		printSummaryLines(env, s.Records, quiet)
	}

	if s.NotStarted > 0 {
		fmt.Fprintf(env.Stderr, "CANCELED %d file(s) not started\n", s.NotStarted)
	}
	if !quiet {
		fmt.Fprintf(env.Stdout, "DONE ok=%d fail=%d\n", s.Succeeded+s.Skipped, s.Failed)
	}
}

func printSummaryLines(env *Environment, records []mht2pdf.ConversionRecord, quiet bool) {
	for _, r := range records {
		switch r.Status {
		case mht2pdf.StatusFailed:
			fmt.Fprintf(env.Stderr, "FAILED %s: %v%s\n", r.Source, r.Err, fileHint(r.Err))
		case mht2pdf.StatusSkipped:
			if !quiet {
				fmt.Fprintf(env.Stdout, "Skipped %s\n", r.Output)
			}
		default:
			if !quiet {
				fmt.Fprintf(env.Stdout, "Created %s\n", r.Output)
			}
		}
	}
}

// renderSummaryTable lays out one row per record.
func renderSummaryTable(records []mht2pdf.ConversionRecord) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Status", "Source", "Output", "Time"})

	for _, r := range records {
		output := r.Output
		if r.Status == mht2pdf.StatusFailed {
			output = "-"
		}
		tw.AppendRow(table.Row{statusLabel(r.Status), r.Source, output, r.Duration.Round(time.Millisecond).String()})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 3, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func statusLabel(s mht2pdf.Status) string {
	switch s {
	case mht2pdf.StatusSuccess:
		return "OK"
	case mht2pdf.StatusSkipped:
		return "SKIP"
	default:
		return "FAIL"
	}
}
