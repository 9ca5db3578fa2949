package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mht2pdf <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  convert    Convert .mht/.mhtml archives to PDF with metadata")
	fmt.Fprintln(w, "  inspect    Print the metadata embedded in a produced PDF")
	fmt.Fprintln(w, "  doctor     Check Chrome and the output environment")
	fmt.Fprintln(w, "  version    Show version information")
	fmt.Fprintln(w, "  help       Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'mht2pdf help <command>' for details on a specific command.")
}

// printConvertUsage prints usage for the convert command.
func printConvertUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mht2pdf convert [<source-root> | <file>...] [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Convert web archives to PDF. Each PDF gets Info and XMP metadata")
	fmt.Fprintln(w, "and a <name>.metadata.json sidecar.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Input:")
	fmt.Fprintln(w, "  -s, --source-root <dir>   Directory holding .mht/.mhtml archives")
	fmt.Fprintln(w, "  -f, --file <path>         Archive to convert (repeatable)")
	fmt.Fprintln(w, "  -r, --recurse             Scan subdirectories of the source root")
	fmt.Fprintln(w, "      --max-files <n>       Stop after n archives (0 = no limit)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Output:")
	fmt.Fprintln(w, "  -o, --output-root <dir>   Output directory, mirroring the source tree")
	fmt.Fprintln(w, "                            Default: _pdf_archive beside the sources")
	fmt.Fprintln(w, "      --skip-existing       Leave archives whose PDF already exists")
	fmt.Fprintln(w, "      --log-path <path>     Conversion log (default: <output>/logs/convert.log)")
	fmt.Fprintln(w, "      --log-level <s>       Log level: debug, info, warn, error")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Rendering:")
	fmt.Fprintln(w, "      --engine <s>          Browser driver: rod (default), chromedp")
	fmt.Fprintln(w, "  -t, --timeout <d>         Per-file render timeout (default: 90s)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Paths:")
	fmt.Fprintln(w, "      --max-path <n>        Output path ceiling in characters (default: 260)")
	fmt.Fprintln(w, "      --prefix-budget <n>   Title characters kept in shortened names (default: 80)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Metadata:")
	fmt.Fprintln(w, "      --creator <s>         Creator used when the page names none")
	fmt.Fprintln(w, "      --producer <s>        Producer recorded on every PDF")
	fmt.Fprintln(w, "      --no-detect-language  Do not guess the language from the text")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "General:")
	fmt.Fprintln(w, "  -c, --config <name>       Config file name or path (.yaml, .yml, .toml)")
	fmt.Fprintln(w, "  -q, --quiet               Only show errors")
	fmt.Fprintln(w, "  -v, --verbose             Mirror the conversion log to stderr")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  MHT2PDF_CONFIG, MHT2PDF_SOURCE_ROOT, MHT2PDF_OUTPUT_ROOT, MHT2PDF_LOG_PATH,")
	fmt.Fprintln(w, "  MHT2PDF_LOG_LEVEL, MHT2PDF_ENGINE, MHT2PDF_TIMEOUT, MHT2PDF_MAX_PATH,")
	fmt.Fprintln(w, "  MHT2PDF_BROWSER_BIN, MHT2PDF_NO_SANDBOX")
}

// printInspectUsage prints usage for the inspect command.
func printInspectUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mht2pdf inspect [--format json|yaml] <file.pdf>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Print the Info dictionary and XMP fields of a produced PDF, with its")
	fmt.Fprintln(w, "sidecar when present. Exits 1 when they disagree.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  -F, --format <s>          Report format: json (default), yaml")
}

// printDoctorUsage prints usage for the doctor command.
func printDoctorUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mht2pdf doctor [--json] [--output-root <dir>]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Check Chrome, the sandbox settings, and that the temp directory and")
	fmt.Fprintln(w, "output root are writable.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "      --json                Print the result as JSON")
	fmt.Fprintln(w, "  -o, --output-root <dir>   Output root to check")
}

// runHelp prints help for a specific command.
func runHelp(args []string, env *Environment) int {
	if len(args) == 0 {
		printUsage(env.Stdout)
		return ExitSuccess
	}

	switch args[0] {
	case "convert":
		printConvertUsage(env.Stdout)
	case "inspect":
		printInspectUsage(env.Stdout)
	case "doctor":
		printDoctorUsage(env.Stdout)
	case "version":
		fmt.Fprintln(env.Stdout, "Usage: mht2pdf version")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show version information.")
	case "help":
		fmt.Fprintln(env.Stdout, "Usage: mht2pdf help [command]")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show help for a command.")
	default:
		fmt.Fprintf(env.Stderr, "Unknown command: %s\n", args[0])
		printUsage(env.Stderr)
		return ExitUsage
	}
	return ExitSuccess
}
