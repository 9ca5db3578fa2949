package main

import (
	"io"

	flag "github.com/spf13/pflag"
)

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config  string
	quiet   bool
	verbose bool
}

// inputFlags select the archives to convert.
type inputFlags struct {
	sourceRoot string
	files      []string
	recurse    bool
	maxFiles   int
}

// outputFlags control where artifacts and the log go.
type outputFlags struct {
	root         string
	skipExisting bool
	logPath      string
	logLevel     string
}

// renderFlags control the headless browser.
type renderFlags struct {
	engine  string
	timeout string
}

// pathFlags control output name shortening.
type pathFlags struct {
	maxLength    int
	prefixBudget int
}

// metadataFlags override the tool-identifying fields.
type metadataFlags struct {
	creator          string
	producer         string
	noDetectLanguage bool
}

// convertFlags holds all flags for the convert command.
type convertFlags struct {
	common   commonFlags
	input    inputFlags
	output   outputFlags
	render   renderFlags
	path     pathFlags
	metadata metadataFlags
}

// addCommonFlags adds common flags to a FlagSet.
func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only show errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "mirror the log to stderr")
}

func addInputFlags(fs *flag.FlagSet, f *inputFlags) {
	fs.StringVarP(&f.sourceRoot, "source-root", "s", "", "directory holding .mht/.mhtml archives")
	fs.StringArrayVarP(&f.files, "file", "f", nil, "archive to convert (repeatable)")
	fs.BoolVarP(&f.recurse, "recurse", "r", false, "scan subdirectories of the source root")
	fs.IntVar(&f.maxFiles, "max-files", 0, "stop after this many archives (0 = no limit)")
}

func addOutputFlags(fs *flag.FlagSet, f *outputFlags) {
	fs.StringVarP(&f.root, "output-root", "o", "", "output directory (default: _pdf_archive beside the sources)")
	fs.BoolVar(&f.skipExisting, "skip-existing", false, "leave archives whose PDF already exists")
	fs.StringVar(&f.logPath, "log-path", "", "conversion log file (default: <output root>/logs/convert.log)")
	fs.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
}

func addRenderFlags(fs *flag.FlagSet, f *renderFlags) {
	fs.StringVar(&f.engine, "engine", "", "render engine: rod, chromedp")
	fs.StringVarP(&f.timeout, "timeout", "t", "", "per-file render timeout (e.g., 90s, 2m)")
}

func addPathFlags(fs *flag.FlagSet, f *pathFlags) {
	fs.IntVar(&f.maxLength, "max-path", 0, "output path ceiling in characters (default: 260)")
	fs.IntVar(&f.prefixBudget, "prefix-budget", 0, "title characters kept in shortened names (default: 80)")
}

func addMetadataFlags(fs *flag.FlagSet, f *metadataFlags) {
	fs.StringVar(&f.creator, "creator", "", "Creator recorded when the page names none")
	fs.StringVar(&f.producer, "producer", "", "Producer recorded on every PDF")
	fs.BoolVar(&f.noDetectLanguage, "no-detect-language", false, "do not guess the language from the text")
}

// parseConvertFlags parses convert command flags and returns positional args.
func parseConvertFlags(args []string, usage io.Writer) (*convertFlags, []string, error) {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	fs.SetOutput(usage)
	f := &convertFlags{}

	addCommonFlags(fs, &f.common)
	addInputFlags(fs, &f.input)
	addOutputFlags(fs, &f.output)
	addRenderFlags(fs, &f.render)
	addPathFlags(fs, &f.path)
	addMetadataFlags(fs, &f.metadata)

	fs.Usage = func() { printConvertUsage(usage) }

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	return f, fs.Args(), nil
}
