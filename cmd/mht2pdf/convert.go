package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/keenmouse/mht2pdf"
	"github.com/keenmouse/mht2pdf/internal/config"
	"github.com/keenmouse/mht2pdf/internal/fileutil"
	"github.com/keenmouse/mht2pdf/internal/hints"
	"github.com/keenmouse/mht2pdf/internal/logging"
	"github.com/keenmouse/mht2pdf/internal/metadata"
	"github.com/keenmouse/mht2pdf/internal/pathing"
)

// ErrFilesFailed reports a run in which at least one archive failed.
var ErrFilesFailed = errors.New("conversion failed")

// runConvertCmd parses flags, runs the conversion and returns an exit code.
func runConvertCmd(args []string, env *Environment) int {
	flags, positional, err := parseConvertFlags(args, env.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		fmt.Fprintln(env.Stderr, err)
		return ExitUsage
	}

	ctx, stop := notifyContext(context.Background())
	defer stop()

	if err := runConvert(ctx, positional, flags, env); err != nil {
		fmt.Fprintln(env.Stderr, formatError(err))
		return exitCodeFor(err)
	}
	return ExitSuccess
}

// runConvert resolves the configuration, discovers the archives, locks the
// output roots and converts every archive.
func runConvert(ctx context.Context, positional []string, flags *convertFlags, env *Environment) error {
	envCfg := loadEnvConfig()
	if !flags.common.quiet {
		warnUnknownEnvVars(env.Stderr)
	}

	cfg, err := loadRunConfig(flags, envCfg, env)
	if err != nil {
		return err
	}
	applyEnvConfig(envCfg, cfg)
	mergeFlags(flags, cfg)
	if err := mergePositional(positional, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	timeout, err := cfg.RenderTimeout()
	if err != nil {
		return err
	}

	discovery := discoveryOptions{
		SourceRoot: cfg.Input.SourceRoot,
		Files:      cfg.Input.Files,
		Recurse:    cfg.Input.Recurse,
		OutputRoot: cfg.Output.Root,
		MaxFiles:   cfg.Input.MaxFiles,
	}
	jobs, err := discoverJobs(discovery)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return fmt.Errorf("%w: no .mht or .mhtml files found in %s", ErrNoInput, discovery.SourceRoot)
	}

	for _, root := range outputRoots(jobs) {
		lock, err := mht2pdf.LockOutputRoot(root)
		if err != nil {
			return err
		}
		defer func() { _ = lock.Unlock() }()
	}

	logPath := cfg.Log.Path
	if logPath == "" {
		logPath = filepath.Join(discovery.primaryOutputRoot(), "logs", "convert.log")
	}
	logOpts := logging.Options{Path: logPath, Level: cfg.Log.Level}
	if flags.common.verbose {
		logOpts.Mirror = env.Stderr
	}
	logger, closeLog, err := logging.New(logOpts)
	if err != nil {
		return fmt.Errorf("%w: %w", mht2pdf.ErrConfig, err)
	}
	defer func() { _ = closeLog() }()

	engine := strings.ToLower(cfg.Render.Engine)
	renderer, err := env.NewRenderer(engine, timeout)
	if err != nil {
		return err
	}

	convOpts := []mht2pdf.Option{
		mht2pdf.WithRenderer(renderer),
		mht2pdf.WithLogger(logger),
		mht2pdf.WithPathEngine(buildPathEngine(cfg)),
		mht2pdf.WithResolverOptions(buildResolverOptions(cfg)...),
		mht2pdf.WithSkipExisting(cfg.Output.SkipExisting),
		mht2pdf.WithNow(env.Now),
	}
	if timeout > 0 {
		convOpts = append(convOpts, mht2pdf.WithTimeout(timeout))
	}
	conv := mht2pdf.NewConverter(convOpts...)
	defer func() { _ = conv.Close() }()

	logger.Info("run started",
		zap.Int("files", len(jobs)),
		zap.String("engine", engine),
		zap.Bool("skip_existing", cfg.Output.SkipExisting),
	)
	summary := conv.Run(ctx, jobs)
	logger.Info(fmt.Sprintf("DONE ok=%d fail=%d", summary.Succeeded+summary.Skipped, summary.Failed))

	printSummary(env, summary, flags.common.quiet)
	return summaryError(summary)
}

// loadRunConfig returns the config named by --config or MHT2PDF_CONFIG,
// else a copy of the environment defaults.
func loadRunConfig(flags *convertFlags, envCfg *envConfig, env *Environment) (*config.Config, error) {
	name := fileutil.CleanArg(flags.common.config)
	if name == "" {
		name = envCfg.ConfigPath
	}
	if name != "" {
		cfg, err := config.LoadConfig(name)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		return cfg, nil
	}

	if env.Config == nil {
		return config.DefaultConfig(), nil
	}
	cfg := *env.Config
	cfg.Input.Files = append([]string(nil), env.Config.Input.Files...)
	return &cfg, nil
}

// mergeFlags merges CLI flags into config. CLI values override config values.
func mergeFlags(flags *convertFlags, cfg *config.Config) {
	// Input flags
	if v := fileutil.CleanArg(flags.input.sourceRoot); v != "" {
		cfg.Input.SourceRoot = v
	}
	if len(flags.input.files) > 0 {
		files := make([]string, 0, len(flags.input.files))
		for _, f := range flags.input.files {
			if v := fileutil.CleanArg(f); v != "" {
				files = append(files, v)
			}
		}
		cfg.Input.Files = files
	}
	if flags.input.recurse {
		cfg.Input.Recurse = true
	}
	if flags.input.maxFiles != 0 {
		cfg.Input.MaxFiles = flags.input.maxFiles
	}

	// Output flags
	if v := fileutil.CleanArg(flags.output.root); v != "" {
		cfg.Output.Root = v
	}
	if flags.output.skipExisting {
		cfg.Output.SkipExisting = true
	}
	if v := fileutil.CleanArg(flags.output.logPath); v != "" {
		cfg.Log.Path = v
	}
	if flags.output.logLevel != "" {
		cfg.Log.Level = flags.output.logLevel
	}

	// Render flags
	if flags.render.engine != "" {
		cfg.Render.Engine = flags.render.engine
	}
	if flags.render.timeout != "" {
		cfg.Render.Timeout = flags.render.timeout
	}

	// Path flags
	if flags.path.maxLength != 0 {
		cfg.Path.MaxLength = flags.path.maxLength
	}
	if flags.path.prefixBudget != 0 {
		cfg.Path.PrefixBudget = flags.path.prefixBudget
	}

	// Metadata flags
	if flags.metadata.creator != "" {
		cfg.Metadata.Creator = flags.metadata.creator
	}
	if flags.metadata.producer != "" {
		cfg.Metadata.Producer = flags.metadata.producer
	}
	if flags.metadata.noDetectLanguage {
		off := false
		cfg.Metadata.DetectLanguage = &off
	}
}

// mergePositional treats positional archives as --file entries and a
// positional directory as the source root.
func mergePositional(args []string, cfg *config.Config) error {
	var roots []string
	for _, arg := range args {
		arg = fileutil.CleanArg(arg)
		if arg == "" {
			continue
		}
		if info, err := os.Stat(arg); err == nil && info.IsDir() {
			roots = append(roots, arg)
			continue
		}
		if fileutil.HasExtension(arg, archiveExtensions...) {
			cfg.Input.Files = append(cfg.Input.Files, arg)
			continue
		}
		roots = append(roots, arg)
	}

	switch len(roots) {
	case 0:
		return nil
	case 1:
		cfg.Input.SourceRoot = roots[0]
		return nil
	default:
		return fmt.Errorf("%w: more than one source directory: %s", config.ErrInvalidValue, strings.Join(roots, ", "))
	}
}

func buildPathEngine(cfg *config.Config) *pathing.Engine {
	var opts []pathing.Option
	if cfg.Path.MaxLength > 0 {
		opts = append(opts, pathing.WithMaxLength(cfg.Path.MaxLength))
	}
	if cfg.Path.PrefixBudget > 0 {
		opts = append(opts, pathing.WithPrefixBudget(cfg.Path.PrefixBudget))
	}
	return pathing.New(opts...)
}

func buildResolverOptions(cfg *config.Config) []metadata.Option {
	var opts []metadata.Option
	if cfg.Metadata.Creator != "" {
		opts = append(opts, metadata.WithCreator(cfg.Metadata.Creator))
	}
	if cfg.Metadata.Producer != "" {
		opts = append(opts, metadata.WithProducer(cfg.Metadata.Producer))
	}
	if !cfg.Metadata.LanguageDetection() {
		opts = append(opts, metadata.WithLanguageDetector(nil))
	}
	return opts
}

// summaryError returns nil when every archive converted or was skipped.
// A browser failure is kept in the chain so the exit code reflects it.
func summaryError(s mht2pdf.Summary) error {
	if s.NotStarted > 0 {
		return fmt.Errorf("%w: %d file(s) not started", context.Canceled, s.NotStarted)
	}
	if s.Failed == 0 {
		return nil
	}
	for _, r := range s.Records {
		if r.Status == mht2pdf.StatusFailed && errors.Is(r.Err, mht2pdf.ErrBrowserConnect) {
			return fmt.Errorf("%w: %d file(s): %w", ErrFilesFailed, s.Failed, r.Err)
		}
	}
	return fmt.Errorf("%w: %d file(s)", ErrFilesFailed, s.Failed)
}

// formatError appends the hints matching a run-level error.
func formatError(err error) string {
	msg := err.Error()

	switch {
	case errors.Is(err, mht2pdf.ErrBrowserConnect):
		msg += hints.ForBrowserConnect()
	case errors.Is(err, mht2pdf.ErrLockHeld):
		msg += hints.ForLockHeld(lastSegment(msg))
	case errors.Is(err, mht2pdf.ErrOutputRoot):
		msg += hints.ForOutputDirectory()
	case errors.Is(err, config.ErrConfigNotFound):
		msg += hints.ForConfigNotFound(triedPaths(msg))
	case errors.Is(err, ErrNoInput):
		msg += hints.ForNoInput()
	}
	return msg
}

// fileHint returns the hint for a single failed archive, if any.
func fileHint(err error) string {
	switch {
	case errors.Is(err, mht2pdf.ErrPathTooLong):
		return hints.ForPathTooLong()
	case errors.Is(err, context.DeadlineExceeded):
		return hints.ForTimeout()
	}
	return ""
}

// lastSegment returns the text after the final ": " of msg, which for lock
// errors is the lock file path.
func lastSegment(msg string) string {
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return msg
}

// triedPaths extracts the searched locations from a config-not-found message.
func triedPaths(msg string) []string {
	i := strings.Index(msg, "tried ")
	if i < 0 {
		return nil
	}
	return strings.Split(msg[i+len("tried "):], ", ")
}
