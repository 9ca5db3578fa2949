package main

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/automaxprocs/maxprocs"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	// Error ignored: maxprocs.Set only fails if GOMAXPROCS env is invalid,
	// in which case Go runtime defaults apply and the program continues safely.
	if hasVerbose(os.Args) {
		_, _ = maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		}))
	} else {
		_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...interface{}) {}))
	}

	os.Exit(run(os.Args, DefaultEnv()))
}

// run dispatches to a command and returns the process exit code.
// args[0] is the program name.
func run(args []string, env *Environment) int {
	if len(args) < 2 {
		printUsage(env.Stderr)
		return ExitUsage
	}

	cmd, rest := args[1], args[2:]
	switch cmd {
	case "convert":
		return runConvertCmd(rest, env)
	case "doctor":
		return runDoctorCmd(rest, env)
	case "inspect":
		return runInspectCmd(rest, env)
	case "version", "--version":
		fmt.Fprintf(env.Stdout, "mht2pdf %s\n", Version)
		return ExitSuccess
	case "help", "-h", "--help":
		return runHelp(rest, env)
	}

	// Flags without a command convert: "mht2pdf --source-root dir".
	if strings.HasPrefix(cmd, "-") {
		return runConvertCmd(args[1:], env)
	}

	fmt.Fprintf(env.Stderr, "Unknown command: %s\n\n", cmd)
	printUsage(env.Stderr)
	return ExitUsage
}

// hasVerbose reports whether -v or --verbose appears in args.
func hasVerbose(args []string) bool {
	for _, a := range args {
		if a == "-v" || a == "--verbose" {
			return true
		}
	}
	return false
}
