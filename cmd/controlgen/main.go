package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

// Dispatcher
func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing. It returns the process exit code:
// 0 on success, 1 when the command ran and failed, 2 on usage or
// configuration errors.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "generate":
		return runGenerateCmd(args[2:], stdout, stderr)
	case "registry":
		return runRegistryCmd(args[2:], stdout, stderr)
	case "eval-condition":
		return runEvalConditionCmd(args[2:], stdout, stderr)
	case "version", "--version":
		_, _ = fmt.Fprintf(stdout, "controlgen %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

// ANSI Colors
const (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorGreen = "\033[32m"
	ColorBlue  = "\033[34m"
	ColorCyan  = "\033[36m"
	ColorGray  = "\033[37m"
)

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%scontrolgen %s%s\n", ColorBold+ColorBlue, version, ColorReset)
	fmt.Fprintf(w, "%sObligations in, company controls out.%s\n", ColorGray, ColorReset)
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sUSAGE:%s\n", ColorBold, ColorReset)
	fmt.Fprintln(w, "  controlgen <command> [flags]")
	fmt.Fprintln(w, "")

	printSection(w, "GENERATION")
	printCommand(w, "generate", "Generate controls (--obligations, --company, --json)")

	printSection(w, "REGISTRIES")
	printCommand(w, "registry", "Inspect registries (stats|objectives|variants)")

	printSection(w, "UTILITIES")
	printCommand(w, "eval-condition", "Evaluate an applies_if condition (--expr, --employees)")
	printCommand(w, "version", "Show version information")
	printCommand(w, "help", "Show this help")
	fmt.Fprintln(w, "")
}

func printSection(w io.Writer, title string) {
	fmt.Fprintf(w, "%s%s:%s\n", ColorBold+ColorCyan, title, ColorReset)
}

func printCommand(w io.Writer, name, desc string) {
	fmt.Fprintf(w, "  %s%-15s%s %s\n", ColorGreen, name, ColorReset, desc)
}

// newLogger builds the process logger. Logs go to w so stdout stays free
// for command output.
func newLogger(level, format string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}
