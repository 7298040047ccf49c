// Package cli implements the diffkit command line front end.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/asynkron/diffkit/internal/envprobe"
	"github.com/asynkron/diffkit/internal/tools"
	"github.com/asynkron/diffkit/internal/tui"
)

// Run executes diffkit with the provided CLI arguments, reading the diff from
// stdin or the -patch file. It returns a POSIX-style exit code.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	if err := godotenv.Load(); err != nil {
		// A missing .env file is fine, but other errors should be surfaced to help with debugging.
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			fmt.Fprintf(stderr, "failed to load .env: %v\n", err)
			return 1
		}
	}

	flagSet := flag.NewFlagSet("diffkit", flag.ContinueOnError)
	flagSet.SetOutput(stderr)
	workDir := flagSet.String("C", "", "working directory for patch application (default: current directory)")
	patchPath := flagSet.String("patch", "-", "path to the diff file, or - to read from stdin")
	noGit := flagSet.Bool("no-git", envBool("DIFFKIT_NO_GIT"), "skip git apply and use the builtin applier directly")
	gitTimeout := flagSet.Int("git-timeout", envInt("DIFFKIT_GIT_TIMEOUT_SEC", int(tools.DefaultGitTimeout/time.Second)), "timeout in seconds for the git apply invocation")
	logLevel := flagSet.String("log-level", envDefault("DIFFKIT_LOG_LEVEL", "WARN"), "minimum log level (DEBUG, INFO, WARN, ERROR)")
	logFile := flagSet.String("log-file", os.Getenv("DIFFKIT_LOG_FILE"), "append diagnostics to this file instead of stderr")
	interactive := flagSet.Bool("interactive", false, "review the patch in a terminal UI before applying")
	verbose := flagSet.Bool("verbose", false, "print the detected patch tooling before applying")

	if err := flagSet.Parse(args); err != nil {
		return 2
	}

	if flagSet.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: diffkit [flags] <file>")
		flagSet.PrintDefaults()
		return 2
	}
	target := flagSet.Arg(0)

	diffText, err := readDiff(*patchPath, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "failed to read patch: %v\n", err)
		return 1
	}
	if strings.TrimSpace(diffText) == "" {
		fmt.Fprintln(stderr, "no patch provided")
		return 1
	}

	logger, closeLog, err := buildLogger(*logLevel, *logFile, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "failed to open log file: %v\n", err)
		return 1
	}
	defer closeLog()

	probe := envprobe.New()
	if *verbose {
		fmt.Fprintln(stderr, envprobe.FormatSummary(probe.Detect(ctx)))
	}

	dispatcher := tools.NewDispatcher(tools.DispatcherOptions{
		WorkingDir: *workDir,
		DisableGit: *noGit,
		GitTimeout: time.Duration(*gitTimeout) * time.Second,
		Probe:      probe,
		Logger:     logger,
	})

	if *interactive {
		if err := tui.Run(ctx, tui.Options{
			Target:     target,
			DiffText:   diffText,
			Dispatcher: dispatcher,
		}); err != nil {
			fmt.Fprintf(stderr, "interactive session failed: %v\n", err)
			return 1
		}
		return 0
	}

	message, err := dispatcher.Apply(ctx, target, diffText)
	if err != nil {
		fmt.Fprintf(stderr, "Error applying diff to %s: %v\n", target, err)
		return 1
	}
	fmt.Fprintln(stdout, message)
	return 0
}

func readDiff(patchPath string, stdin io.Reader) (string, error) {
	if patchPath == "" || patchPath == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	data, err := os.ReadFile(patchPath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func buildLogger(level, path string, stderr io.Writer) (tools.Logger, func(), error) {
	minLevel := tools.LogLevel(strings.ToUpper(strings.TrimSpace(level)))
	switch minLevel {
	case tools.LogLevelDebug, tools.LogLevelInfo, tools.LogLevelWarn, tools.LogLevelError:
	default:
		minLevel = tools.LogLevelWarn
	}

	if strings.TrimSpace(path) == "" {
		return tools.NewStdLogger(minLevel, stderr), func() {}, nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return tools.NewStdLogger(minLevel, file), func() { _ = file.Close() }, nil
}

func envDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envBool(key string) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && value
}

func envInt(key string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
