package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

const (
	// DefaultShellTimeout bounds a single shell execution.
	DefaultShellTimeout = time.Minute
	// maxShellOutputBytes caps each captured stream; older output is
	// dropped from the front so the tail (usually the failure) survives.
	maxShellOutputBytes = 50 * 1024
)

// dangerousCommandPatterns is the default denylist checked before any shell
// execution. It targets commands that destroy data or pipe remote content
// into a shell; it is a tripwire for a misbehaving agent, not a sandbox.
var dangerousCommandPatterns = []string{
	`rm\s+(-rf?|--recursive)\s+/`,
	`dd\s+.*of=/dev/`,
	`>\s*/etc/`,
	`chmod\s+.*777`,
	`mkfs`,
	`mv\s+.*(/etc|/usr|/bin|/sbin|/lib|/boot|/dev|/proc)`,
	`wget.*\|\s*(sh|bash|zsh)`,
	`curl.*\|\s*(sh|bash|zsh)`,
}

// ShellExecutor runs shell commands on behalf of an orchestrating agent,
// refusing those that match the denylist.
type ShellExecutor struct {
	shell    string
	timeout  time.Duration
	denylist []*regexp.Regexp
	logger   Logger
}

// ShellExecutorOptions configure a ShellExecutor.
type ShellExecutorOptions struct {
	// Shell is the interpreter invocation, e.g. "/bin/bash -lc". Embedded
	// flags are honoured; a bare executable defaults to -lc.
	Shell string
	// Timeout bounds each execution; zero means DefaultShellTimeout.
	Timeout time.Duration
	// ExtraPatterns extend the default denylist.
	ExtraPatterns []string
	Logger        Logger
}

// ShellResult captures the outcome of one command execution.
type ShellResult struct {
	ExitCode  int
	Stdout    string
	Stderr    string
	Truncated bool
}

// Format renders the result in the textual shape tool callers expect.
func (r ShellResult) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Exit code: %d\n", r.ExitCode)
	if r.Stdout != "" {
		fmt.Fprintf(&b, "\nSTDOUT:\n%s", r.Stdout)
	}
	if r.Stderr != "" {
		fmt.Fprintf(&b, "\nSTDERR:\n%s", r.Stderr)
	}
	if r.Truncated {
		b.WriteString("\n[output truncated]")
	}
	return b.String()
}

// NewShellExecutor compiles the denylist and returns an executor. Patterns
// that fail to compile are reported rather than silently dropped.
func NewShellExecutor(opts ShellExecutorOptions) (*ShellExecutor, error) {
	shell := strings.TrimSpace(opts.Shell)
	if shell == "" {
		shell = "/bin/bash"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultShellTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = &NoOpLogger{}
	}

	patterns := append(append([]string(nil), dangerousCommandPatterns...), opts.ExtraPatterns...)
	denylist := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		rx, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid denylist pattern %q: %w", pattern, err)
		}
		denylist = append(denylist, rx)
	}

	return &ShellExecutor{
		shell:    shell,
		timeout:  timeout,
		denylist: denylist,
		logger:   logger,
	}, nil
}

// Execute runs the command through the configured shell. Denylisted commands
// are refused before any process is started.
func (e *ShellExecutor) Execute(ctx context.Context, command string) (ShellResult, error) {
	if strings.TrimSpace(command) == "" {
		return ShellResult{}, errors.New("empty command")
	}
	for _, rx := range e.denylist {
		if rx.MatchString(command) {
			e.logger.Warn(ctx, "refused dangerous command", Field("pattern", rx.String()))
			return ShellResult{}, fmt.Errorf("the command %q appears to be potentially dangerous", command)
		}
	}

	cmd, err := buildShellCommand(ctx, e.shell, command, e.timeout)
	if err != nil {
		return ShellResult{}, err
	}
	defer cmd.cancelFunc()

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.cmd.Stdout = &stdoutBuf
	cmd.cmd.Stderr = &stderrBuf

	start := time.Now()
	runErr := cmd.cmd.Run()
	e.logger.Debug(ctx, "shell command finished", Field("duration", time.Since(start)), Field("command", command))

	result := ShellResult{}
	result.Stdout, result.Truncated = truncateTail(stdoutBuf.String(), maxShellOutputBytes)
	stderr, stderrTruncated := truncateTail(stderrBuf.String(), maxShellOutputBytes)
	result.Stderr = stderr
	result.Truncated = result.Truncated || stderrTruncated

	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
		result.ExitCode = 0
	case errors.As(runErr, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		if cmd.timedOut() {
			return result, fmt.Errorf("command timed out after %s", e.timeout)
		}
		return result, fmt.Errorf("failed to start command: %w", runErr)
	}

	if cmd.timedOut() {
		return result, fmt.Errorf("command timed out after %s", e.timeout)
	}
	return result, nil
}

// shellCommand pairs an exec.Cmd with its timeout context so callers can
// distinguish a deadline kill from an ordinary non-zero exit.
type shellCommand struct {
	cmd        *exec.Cmd
	cancel     context.Context
	cancelFunc context.CancelFunc
}

func (c *shellCommand) timedOut() bool {
	return errors.Is(c.cancel.Err(), context.DeadlineExceeded)
}

// buildShellCommand normalizes the shell string ("/bin/bash", "bash -lc")
// before wiring the user's command behind it.
func buildShellCommand(ctx context.Context, shell, run string, timeout time.Duration) (*shellCommand, error) {
	parts := strings.Fields(shell)
	if len(parts) == 0 {
		return nil, fmt.Errorf("invalid shell: %q", shell)
	}
	execPath := parts[0]
	args := parts[1:]
	if len(args) == 0 {
		args = append(args, "-lc")
	}
	args = append(args, run)

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	return &shellCommand{
		cmd:        exec.CommandContext(runCtx, execPath, args...),
		cancel:     runCtx,
		cancelFunc: cancel,
	}, nil
}

// truncateTail keeps the final maxBytes of output.
func truncateTail(output string, maxBytes int) (string, bool) {
	if len(output) <= maxBytes {
		return output, false
	}
	return output[len(output)-maxBytes:], true
}
