package tools

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/asynkron/diffkit/internal/envprobe"
	"github.com/asynkron/diffkit/pkg/unidiff"
)

// DefaultGitTimeout bounds a single git apply invocation. The external tool
// blocks the caller, so a hung subprocess must not hang the orchestrator.
const DefaultGitTimeout = 30 * time.Second

// applier is one strategy for applying a diff to a file. The dispatcher walks
// its chain of appliers until one succeeds.
type applier interface {
	name() string
	available(ctx context.Context) bool
	apply(ctx context.Context, filePath, diffText string) (string, error)
}

// Dispatcher routes a patch request to git apply when available and falls
// back to the builtin unified-diff applier otherwise. It is safe for
// sequential reuse; concurrent callers targeting the same file path must be
// serialized by the caller.
type Dispatcher struct {
	chain  []applier
	logger Logger
}

// DispatcherOptions configure how patches are routed and applied.
type DispatcherOptions struct {
	// WorkingDir is the tree git apply runs against. Defaults to the
	// process working directory.
	WorkingDir string
	// DisableGit skips the external tool entirely.
	DisableGit bool
	// GitTimeout bounds the git invocation; zero means DefaultGitTimeout.
	GitTimeout time.Duration
	// Probe detects git availability. Defaults to a fresh envprobe.Probe.
	Probe *envprobe.Probe
	// Logger receives diagnostics. Defaults to NoOpLogger.
	Logger Logger
}

// NewDispatcher builds a dispatcher with the git strategy first and the
// builtin applier as the terminal fallback.
func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	workingDir := strings.TrimSpace(opts.WorkingDir)
	if workingDir == "" {
		if wd, err := os.Getwd(); err == nil {
			workingDir = wd
		}
	}
	probe := opts.Probe
	if probe == nil {
		probe = envprobe.New()
	}
	logger := opts.Logger
	if logger == nil {
		logger = &NoOpLogger{}
	}
	timeout := opts.GitTimeout
	if timeout <= 0 {
		timeout = DefaultGitTimeout
	}

	var chain []applier
	if !opts.DisableGit {
		chain = append(chain, &gitApplier{
			probe:      probe,
			workingDir: workingDir,
			timeout:    timeout,
			logger:     logger,
		})
	}
	chain = append(chain, &builtinApplier{})

	return &Dispatcher{chain: chain, logger: logger}
}

// ApplyPatch applies diffText to filePath and always returns a human-readable
// confirmation or error message, never a fault. Orchestrating callers inspect
// the message instead of handling errors.
func (d *Dispatcher) ApplyPatch(ctx context.Context, filePath, diffText string) string {
	message, err := d.Apply(ctx, filePath, diffText)
	if err != nil {
		return fmt.Sprintf("Error applying diff to %s: %v", filePath, err)
	}
	return message
}

// Apply is the error-returning form of ApplyPatch, used where the caller
// needs the success signal (the CLI exit code, the TUI).
func (d *Dispatcher) Apply(ctx context.Context, filePath, diffText string) (string, error) {
	if strings.TrimSpace(filePath) == "" {
		return "", errors.New("no target file provided")
	}
	ctx = WithTraceID(ctx, NewTraceID())

	if err := d.ensureTarget(ctx, filePath, diffText); err != nil {
		return "", err
	}

	var lastErr error
	for _, strategy := range d.chain {
		if !strategy.available(ctx) {
			d.logger.Debug(ctx, "applier unavailable", Field("applier", strategy.name()))
			continue
		}
		message, err := strategy.apply(ctx, filePath, diffText)
		if err == nil {
			d.logger.Info(ctx, "patch applied", Field("applier", strategy.name()), Field("file", filePath))
			return message, nil
		}
		// A rejection from one strategy routes to the next; it only
		// surfaces when the whole chain is exhausted.
		d.logger.Warn(ctx, "applier failed", Field("applier", strategy.name()), Field("file", filePath), Field("reason", err.Error()))
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("no patch applier available")
	}
	return "", lastErr
}

// ensureTarget creates an empty file when the target is missing and the diff
// is a bare patch fragment. Full multi-file diffs name their own targets and
// are left to the appliers.
func (d *Dispatcher) ensureTarget(ctx context.Context, filePath, diffText string) error {
	if strings.HasPrefix(diffText, "diff --git") {
		return nil
	}
	if _, err := os.Stat(filePath); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to stat %s: %w", filePath, err)
	}
	if err := os.WriteFile(filePath, nil, 0o644); err != nil {
		return fmt.Errorf("failed to create %s: %w", filePath, err)
	}
	d.logger.Debug(ctx, "created empty target for patch", Field("file", filePath))
	return nil
}

// gitApplier shells out to "git apply" with whitespace-tolerant flags.
type gitApplier struct {
	probe      *envprobe.Probe
	workingDir string
	timeout    time.Duration
	logger     Logger
}

func (g *gitApplier) name() string { return "git apply" }

func (g *gitApplier) available(ctx context.Context) bool {
	return g.probe.GitAvailable(ctx)
}

func (g *gitApplier) apply(ctx context.Context, filePath, diffText string) (string, error) {
	tmp, err := os.CreateTemp("", "diffkit-*.patch")
	if err != nil {
		return "", fmt.Errorf("failed to stage patch file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.WriteString(diffText); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to stage patch file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to stage patch file: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "git", "apply", "--ignore-whitespace", "--verbose", tmpPath)
	cmd.Dir = g.workingDir
	output, err := cmd.CombinedOutput()
	if err != nil {
		// Output is diagnostic only; the fallback applier covers many of
		// git's rejection cases (e.g. the tree is not a repository).
		g.logger.Debug(ctx, "git apply output", Field("output", strings.TrimSpace(string(output))))
		return "", fmt.Errorf("git apply rejected the patch: %w", err)
	}
	return fmt.Sprintf("Diff applied to %s using git apply", filePath), nil
}

// builtinApplier applies the diff with pkg/unidiff, reading and writing the
// target file directly.
type builtinApplier struct{}

func (b *builtinApplier) name() string { return "builtin applier" }

func (b *builtinApplier) available(context.Context) bool { return true }

func (b *builtinApplier) apply(ctx context.Context, filePath, diffText string) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	content := ""
	perm := fs.FileMode(0o644)
	info, err := os.Stat(filePath)
	switch {
	case err == nil:
		if info.IsDir() {
			return "", fmt.Errorf("cannot patch directory %s", filePath)
		}
		if mode := info.Mode() & fs.ModePerm; mode != 0 {
			perm = mode
		}
		raw, readErr := os.ReadFile(filePath)
		if readErr != nil {
			return "", fmt.Errorf("failed to read %s: %w", filePath, readErr)
		}
		content = string(raw)
	case errors.Is(err, fs.ErrNotExist):
		// A missing target patches as empty content.
	default:
		return "", fmt.Errorf("failed to stat %s: %w", filePath, err)
	}

	patched := unidiff.Apply(unidiff.ParseDocument(content), diffText)

	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", filePath, err)
	}
	if err := os.WriteFile(filePath, []byte(patched.Render()), perm); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", filePath, err)
	}
	return fmt.Sprintf("Diff applied to %s using the builtin applier", filePath), nil
}
