// Package envprobe detects which external patch tooling is available on the
// host. The probes never fail hard: a missing executable degrades to
// "unavailable" so that callers can route around it.
package envprobe

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"
)

// Probe resolves and exercises external commands. The lookup and runner
// functions are injectable so unit tests can simulate hosts without git on
// PATH.
type Probe struct {
	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args ...string) error

	mu     sync.Mutex
	cached map[string]bool
}

// New constructs a Probe backed by exec.LookPath and exec.CommandContext.
func New() *Probe {
	return &Probe{
		lookPath: exec.LookPath,
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
		cached: make(map[string]bool),
	}
}

// NewWithLookPath allows tests to override command resolution. Commands that
// resolve are considered runnable without being executed.
func NewWithLookPath(lookPath func(string) (string, error)) *Probe {
	probe := New()
	if lookPath != nil {
		probe.lookPath = lookPath
		probe.run = func(context.Context, string, ...string) error { return nil }
	}
	return probe
}

// GitAvailable reports whether a usable git executable is present. The result
// is cached per probe; invoking "git --version" once per process is enough.
func (p *Probe) GitAvailable(ctx context.Context) bool {
	return p.commandWorks(ctx, "git", "--version")
}

// CommandAvailable reports whether the named executable resolves on PATH.
func (p *Probe) CommandAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := p.lookPath(name)
	return err == nil
}

func (p *Probe) commandWorks(ctx context.Context, name string, args ...string) bool {
	p.mu.Lock()
	if ok, seen := p.cached[name]; seen {
		p.mu.Unlock()
		return ok
	}
	p.mu.Unlock()

	ok := false
	if _, err := p.lookPath(name); err == nil {
		ok = p.run(ctx, name, args...) == nil
	}

	p.mu.Lock()
	p.cached[name] = ok
	p.mu.Unlock()
	return ok
}

// Result summarises the detected patching capabilities of the host.
type Result struct {
	Git    bool
	Patch  bool
	GOOS   string
	GOARCH string
}

// Detect runs all probes and returns a consolidated result.
func (p *Probe) Detect(ctx context.Context) Result {
	return Result{
		Git:    p.GitAvailable(ctx),
		Patch:  p.CommandAvailable("patch"),
		GOOS:   runtime.GOOS,
		GOARCH: runtime.GOARCH,
	}
}

// FormatSummary renders a short human-readable capability banner.
func FormatSummary(result Result) string {
	var parts []string
	if result.Git {
		parts = append(parts, "git apply")
	}
	if result.Patch {
		parts = append(parts, "patch(1)")
	}
	if len(parts) == 0 {
		return fmt.Sprintf("No external patch tooling detected (%s/%s); using the builtin applier.", result.GOOS, result.GOARCH)
	}
	return fmt.Sprintf("External patch tooling: %s (%s/%s).", strings.Join(parts, ", "), result.GOOS, result.GOARCH)
}
