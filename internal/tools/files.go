package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/asynkron/diffkit/pkg/unidiff"
)

// DefaultMaxReadBytes caps how much matched content ReadFile returns. Results
// are forwarded into an LLM context window, so unbounded reads are a caller
// hazard rather than a convenience.
const DefaultMaxReadBytes = 64 * 1024

// FileTools implements the file-level tool surface: reads scoped by pattern,
// writes that route diff payloads to the patch dispatcher, and the usual
// copy/delete/list helpers.
type FileTools struct {
	workingDir   string
	maxReadBytes int
	dispatcher   *Dispatcher
	logger       Logger
}

// FileToolsOptions configure a FileTools instance.
type FileToolsOptions struct {
	WorkingDir   string
	MaxReadBytes int
	Dispatcher   *Dispatcher
	Logger       Logger
}

// NewFileTools builds the file tool surface. A nil dispatcher disables diff
// routing in WriteFile and writes all content verbatim.
func NewFileTools(opts FileToolsOptions) *FileTools {
	workingDir := strings.TrimSpace(opts.WorkingDir)
	if workingDir == "" {
		if wd, err := os.Getwd(); err == nil {
			workingDir = wd
		}
	}
	if abs, err := filepath.Abs(workingDir); err == nil {
		workingDir = abs
	}
	maxRead := opts.MaxReadBytes
	if maxRead <= 0 {
		maxRead = DefaultMaxReadBytes
	}
	logger := opts.Logger
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &FileTools{
		workingDir:   workingDir,
		maxReadBytes: maxRead,
		dispatcher:   opts.Dispatcher,
		logger:       logger,
	}
}

// ReadFile returns file content matching pattern. "*" returns the whole file.
// Other patterns are tried as a multiline regular expression first; when the
// expression does not compile or matches nothing, each line is matched as a
// glob instead.
func (t *FileTools) ReadFile(path, pattern string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("file %s does not exist", path)
		}
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	content := string(raw)

	if pattern == "" || pattern == "*" {
		if len(content) > t.maxReadBytes {
			return "", fmt.Errorf("matched content in %s exceeds the %d byte limit", path, t.maxReadBytes)
		}
		return content, nil
	}

	matched := matchRegexp(content, pattern)
	if matched == "" {
		matched = matchGlobLines(content, pattern)
	}
	if matched == "" {
		return "", fmt.Errorf("no content in %s matches the pattern %q", path, pattern)
	}
	if len(matched) > t.maxReadBytes {
		return "", fmt.Errorf("matched content in %s exceeds the %d byte limit", path, t.maxReadBytes)
	}
	return matched, nil
}

func matchRegexp(content, pattern string) string {
	rx, err := regexp.Compile("(?ms)" + pattern)
	if err != nil {
		return ""
	}
	matches := rx.FindAllString(content, -1)
	return strings.Join(matches, "\n")
}

func matchGlobLines(content, pattern string) string {
	var matched []string
	for _, line := range strings.Split(content, "\n") {
		ok, err := filepath.Match(pattern, line)
		if err != nil {
			return ""
		}
		if ok {
			matched = append(matched, line)
		}
	}
	return strings.Join(matched, "\n")
}

// WriteFile writes content to path, creating parent directories first. A
// payload that looks like a unified diff is applied through the dispatcher
// instead of being written verbatim; agents routinely answer a write request
// with a diff of the change they want.
func (t *FileTools) WriteFile(ctx context.Context, path, content string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("no target file provided")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("invalid path %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	if t.dispatcher != nil && unidiff.LooksLikeDiff(content) {
		t.logger.Debug(ctx, "write_file payload routed to patch dispatcher", Field("file", path))
		return t.dispatcher.ApplyPatch(ctx, path, content), nil
	}

	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return fmt.Sprintf("Wrote %d bytes to %s", len(content), path), nil
}

// CopyFile copies src to dst, creating parent directories and preserving the
// source permission bits.
func (t *FileTools) CopyFile(src, dst string) (string, error) {
	info, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", src, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("cannot copy directory %s", src)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", dst, err)
	}

	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode()&fs.ModePerm)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return "", fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return fmt.Sprintf("File copied from %s to %s", src, dst), nil
}

// DeleteFile removes path. Unless force is set, the path must resolve inside
// the working root; deletes outside the project tree are refused.
func (t *FileTools) DeleteFile(path string, force bool) (string, error) {
	if !force && !t.isSafePath(path) {
		return "", fmt.Errorf("refusing to delete %s: path is outside the working root %s", path, t.workingDir)
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return fmt.Sprintf("File %s does not exist", path), nil
	}
	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return fmt.Sprintf("File %s has been deleted", path), nil
}

// ListFiles returns the files in dir matching the glob pattern.
func (t *FileTools) ListFiles(dir, pattern string) ([]string, error) {
	return t.listEntries(dir, pattern, false)
}

// ListDirectories returns the directories in dir matching the glob pattern.
func (t *FileTools) ListDirectories(dir, pattern string) ([]string, error) {
	return t.listEntries(dir, pattern, true)
}

func (t *FileTools) listEntries(dir, pattern string, wantDirs bool) ([]string, error) {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("directory %s does not exist", dir)
	}
	if pattern == "" {
		pattern = "*"
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	var results []string
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil {
			continue
		}
		if info.IsDir() == wantDirs {
			results = append(results, match)
		}
	}
	return results, nil
}

// EnsureDirectory creates the directory (and parents) if missing.
func (t *FileTools) EnsureDirectory(path string) (string, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return fmt.Sprintf("Directory %s is present", path), nil
}

// isSafePath reports whether path resolves inside the working root.
func (t *FileTools) isSafePath(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(t.workingDir, abs)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
