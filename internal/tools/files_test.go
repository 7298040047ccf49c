package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestFileTools(t *testing.T, dir string) *FileTools {
	t.Helper()
	return NewFileTools(FileToolsOptions{
		WorkingDir: dir,
		Dispatcher: newTestDispatcher(t, dir),
	})
}

func TestReadFileWholeContent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("alpha\nbeta\n"), 0o644))

	ft := newTestFileTools(t, dir)
	content, err := ft.ReadFile(path, "*")
	require.NoError(t, err)
	require.Equal(t, "alpha\nbeta\n", content)
}

func TestReadFileRegexPattern(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "source.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n\nfunc one() {}\nfunc two() {}\n"), 0o644))

	ft := newTestFileTools(t, dir)
	content, err := ft.ReadFile(path, `func \w+\(\) \{\}`)
	require.NoError(t, err)
	require.Equal(t, "func one() {}\nfunc two() {}", content)
}

func TestReadFileGlobFallback(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "listing.txt")
	require.NoError(t, os.WriteFile(path, []byte("readme.md\nnotes.txt\nmain.go\nextra.txt\n"), 0o644))

	ft := newTestFileTools(t, dir)
	// "*.txt" is not a valid regular expression, so the per-line glob
	// fallback handles it.
	content, err := ft.ReadFile(path, "*.txt")
	require.NoError(t, err)
	require.Equal(t, "notes.txt\nextra.txt", content)
}

func TestReadFileNoMatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(path, []byte("nothing here\n"), 0o644))

	ft := newTestFileTools(t, dir)
	_, err := ft.ReadFile(path, "absent=*")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no content")
}

func TestReadFileMissing(t *testing.T) {
	t.Parallel()

	ft := newTestFileTools(t, t.TempDir())
	_, err := ft.ReadFile(filepath.Join(t.TempDir(), "gone.txt"), "*")
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not exist")
}

func TestReadFileSizeCap(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "big.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", 128)), 0o644))

	ft := NewFileTools(FileToolsOptions{WorkingDir: dir, MaxReadBytes: 64})
	_, err := ft.ReadFile(path, "*")
	require.Error(t, err)
	require.Contains(t, err.Error(), "byte limit")
}

func TestWriteFileVerbatim(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.txt")

	ft := newTestFileTools(t, dir)
	message, err := ft.WriteFile(context.Background(), path, "plain content\n")
	require.NoError(t, err)
	require.Contains(t, message, "Wrote")

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "plain content\n", string(content))
}

func TestWriteFileRoutesDiffToDispatcher(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "routed.txt")
	require.NoError(t, os.WriteFile(path, []byte("a\nb\nc\n"), 0o644))

	ft := newTestFileTools(t, dir)
	message, err := ft.WriteFile(context.Background(), path, "--- a/routed.txt\n+++ b/routed.txt\n@@ -1,1 +1,2 @@\n a\n+x")
	require.NoError(t, err)
	require.Contains(t, message, "builtin applier")

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "a\nx\nb\nc\n", string(content))
}

func TestDeleteFileRefusesOutsideWorkingRoot(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	outside := filepath.Join(t.TempDir(), "victim.txt")
	require.NoError(t, os.WriteFile(outside, []byte("data"), 0o644))

	ft := newTestFileTools(t, root)
	_, err := ft.DeleteFile(outside, false)
	require.Error(t, err)
	require.Contains(t, err.Error(), "outside the working root")

	message, err := ft.DeleteFile(outside, true)
	require.NoError(t, err)
	require.Contains(t, message, "deleted")
	require.NoFileExists(t, outside)
}

func TestDeleteFileMissingIsNotAnError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ft := newTestFileTools(t, dir)
	message, err := ft.DeleteFile(filepath.Join(dir, "gone.txt"), false)
	require.NoError(t, err)
	require.Contains(t, message, "does not exist")
}

func TestListFilesAndDirectories(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.log"), []byte("b"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	ft := newTestFileTools(t, dir)

	fileEntries, err := ft.ListFiles(dir, "*.txt")
	require.NoError(t, err)
	require.Len(t, fileEntries, 1)
	require.Equal(t, filepath.Join(dir, "a.txt"), fileEntries[0])

	dirEntries, err := ft.ListDirectories(dir, "*")
	require.NoError(t, err)
	require.Len(t, dirEntries, 1)
	require.Equal(t, filepath.Join(dir, "sub"), dirEntries[0])

	_, err = ft.ListFiles(filepath.Join(dir, "absent"), "*")
	require.Error(t, err)
}

func TestCopyFilePreservesContent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "deep", "dst.txt")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o600))

	ft := newTestFileTools(t, dir)
	message, err := ft.CopyFile(src, dst)
	require.NoError(t, err)
	require.Contains(t, message, "copied")

	content, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "payload", string(content))
}

func TestEnsureDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ft := newTestFileTools(t, dir)
	_, err := ft.EnsureDirectory(filepath.Join(dir, "a", "b", "c"))
	require.NoError(t, err)
	require.DirExists(t, filepath.Join(dir, "a", "b", "c"))
}
