package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, dir string) *Registry {
	t.Helper()
	dispatcher := newTestDispatcher(t, dir)
	files := NewFileTools(FileToolsOptions{WorkingDir: dir, Dispatcher: dispatcher})
	shell := newTestShellExecutor(t, ShellExecutorOptions{})
	registry, err := NewDefaultRegistry(dispatcher, files, shell, nil)
	require.NoError(t, err)
	return registry
}

func TestRegistryListsDefaultTools(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t, t.TempDir())
	names := registry.Names()
	require.Contains(t, names, "apply_patch")
	require.Contains(t, names, "read_file")
	require.Contains(t, names, "write_file")
	require.Contains(t, names, "shell_execute")
}

func TestInvokeUnknownTool(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t, t.TempDir())
	message := registry.Invoke(context.Background(), "summon_demons", "{}")
	require.Contains(t, message, "unknown tool")
}

func TestInvokeRejectsMissingRequiredArgument(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t, t.TempDir())
	message := registry.Invoke(context.Background(), "apply_patch", `{"file_path": "a.txt"}`)
	require.Contains(t, message, "invalid arguments")
}

func TestInvokeRejectsUnknownProperty(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t, t.TempDir())
	message := registry.Invoke(context.Background(), "read_file", `{"file_path": "a.txt", "mode": "fast"}`)
	require.Contains(t, message, "invalid arguments")
}

func TestInvokeRejectsMalformedJSON(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t, t.TempDir())
	message := registry.Invoke(context.Background(), "read_file", `{"file_path": `)
	require.True(t, strings.HasPrefix(message, "Error"), "got %q", message)
}

func TestInvokeApplyPatchEndToEnd(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "app.txt")
	require.NoError(t, os.WriteFile(target, []byte("a\nb\nc\n"), 0o644))

	registry := newTestRegistry(t, dir)
	args := `{"file_path": ` + quoteJSON(target) + `, "diff": "@@ -1,1 +1,2 @@\n a\n+x"}`
	message := registry.Invoke(context.Background(), "apply_patch", args)
	require.Contains(t, message, "builtin applier")

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "a\nx\nb\nc\n", string(content))
}

func TestInvokeReadFileEndToEnd(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "read.txt")
	require.NoError(t, os.WriteFile(target, []byte("payload\n"), 0o644))

	registry := newTestRegistry(t, dir)
	message := registry.Invoke(context.Background(), "read_file", `{"file_path": `+quoteJSON(target)+`}`)
	require.Equal(t, "payload\n", message)
}

func TestInvokeHandlerFailureBecomesMessage(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t, t.TempDir())
	message := registry.Invoke(context.Background(), "read_file", `{"file_path": "definitely/not/here.txt"}`)
	require.True(t, strings.HasPrefix(message, "Error running read_file"), "got %q", message)

	message = registry.Invoke(context.Background(), "shell_execute", `{"command": "rm -rf /"}`)
	require.True(t, strings.HasPrefix(message, "Error running shell_execute"), "got %q", message)
}

func TestRegisterRejectsDuplicatesAndBadSchemas(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(nil)
	tool := Tool{
		Name:    "noop",
		Schema:  `{"type": "object"}`,
		Handler: func(context.Context, map[string]any) (string, error) { return "ok", nil },
	}
	require.NoError(t, registry.Register(tool))
	require.Error(t, registry.Register(tool))

	bad := Tool{
		Name:    "broken",
		Schema:  `{"type": ["not-a-type"]}`,
		Handler: tool.Handler,
	}
	require.Error(t, registry.Register(bad))
}

func quoteJSON(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + replacer.Replace(value) + `"`
}
