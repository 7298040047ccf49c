package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

func decodeArguments(argsJSON string) (map[string]any, error) {
	args := map[string]any{}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return nil, err
	}
	return args, nil
}

func stringArg(args map[string]any, key, fallback string) string {
	if value, ok := args[key].(string); ok {
		return value
	}
	return fallback
}

func boolArg(args map[string]any, key string) bool {
	value, _ := args[key].(bool)
	return value
}

// objectSchema builds the boilerplate JSON schema for a tool that takes a
// flat object of properties.
func objectSchema(required []string, properties map[string]string) string {
	props := make(map[string]any, len(properties))
	for name, typ := range properties {
		props[name] = map[string]any{"type": typ}
	}
	schema := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	data, _ := json.Marshal(schema)
	return string(data)
}

// NewDefaultRegistry wires the full tool surface into a registry: the patch
// dispatcher, the file tools, and the shell executor.
func NewDefaultRegistry(dispatcher *Dispatcher, files *FileTools, shell *ShellExecutor, logger Logger) (*Registry, error) {
	registry := NewRegistry(logger)

	tools := []Tool{
		{
			Name:        "apply_patch",
			Description: "Apply unified-diff text to a file, via git apply when available.",
			Schema:      objectSchema([]string{"file_path", "diff"}, map[string]string{"file_path": "string", "diff": "string"}),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				return dispatcher.ApplyPatch(ctx, stringArg(args, "file_path", ""), stringArg(args, "diff", "")), nil
			},
		},
		{
			Name:        "read_file",
			Description: "Read file content, optionally scoped to a regex or glob pattern.",
			Schema:      objectSchema([]string{"file_path"}, map[string]string{"file_path": "string", "pattern": "string"}),
			Handler: func(_ context.Context, args map[string]any) (string, error) {
				return files.ReadFile(stringArg(args, "file_path", ""), stringArg(args, "pattern", "*"))
			},
		},
		{
			Name:        "write_file",
			Description: "Write content to a file; unified-diff payloads are applied as patches.",
			Schema:      objectSchema([]string{"file_path", "content"}, map[string]string{"file_path": "string", "content": "string"}),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				return files.WriteFile(ctx, stringArg(args, "file_path", ""), stringArg(args, "content", ""))
			},
		},
		{
			Name:        "copy_file",
			Description: "Copy a file, creating destination directories as needed.",
			Schema:      objectSchema([]string{"source_path", "destination_path"}, map[string]string{"source_path": "string", "destination_path": "string"}),
			Handler: func(_ context.Context, args map[string]any) (string, error) {
				return files.CopyFile(stringArg(args, "source_path", ""), stringArg(args, "destination_path", ""))
			},
		},
		{
			Name:        "delete_file",
			Description: "Delete a file inside the working root; force bypasses the safety check.",
			Schema:      objectSchema([]string{"file_path"}, map[string]string{"file_path": "string", "force": "boolean"}),
			Handler: func(_ context.Context, args map[string]any) (string, error) {
				return files.DeleteFile(stringArg(args, "file_path", ""), boolArg(args, "force"))
			},
		},
		{
			Name:        "list_files",
			Description: "List files in a directory matching a glob pattern.",
			Schema:      objectSchema([]string{"directory_path"}, map[string]string{"directory_path": "string", "pattern": "string"}),
			Handler: func(_ context.Context, args map[string]any) (string, error) {
				entries, err := files.ListFiles(stringArg(args, "directory_path", ""), stringArg(args, "pattern", "*"))
				if err != nil {
					return "", err
				}
				return formatListing(entries), nil
			},
		},
		{
			Name:        "list_directories",
			Description: "List directories in a directory matching a glob pattern.",
			Schema:      objectSchema([]string{"directory_path"}, map[string]string{"directory_path": "string", "pattern": "string"}),
			Handler: func(_ context.Context, args map[string]any) (string, error) {
				entries, err := files.ListDirectories(stringArg(args, "directory_path", ""), stringArg(args, "pattern", "*"))
				if err != nil {
					return "", err
				}
				return formatListing(entries), nil
			},
		},
		{
			Name:        "ensure_directory",
			Description: "Create a directory (and parents) if it does not exist.",
			Schema:      objectSchema([]string{"directory_path"}, map[string]string{"directory_path": "string"}),
			Handler: func(_ context.Context, args map[string]any) (string, error) {
				return files.EnsureDirectory(stringArg(args, "directory_path", ""))
			},
		},
		{
			Name:        "shell_execute",
			Description: "Run a shell command; dangerous commands are refused.",
			Schema:      objectSchema([]string{"command"}, map[string]string{"command": "string"}),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				result, err := shell.Execute(ctx, stringArg(args, "command", ""))
				if err != nil {
					return "", err
				}
				return result.Format(), nil
			},
		},
	}

	for _, tool := range tools {
		if err := registry.Register(tool); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", tool.Name, err)
		}
	}
	return registry, nil
}

func formatListing(entries []string) string {
	if len(entries) == 0 {
		return "(no matches)"
	}
	return strings.Join(entries, "\n")
}
