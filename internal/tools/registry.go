package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Handler executes one tool call with already-validated arguments.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Tool couples a named capability with the JSON schema its arguments must
// satisfy. Schemas are the contract shared with the orchestrating agent.
type Tool struct {
	Name        string
	Description string
	Schema      string
	Handler     Handler
}

// Registry dispatches named tool calls after validating their JSON arguments
// against the tool's schema. Like the dispatcher, Invoke always answers with
// a message string; faults never escape to the orchestrator.
type Registry struct {
	tools   map[string]Tool
	schemas map[string]*gojsonschema.Schema
	logger  Logger
}

// NewRegistry builds an empty registry.
func NewRegistry(logger Logger) *Registry {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &Registry{
		tools:   make(map[string]Tool),
		schemas: make(map[string]*gojsonschema.Schema),
		logger:  logger,
	}
}

// Register adds a tool, compiling its argument schema up front so invalid
// schemas fail at wiring time rather than on the first call.
func (r *Registry) Register(tool Tool) error {
	name := strings.TrimSpace(tool.Name)
	if name == "" {
		return fmt.Errorf("tool name is required")
	}
	if tool.Handler == nil {
		return fmt.Errorf("tool %s has no handler", name)
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(tool.Schema))
	if err != nil {
		return fmt.Errorf("tool %s has an invalid schema: %w", name, err)
	}
	r.tools[name] = tool
	r.schemas[name] = schema
	return nil
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke validates argsJSON against the named tool's schema and runs its
// handler. Unknown tools, invalid arguments, and handler failures all come
// back as descriptive message strings.
func (r *Registry) Invoke(ctx context.Context, name, argsJSON string) string {
	ctx = WithTraceID(ctx, NewTraceID())

	tool, ok := r.tools[name]
	if !ok {
		return fmt.Sprintf("Error: unknown tool %q (available: %s)", name, strings.Join(r.Names(), ", "))
	}

	if strings.TrimSpace(argsJSON) == "" {
		argsJSON = "{}"
	}
	validation, err := r.schemas[name].Validate(gojsonschema.NewStringLoader(argsJSON))
	if err != nil {
		return fmt.Sprintf("Error: arguments for %s are not valid JSON: %v", name, err)
	}
	if !validation.Valid() {
		issues := make([]string, 0, len(validation.Errors()))
		for _, issue := range validation.Errors() {
			issues = append(issues, issue.String())
		}
		r.logger.Warn(ctx, "tool arguments failed schema validation", Field("tool", name), Field("issues", strings.Join(issues, "; ")))
		return fmt.Sprintf("Error: invalid arguments for %s: %s", name, strings.Join(issues, "; "))
	}

	args, err := decodeArguments(argsJSON)
	if err != nil {
		return fmt.Sprintf("Error: arguments for %s are not a JSON object: %v", name, err)
	}

	result, err := tool.Handler(ctx, args)
	if err != nil {
		r.logger.Error(ctx, "tool handler failed", err, Field("tool", name))
		return fmt.Sprintf("Error running %s: %v", name, err)
	}
	return result
}
