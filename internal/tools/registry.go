// Package tools holds the capabilities the agent can call. Every tool
// returns text; failures are rendered as text too so the conversation can
// continue.
package tools

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/stellarlinkco/huarazbot/internal/llm"
)

// Tool is a named capability exposed to the model.
type Tool interface {
	Name() string
	Description() string
	// Schema is the JSON schema of the arguments object.
	Schema() map[string]any
	Execute(ctx context.Context, args map[string]any) (string, error)
}

type registered struct {
	tool   Tool
	schema *gojsonschema.Schema
}

// Registry keeps tools in registration order and validates arguments
// against each tool's schema before running it.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]registered
	order []string
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]registered)}
}

// Register adds a tool when its name is free and its schema compiles.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("tool is nil")
	}
	name := tool.Name()
	if name == "" {
		return fmt.Errorf("tool name is empty")
	}

	var schema *gojsonschema.Schema
	if raw := tool.Schema(); raw != nil {
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(raw))
		if err != nil {
			return fmt.Errorf("compile schema for %s: %w", name, err)
		}
		schema = compiled
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}
	r.tools[name] = registered{tool: tool, schema: schema}
	r.order = append(r.order, name)
	return nil
}

// MustRegister registers every tool and panics on the first failure.
func (r *Registry) MustRegister(tools ...Tool) {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.tools[name]
	return reg.tool, ok
}

// Names lists tools in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Specs describes every tool for the model.
func (r *Registry) Specs() []llm.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]llm.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name].tool
		params := t.Schema()
		if params == nil {
			params = objectSchema(nil)
		}
		specs = append(specs, llm.ToolSpec{Name: name, Description: t.Description(), Parameters: params})
	}
	return specs
}

// Validate checks args against the schema of the named tool.
func (r *Registry) Validate(name string, args map[string]any) error {
	r.mu.RLock()
	reg, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown tool %q", name)
	}
	if reg.schema == nil {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}
	result, err := reg.schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		var errs []string
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return fmt.Errorf("invalid arguments: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Execute runs the named tool and always returns text. Unknown tools,
// invalid arguments, errors and panics become error descriptions.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (out string) {
	tool, ok := r.Get(name)
	if !ok {
		log.Printf("[tools] unknown tool %q", name)
		names := r.Names()
		sort.Strings(names)
		return fmt.Sprintf("Error: la herramienta %q no existe. Herramientas disponibles: %s", name, strings.Join(names, ", "))
	}
	if err := r.Validate(name, args); err != nil {
		log.Printf("[tools] %s: %v", name, err)
		return fmt.Sprintf("Error: argumentos inválidos para %s: %v", name, err)
	}

	defer func() {
		if p := recover(); p != nil {
			log.Printf("[tools] %s panicked: %v", name, p)
			out = fmt.Sprintf("Error ejecutando %s: fallo interno de la herramienta", name)
		}
	}()

	if args == nil {
		args = map[string]any{}
	}
	result, err := tool.Execute(ctx, args)
	if err != nil {
		log.Printf("[tools] %s failed: %v", name, err)
		return fmt.Sprintf("Error ejecutando %s: %v", name, err)
	}
	return result
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	if properties == nil {
		properties = map[string]any{}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		req := make([]any, len(required))
		for i, r := range required {
			req[i] = r
		}
		schema["required"] = req
	}
	return schema
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return strings.TrimSpace(s)
}

func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}
