// Package tools holds the client-side tools offered to the agent on every
// request and dispatches the calls it makes back to them.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/haasonsaas/agentbridge/internal/exchange"
	"github.com/haasonsaas/agentbridge/internal/letta"
)

// Limits applied before a call reaches its handler.
const (
	MaxToolNameLength = 256
	MaxArgumentsSize  = 1 << 20
)

// Handler runs a tool with its raw JSON arguments and returns the text given
// back to the agent.
type Handler func(ctx context.Context, args json.RawMessage) (string, error)

// Tool is a client-side tool declaration plus its implementation.
type Tool struct {
	Name        string
	Description string
	// Schema is a JSON Schema object describing the arguments.
	Schema  json.RawMessage
	Handler Handler
}

type entry struct {
	tool   Tool
	schema *jsonschema.Schema
}

// Registry is the catalog of client-side tools. It is safe for concurrent
// use.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*entry
	order  []string
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]*entry),
		logger: logger.With("component", "tools"),
	}
}

// Register adds tool, replacing any tool with the same name. The schema is
// compiled up front so a bad declaration fails at startup.
func (r *Registry) Register(tool Tool) error {
	if tool.Name == "" || len(tool.Name) > MaxToolNameLength {
		return fmt.Errorf("invalid tool name %q", tool.Name)
	}
	if tool.Handler == nil {
		return fmt.Errorf("tool %s: handler is required", tool.Name)
	}
	e := &entry{tool: tool}
	if len(tool.Schema) > 0 {
		compiled, err := jsonschema.CompileString(tool.Name+".schema.json", string(tool.Schema))
		if err != nil {
			return fmt.Errorf("tool %s: compile schema: %w", tool.Name, err)
		}
		e.schema = compiled
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name]; !exists {
		r.order = append(r.order, tool.Name)
	}
	r.tools[tool.Name] = e
	return nil
}

// MustRegister is Register for tools built into the binary.
func (r *Registry) MustRegister(tool Tool) {
	if err := r.Register(tool); err != nil {
		panic(err)
	}
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Catalog returns the declarations sent with each agent request, in
// registration order.
func (r *Registry) Catalog() []letta.ClientTool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.order) == 0 {
		return nil
	}
	out := make([]letta.ClientTool, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name].tool
		out = append(out, letta.ClientTool{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Schema,
		})
	}
	return out
}

// Handle dispatches call to its tool. Unknown tools and arguments that fail
// validation yield an error result; handler failures are returned as errors.
func (r *Registry) Handle(ctx context.Context, call exchange.ToolCall) (exchange.ToolResult, error) {
	if len(call.Name) > MaxToolNameLength {
		return failed(fmt.Sprintf("tool name exceeds maximum length of %d characters", MaxToolNameLength)), nil
	}
	if len(call.Arguments) > MaxArgumentsSize {
		return failed(fmt.Sprintf("tool arguments exceed maximum size of %d bytes", MaxArgumentsSize)), nil
	}

	r.mu.RLock()
	e, ok := r.tools[call.Name]
	r.mu.RUnlock()
	if !ok {
		return failed("tool not found: " + call.Name), nil
	}

	args := json.RawMessage(call.Arguments)
	if err := e.validate(args); err != nil {
		r.logger.Debug("rejected tool arguments", "tool", call.Name, "error", err)
		return failed(err.Error()), nil
	}

	out, err := e.tool.Handler(ctx, args)
	if err != nil {
		return exchange.ToolResult{}, err
	}
	return exchange.ToolResult{Status: letta.ApprovalSuccess, Return: out}, nil
}

func (e *entry) validate(args json.RawMessage) error {
	var decoded any
	if err := json.Unmarshal(args, &decoded); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if e.schema == nil {
		return nil
	}
	if err := e.schema.Validate(decoded); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func failed(msg string) exchange.ToolResult {
	return exchange.ToolResult{Status: letta.ApprovalError, Return: msg}
}
