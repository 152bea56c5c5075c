// Package toolregistry holds the tool catalogue the agent loop calls into:
// a name keyed set of handlers, immutable once the registry is locked, and
// an event bus that announces the start and end of every invocation.
package toolregistry

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ToolParameter describes one entry of a tool's JSON parameter schema.
type ToolParameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
}

// ToolHandler executes a tool call and returns the text the model sees.
type ToolHandler func(ctx context.Context, args map[string]interface{}) (string, error)

// ToolDefinition is one tool's name, schema, handler, and optional label
// formatter used when announcing a tool:start event.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  []ToolParameter
	Handler     ToolHandler
	Label       func(args map[string]interface{}) string
}

// EventType identifies a registry event.
type EventType string

const (
	EventToolStart EventType = "tool:start"
	EventToolEnd   EventType = "tool:end"
)

// Event is emitted exactly twice per invocation: once as tool:start before
// the handler runs, once as tool:end after it returns.
type Event struct {
	Type          EventType
	Tool          string
	Args          map[string]interface{}
	Label         string
	DurationMs    int64
	Success       bool
	OutputPreview string
}

// EventHandler receives registry events.
type EventHandler func(Event)

const outputPreviewLimit = 1200

// Registry is an immutable-post-startup map of tool name to handler, with
// a synchronous event bus for observing invocations.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]*ToolDefinition
	locked   bool
	handlers map[EventType][]EventHandler
}

// New creates an empty, unlocked Registry.
func New() *Registry {
	return &Registry{
		tools:    make(map[string]*ToolDefinition),
		handlers: make(map[EventType][]EventHandler),
	}
}

// Register adds a tool definition. Fails once the registry is locked.
func (r *Registry) Register(def ToolDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("toolregistry: tool name cannot be empty")
	}
	if def.Handler == nil {
		return fmt.Errorf("toolregistry: tool %q has no handler", def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.locked {
		return fmt.Errorf("toolregistry: registry is locked, cannot register %q", def.Name)
	}
	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("toolregistry: tool %q already registered", def.Name)
	}

	copied := def
	r.tools[def.Name] = &copied
	return nil
}

// Lock freezes the registry. Calls to Register after Lock fail.
func (r *Registry) Lock() {
	r.mu.Lock()
	r.locked = true
	r.mu.Unlock()
	log.Info().Int("tools", len(r.tools)).Msg("tool registry locked")
}

// GetTool returns the definition for name, or nil if unregistered.
func (r *Registry) GetTool(name string) *ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// ListTools returns every registered definition.
func (r *Registry) ListTools() []*ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}

// On registers handler for eventType.
func (r *Registry) On(eventType EventType, handler EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[eventType] = append(r.handlers[eventType], handler)
}

func (r *Registry) emit(event Event) {
	r.mu.RLock()
	handlers := append([]EventHandler{}, r.handlers[event.Type]...)
	r.mu.RUnlock()
	for _, h := range handlers {
		h(event)
	}
}

func labelFor(def *ToolDefinition, name string, args map[string]interface{}) string {
	if def != nil && def.Label != nil {
		if l := def.Label(args); l != "" {
			return l
		}
	}
	return "Using " + name
}

// Execute runs the named tool, emitting tool:start before and tool:end
// after. Unknown tool names and handler errors are rendered inline into
// the returned string rather than surfaced as Go errors, matching what
// the model is shown as the tool's output.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) string {
	def := r.GetTool(name)
	if def == nil {
		log.Warn().Str("tool", name).Msg("unknown tool requested")
		return fmt.Sprintf("Unknown tool: %s", name)
	}

	label := labelFor(def, name, args)
	r.emit(Event{Type: EventToolStart, Tool: name, Args: args, Label: label})

	start := time.Now()
	output, err := def.Handler(ctx, args)
	duration := time.Since(start)

	if err != nil {
		output = fmt.Sprintf("Error executing %s: %s", name, err.Error())
	}
	success := !strings.HasPrefix(output, "Error")

	preview := output
	if len(preview) > outputPreviewLimit {
		preview = preview[:outputPreviewLimit]
	}

	r.emit(Event{
		Type:          EventToolEnd,
		Tool:          name,
		Args:          args,
		Label:         label,
		DurationMs:    duration.Milliseconds(),
		Success:       success,
		OutputPreview: preview,
	})

	if !success {
		log.Warn().Str("tool", name).Dur("duration", duration).Msg("tool execution failed")
	} else {
		log.Debug().Str("tool", name).Dur("duration", duration).Msg("tool execution completed")
	}

	return output
}

// Specs returns the tool definitions as the provider-agnostic
// map[string]interface{} shape agentloop.LLMRequest.Tools expects:
// {"name", "description", "input_schema": {"type":"object","properties":...,"required":[...]}}.
func (r *Registry) Specs() []interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]interface{}, 0, len(r.tools))
	for _, def := range r.tools {
		properties := map[string]interface{}{}
		required := []string{}
		for _, p := range def.Parameters {
			prop := map[string]interface{}{"type": p.Type, "description": p.Description}
			if p.Default != nil {
				prop["default"] = p.Default
			}
			properties[p.Name] = prop
			if p.Required {
				required = append(required, p.Name)
			}
		}
		specs = append(specs, map[string]interface{}{
			"name":        def.Name,
			"description": def.Description,
			"input_schema": map[string]interface{}{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
		})
	}
	return specs
}
