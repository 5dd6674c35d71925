package reasoning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Tool is one capability the reasoning loop can dispatch to. Schema
// describes the JSON shape Invoke expects its argsJSON parameter to match;
// ToolRegistry validates against it before Invoke ever runs, so
// implementations can assume well-formed input.
type Tool interface {
	Name() string
	Description() string
	Schema() *jsonschema.Schema
	Invoke(ctx context.Context, argsJSON string) (string, error)
}

// ToolCall is one function-call request accumulated from the model's
// streamed response, keyed by the index the provider assigns it (see
// chatstream_openai.go).
type ToolCall struct {
	ID            string
	Name          string
	ArgumentsJSON string
}

// ToolResult is fed back into ConversationHistory as a RoleTool message
// after Dispatch runs.
type ToolResult struct {
	ToolCallID string
	Content    string
	IsError    bool
}

// ToolInvocation pairs one dispatched ToolCall with its ToolResult, in the
// order the model requested it. Loop.Run accumulates these across every
// round of a turn so the caller can keep an ordered log of what was called,
// with what arguments, and what came back (or failed).
type ToolInvocation struct {
	Call   ToolCall
	Result ToolResult
}

// ErrUnknownTool is returned (as the ERROR:-prefixed content of a
// ToolResult, not a Go error to the caller) when the model calls a tool
// name the registry doesn't recognize.
var ErrUnknownTool = errors.New("reasoning: unknown tool")

// ToolRegistry holds every Tool available to the reasoning loop for a
// session and knows how to validate + dispatch a model's ToolCall against
// it.
type ToolRegistry struct {
	tools map[string]Tool
}

// NewToolRegistry returns an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// Register adds t to the registry, keyed by its Name().
func (r *ToolRegistry) Register(t Tool) {
	r.tools[t.Name()] = t
}

// ToolDescriptor is the OpenAI-style {type: function, function: {...}}
// shape the chat model is given so it knows what it can call.
type ToolDescriptor struct {
	Type     string             `json:"type"`
	Function FunctionDescriptor `json:"function"`
}

// FunctionDescriptor is the "function" field of a ToolDescriptor.
type FunctionDescriptor struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

// Descriptors returns the tool list formatted for the chat-completion
// request's "tools" field.
func (r *ToolRegistry) Descriptors() []ToolDescriptor {
	out := make([]ToolDescriptor, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, ToolDescriptor{
			Type: "function",
			Function: FunctionDescriptor{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Schema(),
			},
		})
	}
	return out
}

// Dispatch validates call.ArgumentsJSON against the named tool's schema
// and, if it matches, runs Invoke. A call to an unregistered tool or one
// whose arguments fail validation resolves as an error ToolResult rather
// than a Go error — the spec treats every tool-call failure mode as
// recoverable conversational state, never a turn-ending panic.
func (r *ToolRegistry) Dispatch(ctx context.Context, call ToolCall) ToolResult {
	t, ok := r.tools[call.Name]
	if !ok {
		return ToolResult{
			ToolCallID: call.ID,
			Content:    fmt.Sprintf("ERROR: %v: %s", ErrUnknownTool, call.Name),
			IsError:    true,
		}
	}

	if err := validateArgs(t.Schema(), call.ArgumentsJSON); err != nil {
		return ToolResult{
			ToolCallID: call.ID,
			Content:    fmt.Sprintf("ERROR: invalid arguments for %s: %v", call.Name, err),
			IsError:    true,
		}
	}

	result, err := t.Invoke(ctx, call.ArgumentsJSON)
	if err != nil {
		return ToolResult{
			ToolCallID: call.ID,
			Content:    fmt.Sprintf("ERROR: %v", err),
			IsError:    true,
		}
	}
	return ToolResult{ToolCallID: call.ID, Content: result}
}

func validateArgs(schema *jsonschema.Schema, argsJSON string) error {
	if schema == nil {
		return nil
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("resolving schema: %w", err)
	}
	var instance any
	if argsJSON == "" {
		argsJSON = "{}"
	}
	if err := json.Unmarshal([]byte(argsJSON), &instance); err != nil {
		return fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	return resolved.Validate(instance)
}
