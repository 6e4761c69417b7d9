// Package ports defines the contracts between the refinement loop and its
// collaborators: tools, language models, and time.
package ports

import (
	"context"
	"encoding/json"
	"errors"
)

// ToolExecutor is the single contract every tool implements. The tool set is
// closed: each tool is registered explicitly at startup and dispatched
// through this interface rather than by per-name branching.
type ToolExecutor interface {
	Execute(ctx context.Context, call ToolCall) (*ToolResult, error)
	Definition() ToolDefinition
	Metadata() ToolMetadata
}

// ToolCall is one invocation of a named tool with JSON-shaped arguments.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	SessionID string         `json:"session_id,omitempty"`
}

// ToolResult is the outcome of a tool invocation. Tool-level failures are
// carried in Error with a human-readable Content line; they are normal
// results, not Go errors. Execute returns a Go error only for environment
// failures (missing configuration, cancelled context).
type ToolResult struct {
	CallID  string         `json:"call_id"`
	Content string         `json:"content"`
	Data    map[string]any `json:"data,omitempty"`
	Error   error          `json:"-"`
}

// Failed reports whether the result carries a tool-level failure.
func (r *ToolResult) Failed() bool {
	return r != nil && r.Error != nil
}

type toolResultJSON struct {
	CallID  string         `json:"call_id"`
	Content string         `json:"content"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// MarshalJSON flattens the error into a string so results survive
// serialization into caches, logs, and HTTP responses.
func (r ToolResult) MarshalJSON() ([]byte, error) {
	out := toolResultJSON{CallID: r.CallID, Content: r.Content, Data: r.Data}
	if r.Error != nil {
		out.Error = r.Error.Error()
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a flattened error as an opaque error value.
func (r *ToolResult) UnmarshalJSON(data []byte) error {
	var in toolResultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.CallID = in.CallID
	r.Content = in.Content
	r.Data = in.Data
	if in.Error != "" {
		r.Error = errors.New(in.Error)
	} else {
		r.Error = nil
	}
	return nil
}

// ToolDefinition describes a tool to callers and to the HTTP surface.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  ParameterSchema `json:"parameters"`
}

// ParameterSchema is the minimal JSON-schema subset tools declare.
type ParameterSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

// Property describes a single tool argument.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Items       *Property `json:"items,omitempty"`
}

// ToolMetadata carries registry bookkeeping for a tool.
type ToolMetadata struct {
	Name     string   `json:"name"`
	Version  string   `json:"version"`
	Category string   `json:"category"`
	Tags     []string `json:"tags,omitempty"`
}
