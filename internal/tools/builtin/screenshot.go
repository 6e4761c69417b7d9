package builtin

import (
	"context"

	"sceneforge/internal/bridge"
	"sceneforge/internal/ports"
)

// captureScreenshot asks the connected renderer for a fresh frame.
type captureScreenshot struct {
	bridge *bridge.Bridge
}

// NewCaptureScreenshot creates the renderer capture tool.
func NewCaptureScreenshot(b *bridge.Bridge) ports.ToolExecutor {
	return &captureScreenshot{bridge: b}
}

func (t *captureScreenshot) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	image, err := t.bridge.RequestScreenshot(ctx)
	if err != nil {
		return nil, err
	}
	if image == "" {
		return &ports.ToolResult{
			CallID:  call.ID,
			Content: "No renderer client connected or capture timed out; continuing without a screenshot",
			Data:    map[string]any{"available": false},
		}, nil
	}
	return &ports.ToolResult{
		CallID:  call.ID,
		Content: "Captured renderer screenshot",
		Data:    map[string]any{"available": true, "screenshot": image},
	}, nil
}

func (t *captureScreenshot) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        NameCaptureScreenshot,
		Description: "Capture the current frame from the connected renderer, if any.",
		Parameters: ports.ParameterSchema{
			Type:       "object",
			Properties: map[string]ports.Property{},
		},
	}
}

func (t *captureScreenshot) Metadata() ports.ToolMetadata {
	return ports.ToolMetadata{
		Name: NameCaptureScreenshot, Version: "1.0.0", Category: "scene",
	}
}
