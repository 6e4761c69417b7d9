package builtin

import (
	"fmt"

	"sceneforge/internal/bridge"
	"sceneforge/internal/logging"
	"sceneforge/internal/meshgen"
	"sceneforge/internal/objectstore"
	"sceneforge/internal/ports"
	"sceneforge/internal/toolregistry"
)

// Deps carries the shared services the builtin tools are wired to.
type Deps struct {
	// LLM answers code-fix prompts. Required.
	LLM ports.LLMClient
	// Vision answers screenshot-analysis prompts. Required.
	Vision ports.LLMClient
	// Poller drives 3D asset generation. Nil skips generate_3d_model.
	Poller *meshgen.Poller
	// Bridge reaches the renderer client. Nil skips capture_screenshot.
	Bridge *bridge.Bridge
	// Objects persists scene records. Required.
	Objects *objectstore.Store
	// Logger is shared by tools that log. Nil means silent.
	Logger logging.Logger
}

// Register wires the builtin tool set into reg. Tools whose optional
// dependency is absent are left unregistered rather than registered broken.
func Register(reg *toolregistry.Registry, deps Deps) error {
	if deps.LLM == nil {
		return fmt.Errorf("builtin tools: LLM client is required")
	}
	if deps.Vision == nil {
		return fmt.Errorf("builtin tools: vision client is required")
	}
	if deps.Objects == nil {
		return fmt.Errorf("builtin tools: object store is required")
	}

	tools := []ports.ToolExecutor{
		NewFixCode(deps.LLM, deps.Logger),
		NewApplyPatch(deps.Logger),
		NewAnalyzeScreenshot(deps.Vision, deps.Logger),
		NewStoreObjects(deps.Objects, deps.Logger),
		NewRetrieveObjects(deps.Objects),
	}
	if deps.Poller != nil {
		tools = append(tools, NewGenerateModel(deps.Poller, deps.Logger))
	}
	if deps.Bridge != nil {
		tools = append(tools, NewCaptureScreenshot(deps.Bridge))
	}

	for _, tool := range tools {
		if err := reg.Register(tool); err != nil {
			return fmt.Errorf("register %s: %w", tool.Metadata().Name, err)
		}
	}
	return nil
}
