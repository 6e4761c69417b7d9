package builtin

import (
	"context"
	"fmt"
	"strings"

	"sceneforge/internal/logging"
	"sceneforge/internal/parser"
	"sceneforge/internal/ports"
)

const fixCodeSystemPrompt = `You are a Three.js scene developer. You receive an
instruction, optionally the current scene code, and working context. Rewrite
the scene code so it satisfies the instruction.

Rules:
- Reply with only JavaScript code, no prose and no markdown fences.
- The code must define function setupScene(scene) as the entry point.
- When the context lists generated model URLs, load those exact URLs instead
  of inventing new ones, and keep their // MODEL_URL: markers.`

// fixCode asks the code model for a new version of the scene code and
// normalizes whatever comes back.
type fixCode struct {
	llm    ports.LLMClient
	logger logging.Logger
}

// NewFixCode creates the code-fix tool on top of the text model.
func NewFixCode(llm ports.LLMClient, logger logging.Logger) ports.ToolExecutor {
	return &fixCode{llm: llm, logger: logging.OrNop(logger)}
}

func (t *fixCode) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	instruction := strings.TrimSpace(stringArg(call.Arguments, "instruction"))
	if instruction == "" {
		return failf(call.ID, "fix_code requires a non-empty 'instruction'"), nil
	}
	code := stringArg(call.Arguments, "code")
	contextBlock := strings.TrimSpace(stringArg(call.Arguments, "context"))
	assetURLs := stringSliceArg(call.Arguments, "asset_urls")

	var b strings.Builder
	fmt.Fprintf(&b, "Instruction: %s\n", instruction)
	if contextBlock != "" {
		fmt.Fprintf(&b, "\nContext:\n%s\n", contextBlock)
	}
	if len(assetURLs) > 0 {
		b.WriteString("\nGenerated model URLs to reuse:\n")
		for _, url := range assetURLs {
			fmt.Fprintf(&b, "- %s\n", url)
		}
	}
	if strings.TrimSpace(code) != "" {
		fmt.Fprintf(&b, "\nCurrent code:\n%s\n", code)
	}

	resp, err := t.llm.Complete(ctx, ports.CompletionRequest{
		Messages: []ports.Message{
			{Role: ports.RoleSystem, Content: fixCodeSystemPrompt},
			{Role: ports.RoleUser, Content: b.String()},
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return failf(call.ID, "code model failed: %v", err), nil
	}

	cleaned := parser.CleanCode(resp.Content)
	urls := parser.ExtractAssetURLs(cleaned)
	if urls.Primary == "" && len(assetURLs) > 0 {
		// The model dropped the asset reference; pin it back in.
		cleaned = parser.EnsureModelMarker(cleaned, assetURLs[0])
		urls = parser.ExtractAssetURLs(cleaned)
	}

	t.logger.Debug("fix_code produced %d chars, %d asset URL(s)", len(cleaned), len(urls.All))
	return &ports.ToolResult{
		CallID:  call.ID,
		Content: cleaned,
		Data: map[string]any{
			"code":              cleaned,
			"asset_urls":        urls.All,
			"primary_asset_url": urls.Primary,
		},
	}, nil
}

func (t *fixCode) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        NameFixCode,
		Description: "Rewrite the Three.js scene code to satisfy an instruction.",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"instruction": {Type: "string", Description: "What the scene should become"},
				"code":        {Type: "string", Description: "Current scene code, if any"},
				"context":     {Type: "string", Description: "Working context: memory digest, lint, analysis"},
				"asset_urls": {
					Type:        "array",
					Description: "Already generated model URLs the code must reuse",
					Items:       &ports.Property{Type: "string"},
				},
			},
			Required: []string{"instruction"},
		},
	}
}

func (t *fixCode) Metadata() ports.ToolMetadata {
	return ports.ToolMetadata{
		Name: NameFixCode, Version: "1.0.0", Category: "code",
	}
}
