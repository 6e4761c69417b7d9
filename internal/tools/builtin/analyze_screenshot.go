package builtin

import (
	"context"
	"fmt"
	"strings"

	"sceneforge/internal/logging"
	"sceneforge/internal/parser"
	"sceneforge/internal/ports"
)

const analyzeSystemPrompt = `You judge rendered Three.js scenes against an
instruction. Look at the screenshot and answer with one JSON object:
{"matches_requirement": bool, "needs_improvement": bool, "suggestions": "what
to change, concretely"}. No prose outside the JSON.`

// analyzeScreenshot sends a screenshot to the vision model and parses the
// structured verdict. An unparseable reply degrades to a needs-improvement
// verdict carrying the raw text, so the loop always has something to act on.
type analyzeScreenshot struct {
	vision ports.LLMClient
	logger logging.Logger
}

// NewAnalyzeScreenshot creates the vision analysis tool.
func NewAnalyzeScreenshot(vision ports.LLMClient, logger logging.Logger) ports.ToolExecutor {
	return &analyzeScreenshot{vision: vision, logger: logging.OrNop(logger)}
}

func (t *analyzeScreenshot) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	instruction := strings.TrimSpace(stringArg(call.Arguments, "instruction"))
	if instruction == "" {
		return failf(call.ID, "analyze_screenshot requires a non-empty 'instruction'"), nil
	}
	screenshot := strings.TrimSpace(stringArg(call.Arguments, "screenshot"))
	if screenshot == "" {
		return failf(call.ID, "analyze_screenshot requires a 'screenshot'"), nil
	}
	if !strings.HasPrefix(screenshot, "data:") && !strings.HasPrefix(screenshot, "http") {
		screenshot = "data:image/png;base64," + screenshot
	}

	resp, err := t.vision.Complete(ctx, ports.CompletionRequest{
		Messages: []ports.Message{
			{Role: ports.RoleSystem, Content: analyzeSystemPrompt},
			{
				Role:    ports.RoleUser,
				Content: fmt.Sprintf("Instruction: %s\nDoes the rendered scene satisfy it?", instruction),
				Images:  []string{screenshot},
			},
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return failf(call.ID, "vision model failed: %v", err), nil
	}

	analysis, parseErr := parser.ParseAnalysis(resp.Content)
	if parseErr != nil {
		t.logger.Warn("analyze_screenshot: unstructured reply, treating as needs-improvement: %v", parseErr)
		analysis = &parser.VisualAnalysis{
			NeedsImprovement: true,
			Suggestions:      trimSuggestion(resp.Content),
		}
	}

	content := "Scene matches the instruction."
	if !analysis.MatchesRequirement {
		content = "Scene needs improvement: " + analysis.Suggestions
	}
	return &ports.ToolResult{
		CallID:  call.ID,
		Content: content,
		Data: map[string]any{
			"matches_requirement": analysis.MatchesRequirement,
			"needs_improvement":   analysis.NeedsImprovement,
			"suggestions":         analysis.Suggestions,
		},
	}, nil
}

func trimSuggestion(raw string) string {
	s := strings.TrimSpace(raw)
	if len(s) > 400 {
		s = s[:400] + "..."
	}
	return s
}

func (t *analyzeScreenshot) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        NameAnalyzeScreenshot,
		Description: "Judge a rendered screenshot against the instruction and report what to change.",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"instruction": {Type: "string", Description: "What the scene should show"},
				"screenshot":  {Type: "string", Description: "Base64 data URL (or raw base64) of the render"},
			},
			Required: []string{"instruction", "screenshot"},
		},
	}
}

func (t *analyzeScreenshot) Metadata() ports.ToolMetadata {
	return ports.ToolMetadata{
		Name: NameAnalyzeScreenshot, Version: "1.0.0", Category: "vision",
	}
}
