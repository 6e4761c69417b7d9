package builtin

import (
	"context"
	"errors"
	"strings"

	"sceneforge/internal/logging"
	"sceneforge/internal/meshgen"
	"sceneforge/internal/ports"
)

// generateModel drives the external 3D generation pipeline. The poller folds
// every failure into a recoverable result; this tool surfaces it as a
// tool-level failure with the structured details kept in Data.
type generateModel struct {
	poller *meshgen.Poller
	logger logging.Logger
}

// NewGenerateModel creates the asset generation tool.
func NewGenerateModel(poller *meshgen.Poller, logger logging.Logger) ports.ToolExecutor {
	return &generateModel{poller: poller, logger: logging.OrNop(logger)}
}

func (t *generateModel) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	prompt := strings.TrimSpace(stringArg(call.Arguments, "prompt"))
	imageURLs := stringSliceArg(call.Arguments, "image_urls")
	if prompt == "" && len(imageURLs) == 0 {
		return failf(call.ID, "generate_3d_model requires 'prompt' or 'image_urls'"), nil
	}

	result := t.poller.Generate(ctx, meshgen.GenerationInput{
		Prompt:    prompt,
		ImageURLs: imageURLs,
		MeshMode:  stringArg(call.Arguments, "mesh_mode"),
		Quality:   stringArg(call.Arguments, "quality"),
		Material:  stringArg(call.Arguments, "material"),
	})

	data := map[string]any{
		"success":     result.Success,
		"request_id":  result.RequestID,
		"model_url":   result.ModelURL,
		"model_urls":  result.ModelURLs,
		"recoverable": result.Recoverable,
	}
	if !result.Success {
		data["error"] = result.Error
		return &ports.ToolResult{
			CallID:  call.ID,
			Content: "model generation failed: " + result.Error,
			Data:    data,
			Error:   errors.New(result.Error),
		}, nil
	}

	return &ports.ToolResult{
		CallID:  call.ID,
		Content: "Generated 3D model: " + result.ModelURL,
		Data:    data,
	}, nil
}

func (t *generateModel) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        NameGenerateModel,
		Description: "Generate a 3D model asset from a prompt or reference images and return its validated URL.",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"prompt": {Type: "string", Description: "Text description of the model"},
				"image_urls": {
					Type:        "array",
					Description: "Reference image URLs",
					Items:       &ports.Property{Type: "string"},
				},
				"mesh_mode": {Type: "string", Description: "Mesh topology", Enum: []string{meshgen.MeshModeTriangle, meshgen.MeshModeQuad}},
				"quality":   {Type: "string", Description: "Generation quality", Enum: []string{meshgen.QualityLow, meshgen.QualityMedium, meshgen.QualityHigh}},
				"material":  {Type: "string", Description: "Material style", Enum: []string{meshgen.MaterialPBR, meshgen.MaterialShaded, meshgen.MaterialUnlit}},
			},
		},
	}
}

func (t *generateModel) Metadata() ports.ToolMetadata {
	return ports.ToolMetadata{
		Name: NameGenerateModel, Version: "1.0.0", Category: "asset",
		Tags: []string{"slow", "external"},
	}
}
