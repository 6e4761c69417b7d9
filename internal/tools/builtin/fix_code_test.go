package builtin

import (
	"context"
	"errors"
	"strings"
	"testing"

	"sceneforge/internal/llm"
	"sceneforge/internal/ports"
)

func TestFixCodeNormalizesModelReply(t *testing.T) {
	t.Parallel()

	mock := llm.NewMockClient("code-model").Enqueue(
		"```javascript\nfunction setupScene(scene) {\n  scene.add(new THREE.Mesh());\n}\n```",
	)
	tool := NewFixCode(mock, nil)

	result, err := tool.Execute(context.Background(), ports.ToolCall{
		ID:        "call-1",
		Arguments: map[string]any{"instruction": "add a mesh"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Failed() {
		t.Fatalf("unexpected failure: %s", result.Content)
	}
	code, _ := result.Data["code"].(string)
	if strings.Contains(code, "```") {
		t.Fatalf("fences survived normalization: %q", code)
	}
	if !strings.Contains(code, "function setupScene(scene)") {
		t.Fatalf("entry point missing from %q", code)
	}

	reqs := mock.Requests()
	if len(reqs) != 1 {
		t.Fatalf("Complete called %d times, want 1", len(reqs))
	}
	if reqs[0].Messages[0].Role != ports.RoleSystem {
		t.Fatal("first message must be the system prompt")
	}
	if !strings.Contains(reqs[0].Messages[1].Content, "add a mesh") {
		t.Fatal("instruction missing from the user message")
	}
}

func TestFixCodePromptCarriesContextAndCode(t *testing.T) {
	t.Parallel()

	mock := llm.NewMockClient("code-model").Enqueue("function setupScene(scene) {}")
	tool := NewFixCode(mock, nil)

	if _, err := tool.Execute(context.Background(), ports.ToolCall{
		ID: "call-1",
		Arguments: map[string]any{
			"instruction": "make the cube spin",
			"context":     "previous analysis: cube is static",
			"code":        "function setupScene(scene) { /* old */ }",
		},
	}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	user := mock.Requests()[0].Messages[1].Content
	if !strings.Contains(user, "Context:\nprevious analysis: cube is static") {
		t.Fatalf("context block missing from prompt:\n%s", user)
	}
	if !strings.Contains(user, "Current code:") || !strings.Contains(user, "/* old */") {
		t.Fatalf("current code missing from prompt:\n%s", user)
	}
}

func TestFixCodeReembedsDroppedAssetURL(t *testing.T) {
	t.Parallel()

	// The model reply forgets the generated asset entirely.
	mock := llm.NewMockClient("code-model").Enqueue("function setupScene(scene) {\n  scene.add(cube);\n}")
	tool := NewFixCode(mock, nil)
	url := "https://cdn.example.com/models/dragon.glb"

	result, err := tool.Execute(context.Background(), ports.ToolCall{
		ID: "call-1",
		Arguments: map[string]any{
			"instruction": "load the dragon",
			"asset_urls":  []any{url},
		},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Failed() {
		t.Fatalf("unexpected failure: %s", result.Content)
	}
	if got := result.Data["primary_asset_url"]; got != url {
		t.Fatalf("primary_asset_url = %v, want %s", got, url)
	}
	code, _ := result.Data["code"].(string)
	if !strings.Contains(code, "MODEL_URL: "+url) {
		t.Fatalf("asset marker not re-embedded:\n%s", code)
	}
}

func TestFixCodeKeepsModelProvidedMarker(t *testing.T) {
	t.Parallel()

	url := "https://cdn.example.com/models/dragon.glb"
	mock := llm.NewMockClient("code-model").Enqueue(
		"// MODEL_URL: " + url + "\nfunction setupScene(scene) {\n  loadModel('" + url + "');\n}",
	)
	tool := NewFixCode(mock, nil)

	result, err := tool.Execute(context.Background(), ports.ToolCall{
		ID: "call-1",
		Arguments: map[string]any{
			"instruction": "load the dragon",
			"asset_urls":  []string{url},
		},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := result.Data["primary_asset_url"]; got != url {
		t.Fatalf("primary_asset_url = %v, want %s", got, url)
	}
	code, _ := result.Data["code"].(string)
	if strings.Count(code, "// MODEL_URL: "+url) != 1 {
		t.Fatalf("marker duplicated or lost:\n%s", code)
	}
}

func TestFixCodeRequiresInstruction(t *testing.T) {
	t.Parallel()

	tool := NewFixCode(llm.NewMockClient("code-model"), nil)
	result, err := tool.Execute(context.Background(), ports.ToolCall{ID: "call-1"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Failed() || !strings.Contains(result.Content, "instruction") {
		t.Fatalf("unexpected result: %s", result.Content)
	}
}

func TestFixCodeReportsModelFailureAsToolError(t *testing.T) {
	t.Parallel()

	mock := llm.NewMockClient("code-model")
	mock.SetHandler(func(ports.CompletionRequest) (*ports.CompletionResponse, error) {
		return nil, errors.New("upstream is on fire")
	})
	tool := NewFixCode(mock, nil)

	result, err := tool.Execute(context.Background(), ports.ToolCall{
		ID:        "call-1",
		Arguments: map[string]any{"instruction": "add a cube"},
	})
	if err != nil {
		t.Fatalf("environment error for a tool-level failure: %v", err)
	}
	if !result.Failed() || !strings.Contains(result.Content, "code model failed") {
		t.Fatalf("unexpected result: %s", result.Content)
	}
}

func TestFixCodeCancelledContextIsEnvironmentError(t *testing.T) {
	t.Parallel()

	mock := llm.NewMockClient("code-model")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tool := NewFixCode(mock, nil)
	_, err := tool.Execute(ctx, ports.ToolCall{
		ID:        "call-1",
		Arguments: map[string]any{"instruction": "add a cube"},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
