package builtin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sceneforge/internal/meshgen"
	"sceneforge/internal/ports"
)

// newGenerationServer serves the full happy path of the generation API plus
// the asset URL it hands out.
func newGenerationServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("POST /v1/generations", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "job-1"})
	})
	mux.HandleFunc("GET /v1/generations/job-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "job-1", "status": "done"})
	})
	mux.HandleFunc("GET /v1/generations/job-1/assets", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"assets": []map[string]string{{"url": srv.URL + "/models/out.glb", "format": "glb"}},
		})
	})
	mux.HandleFunc("/models/out.glb", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestGeneratePoller(t *testing.T, baseURL string) *meshgen.Poller {
	t.Helper()
	api, err := meshgen.NewClient(meshgen.ClientConfig{BaseURL: baseURL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	poller, err := meshgen.NewPoller(meshgen.PollerConfig{
		API:          api,
		Validator:    meshgen.NewHeadValidator(meshgen.ValidatorConfig{Timeout: time.Second}),
		PollInterval: time.Millisecond,
		RoundDelay:   time.Millisecond,
		MaxRounds:    2,
	})
	if err != nil {
		t.Fatalf("NewPoller: %v", err)
	}
	return poller
}

func TestGenerateModelReturnsValidatedURL(t *testing.T) {
	t.Parallel()

	srv := newGenerationServer(t)
	tool := NewGenerateModel(newTestGeneratePoller(t, srv.URL), nil)

	result, err := tool.Execute(context.Background(), ports.ToolCall{
		ID:        "call-1",
		Arguments: map[string]any{"prompt": "a detailed dragon"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Failed() {
		t.Fatalf("unexpected failure: %s", result.Content)
	}
	url, _ := result.Data["model_url"].(string)
	if !strings.HasSuffix(url, "/models/out.glb") {
		t.Fatalf("model_url = %q", url)
	}
	if !strings.Contains(result.Content, url) {
		t.Fatalf("content does not carry the URL: %s", result.Content)
	}
	if result.Data["success"] != true {
		t.Fatal("success flag not set")
	}
}

func TestGenerateModelSurfacesPollerFailure(t *testing.T) {
	t.Parallel()

	// A server that always rejects submissions.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	tool := NewGenerateModel(newTestGeneratePoller(t, srv.URL), nil)
	result, err := tool.Execute(context.Background(), ports.ToolCall{
		ID:        "call-1",
		Arguments: map[string]any{"prompt": "a dragon"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Failed() {
		t.Fatal("expected a tool-level failure")
	}
	if !strings.Contains(result.Content, "model generation failed") {
		t.Fatalf("content = %q", result.Content)
	}
	if result.Data["recoverable"] != true {
		t.Fatal("generation failures must stay recoverable")
	}
}

func TestGenerateModelRequiresPromptOrImages(t *testing.T) {
	t.Parallel()

	tool := NewGenerateModel(nil, nil)
	result, err := tool.Execute(context.Background(), ports.ToolCall{ID: "call-1"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Failed() || !strings.Contains(result.Content, "'prompt' or 'image_urls'") {
		t.Fatalf("unexpected result: %s", result.Content)
	}
}
