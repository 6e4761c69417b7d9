package agent

import (
	"sceneforge/internal/bridge"
	"sceneforge/internal/logging"
	"sceneforge/internal/memory"
	"sceneforge/internal/meshgen"
	"sceneforge/internal/objectstore"
	"sceneforge/internal/observability"
	"sceneforge/internal/parser"
	"sceneforge/internal/ports"
	"sceneforge/internal/toolregistry"
)

// Runtime is the dependency set the engine runs on. Everything arrives
// explicitly at construction; the engine holds no globals. Registry and
// Memory are required, the rest degrade gracefully when absent.
type Runtime struct {
	Registry *toolregistry.Registry
	Memory   *memory.Manager
	// Bridge reaches the renderer; nil means screenshots are never captured.
	Bridge *bridge.Bridge
	// Objects persists scene records; nil skips the terminal persist step.
	Objects *objectstore.Store
	// LLM is the code model used for the direct-fix fallback path.
	LLM ports.LLMClient
	// Poller gates asset generation; nil means generation is never attempted.
	Poller  *meshgen.Poller
	Logger  logging.Logger
	Clock   ports.Clock
	Metrics *observability.Metrics
}

// LintDiagnostic is one renderer-side lint finding handed in with a request.
type LintDiagnostic struct {
	Line     int    `json:"line"`
	Column   int    `json:"column,omitempty"`
	Message  string `json:"message"`
	Severity string `json:"severity,omitempty"`
}

// Request is one refinement turn.
type Request struct {
	SessionID    string                    `json:"session_id"`
	Instruction  string                    `json:"instruction"`
	CurrentCode  string                    `json:"code,omitempty"`
	Screenshot   string                    `json:"screenshot,omitempty"`
	Lint         []LintDiagnostic          `json:"lint,omitempty"`
	SceneObjects []ports.SceneObjectRecord `json:"scene_objects,omitempty"`
	// MaxIterations overrides the engine's iteration budget when positive.
	MaxIterations int `json:"max_iterations,omitempty"`
}

// Result is the artifact of one refinement turn. Code is always well formed:
// even total failure yields at least the minimal scene skeleton.
type Result struct {
	Code       string                 `json:"code"`
	AssetURLs  []string               `json:"asset_urls,omitempty"`
	Suggestion string                 `json:"suggestion,omitempty"`
	Iterations int                    `json:"iterations"`
	Analysis   *parser.VisualAnalysis `json:"analysis,omitempty"`
}
