package memory

import (
	"time"

	"sceneforge/internal/ports"
)

const (
	maxModelHistory = 5
	maxSceneHistory = 5
)

// ModelHistoryEntry records one successful asset generation, kept so later
// turns reuse the URL instead of regenerating the asset.
type ModelHistoryEntry struct {
	ModelURL  string    `json:"model_url"`
	Prompt    string    `json:"prompt"`
	Timestamp time.Time `json:"timestamp"`
}

// SceneHistoryEntry records one scene snapshot hand-off from the rendering
// client.
type SceneHistoryEntry struct {
	Prompt      string    `json:"prompt"`
	ObjectCount int       `json:"object_count"`
	Timestamp   time.Time `json:"timestamp"`
}

// CodeState is the code window payload: a compact digest of the last known
// code plus context the code-fix prompt reuses. Raw code blobs never go in
// here — only the digest.
type CodeState struct {
	Instruction  string              `json:"instruction,omitempty"`
	Digest       string              `json:"digest,omitempty"`
	Analysis     string              `json:"analysis,omitempty"`
	ModelHistory []ModelHistoryEntry `json:"model_history,omitempty"`
}

// SceneState is the scene window payload: the last reported object snapshot
// plus a bounded history of snapshot hand-offs.
type SceneState struct {
	Prompt  string                    `json:"prompt,omitempty"`
	Objects []ports.SceneObjectRecord `json:"objects,omitempty"`
	History []SceneHistoryEntry       `json:"history,omitempty"`
}

// SessionMemory is the persisted form of one session's windows.
type SessionMemory struct {
	SessionID string              `json:"session_id"`
	Code      []Entry[CodeState]  `json:"code,omitempty"`
	Scene     []Entry[SceneState] `json:"scene,omitempty"`
	UpdatedAt time.Time           `json:"updated_at"`
}
