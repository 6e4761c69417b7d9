package server

import (
	"sceneforge/internal/agent"
	"sceneforge/internal/ports"
)

// APIResponse is the uniform JSON envelope for every REST endpoint.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RefineRequest is the body of POST /api/sessions/:id/refine. The session
// id travels in the path, everything else here.
type RefineRequest struct {
	Instruction   string                    `json:"instruction"`
	Code          string                    `json:"code,omitempty"`
	Screenshot    string                    `json:"screenshot,omitempty"`
	Lint          []agent.LintDiagnostic    `json:"lint,omitempty"`
	SceneObjects  []ports.SceneObjectRecord `json:"sceneObjects,omitempty"`
	MaxIterations int                       `json:"max_iterations,omitempty"`
}

// RefineResponse wraps the engine artifact with its session id.
type RefineResponse struct {
	SessionID string        `json:"session_id"`
	Result    *agent.Result `json:"result"`
}

// HealthStatus summarises component availability for GET /api/health.
type HealthStatus struct {
	Status        string          `json:"status"`
	Uptime        string          `json:"uptime"`
	Version       string          `json:"version,omitempty"`
	BridgeClients int             `json:"bridge_clients"`
	Components    map[string]bool `json:"components"`
}
