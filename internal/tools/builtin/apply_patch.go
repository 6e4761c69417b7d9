package builtin

import (
	"context"
	"fmt"
	"sync"

	"github.com/sergi/go-diff/diffmatchpatch"

	"sceneforge/internal/logging"
	"sceneforge/internal/ports"
)

// applyPatch maintains the last full scene code per session and applies
// incremental patches against it. Full code replaces the base; a patch
// without a base is a structured failure, never a guess.
type applyPatch struct {
	mu     sync.Mutex
	bases  map[string]string
	dmp    *diffmatchpatch.DiffMatchPatch
	logger logging.Logger
}

// NewApplyPatch creates the patch tool with an empty base cache.
func NewApplyPatch(logger logging.Logger) ports.ToolExecutor {
	return &applyPatch{
		bases:  make(map[string]string),
		dmp:    diffmatchpatch.New(),
		logger: logging.OrNop(logger),
	}
}

func (t *applyPatch) Execute(_ context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	session := call.SessionID
	if session == "" {
		session = stringArg(call.Arguments, "session_id")
	}
	if session == "" {
		session = "default"
	}

	full := stringArg(call.Arguments, "code")
	patch := stringArg(call.Arguments, "patch")

	switch {
	case full != "":
		t.mu.Lock()
		t.bases[session] = full
		t.mu.Unlock()
		t.logger.Debug("apply_patch stored full base for session %s (%d chars)", session, len(full))
		return &ports.ToolResult{
			CallID:  call.ID,
			Content: fmt.Sprintf("Stored full code (%d chars)", len(full)),
			Data:    map[string]any{"code": full, "mode": "full"},
		}, nil

	case patch != "":
		t.mu.Lock()
		base, ok := t.bases[session]
		t.mu.Unlock()
		if !ok {
			return failf(call.ID, "no base code cached for session %s; send full code first", session), nil
		}

		patches, err := t.dmp.PatchFromText(patch)
		if err != nil {
			return failf(call.ID, "invalid patch text: %v", err), nil
		}
		applied, results := t.dmp.PatchApply(patches, base)
		for i, ok := range results {
			if !ok {
				return failf(call.ID, "patch hunk %d failed to apply", i+1), nil
			}
		}

		t.mu.Lock()
		t.bases[session] = applied
		t.mu.Unlock()
		t.logger.Debug("apply_patch applied %d hunk(s) for session %s", len(results), session)
		return &ports.ToolResult{
			CallID:  call.ID,
			Content: fmt.Sprintf("Applied %d patch hunk(s)", len(results)),
			Data:    map[string]any{"code": applied, "mode": "patch", "hunks": len(results)},
		}, nil

	default:
		return failf(call.ID, "apply_patch requires either 'code' or 'patch'"), nil
	}
}

func (t *applyPatch) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        NameApplyPatch,
		Description: "Record full scene code or apply an incremental patch against the session's last full code.",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"code":       {Type: "string", Description: "Full scene code; replaces the session base"},
				"patch":      {Type: "string", Description: "Unified patch text applied to the session base"},
				"session_id": {Type: "string", Description: "Session the base belongs to"},
			},
		},
	}
}

func (t *applyPatch) Metadata() ports.ToolMetadata {
	return ports.ToolMetadata{
		Name: NameApplyPatch, Version: "1.0.0", Category: "code",
	}
}
