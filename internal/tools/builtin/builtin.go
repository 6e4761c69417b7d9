// Package builtin provides the closed tool set of the refinement loop. Every
// tool is registered explicitly at startup; the loop never dispatches on a
// name the registry does not know.
package builtin

import (
	"errors"
	"fmt"

	"sceneforge/internal/ports"
)

// Tool names as registered.
const (
	NameFixCode           = "fix_code"
	NameApplyPatch        = "apply_patch"
	NameAnalyzeScreenshot = "analyze_screenshot"
	NameGenerateModel     = "generate_3d_model"
	NameStoreObjects      = "store_scene_objects"
	NameRetrieveObjects   = "retrieve_scene_objects"
	NameCaptureScreenshot = "capture_screenshot"
)

// failf builds a tool-level failure result: Error set, Content carrying the
// same human-readable line.
func failf(callID, format string, args ...any) *ports.ToolResult {
	msg := fmt.Sprintf(format, args...)
	return &ports.ToolResult{CallID: callID, Content: msg, Error: errors.New(msg)}
}

func stringArg(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	s, _ := args[key].(string)
	return s
}

func stringSliceArg(args map[string]any, key string) []string {
	if args == nil {
		return nil
	}
	switch v := args[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func intArg(args map[string]any, key string, fallback int) int {
	if args == nil {
		return fallback
	}
	switch v := args[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return fallback
	}
}
