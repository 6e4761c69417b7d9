package builtin

import (
	"context"
	"strings"
	"testing"

	"github.com/sergi/go-diff/diffmatchpatch"

	"sceneforge/internal/ports"
)

func patchText(t *testing.T, from, to string) string {
	t.Helper()
	dmp := diffmatchpatch.New()
	return dmp.PatchToText(dmp.PatchMake(from, to))
}

func TestApplyPatchStoresFullCode(t *testing.T) {
	t.Parallel()

	tool := NewApplyPatch(nil)
	code := "function setupScene(scene) {\n  scene.add(cube);\n}\n"

	result, err := tool.Execute(context.Background(), ports.ToolCall{
		ID:        "call-1",
		SessionID: "s1",
		Arguments: map[string]any{"code": code},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Failed() {
		t.Fatalf("unexpected failure: %s", result.Content)
	}
	if result.Data["mode"] != "full" {
		t.Fatalf("mode = %v, want full", result.Data["mode"])
	}
	if result.Data["code"] != code {
		t.Fatalf("stored code does not round-trip")
	}
}

func TestApplyPatchAppliesPatchAgainstBase(t *testing.T) {
	t.Parallel()

	tool := NewApplyPatch(nil)
	base := "function setupScene(scene) {\n  const cube = makeCube(0xff0000);\n  scene.add(cube);\n}\n"
	updated := strings.Replace(base, "0xff0000", "0x0000ff", 1)

	if _, err := tool.Execute(context.Background(), ports.ToolCall{
		ID: "c1", SessionID: "s1", Arguments: map[string]any{"code": base},
	}); err != nil {
		t.Fatalf("store base: %v", err)
	}

	result, err := tool.Execute(context.Background(), ports.ToolCall{
		ID:        "c2",
		SessionID: "s1",
		Arguments: map[string]any{"patch": patchText(t, base, updated)},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Failed() {
		t.Fatalf("patch failed: %s", result.Content)
	}
	if result.Data["mode"] != "patch" {
		t.Fatalf("mode = %v, want patch", result.Data["mode"])
	}
	if result.Data["code"] != updated {
		t.Fatalf("patched code = %q, want %q", result.Data["code"], updated)
	}
}

func TestApplyPatchWithoutBaseFails(t *testing.T) {
	t.Parallel()

	tool := NewApplyPatch(nil)
	result, err := tool.Execute(context.Background(), ports.ToolCall{
		ID:        "c1",
		SessionID: "fresh",
		Arguments: map[string]any{"patch": patchText(t, "a", "b")},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Failed() {
		t.Fatal("expected failure without a cached base")
	}
	if !strings.Contains(result.Content, "send full code first") {
		t.Fatalf("unexpected message: %s", result.Content)
	}
}

func TestApplyPatchRejectsGarbagePatchText(t *testing.T) {
	t.Parallel()

	tool := NewApplyPatch(nil)
	if _, err := tool.Execute(context.Background(), ports.ToolCall{
		ID: "c1", SessionID: "s1", Arguments: map[string]any{"code": "base"},
	}); err != nil {
		t.Fatalf("store base: %v", err)
	}

	result, err := tool.Execute(context.Background(), ports.ToolCall{
		ID: "c2", SessionID: "s1", Arguments: map[string]any{"patch": "this is not a patch"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Failed() || !strings.Contains(result.Content, "invalid patch text") {
		t.Fatalf("want invalid-patch failure, got: %s", result.Content)
	}
}

func TestApplyPatchFailedHunkLeavesBaseUntouched(t *testing.T) {
	t.Parallel()

	tool := NewApplyPatch(nil)
	base := strings.Repeat("const light = new THREE.AmbientLight(0x404040);\n", 12)
	unrelated := strings.Repeat("completely different renderer bootstrap code here\n", 12)

	if _, err := tool.Execute(context.Background(), ports.ToolCall{
		ID: "c1", SessionID: "s1", Arguments: map[string]any{"code": base},
	}); err != nil {
		t.Fatalf("store base: %v", err)
	}

	// A patch built from unrelated text finds no anchor in the base.
	bad, err := tool.Execute(context.Background(), ports.ToolCall{
		ID:        "c2",
		SessionID: "s1",
		Arguments: map[string]any{"patch": patchText(t, unrelated, unrelated+"extra line\n")},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !bad.Failed() || !strings.Contains(bad.Content, "failed to apply") {
		t.Fatalf("want failed-hunk result, got: %s", bad.Content)
	}

	// The base survives the failed attempt: a patch made from it still applies.
	updated := strings.Replace(base, "0x404040", "0xffffff", 1)
	good, err := tool.Execute(context.Background(), ports.ToolCall{
		ID:        "c3",
		SessionID: "s1",
		Arguments: map[string]any{"patch": patchText(t, base, updated)},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if good.Failed() {
		t.Fatalf("base was corrupted by the failed patch: %s", good.Content)
	}
	if good.Data["code"] != updated {
		t.Fatal("patched code does not match the expected update")
	}
}

func TestApplyPatchSessionsAreIsolated(t *testing.T) {
	t.Parallel()

	tool := NewApplyPatch(nil)
	if _, err := tool.Execute(context.Background(), ports.ToolCall{
		ID: "c1", SessionID: "a", Arguments: map[string]any{"code": "base"},
	}); err != nil {
		t.Fatalf("store base: %v", err)
	}

	result, err := tool.Execute(context.Background(), ports.ToolCall{
		ID: "c2", SessionID: "b", Arguments: map[string]any{"patch": patchText(t, "base", "edit")},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Failed() {
		t.Fatal("session b must not see session a's base")
	}
}

func TestApplyPatchRequiresCodeOrPatch(t *testing.T) {
	t.Parallel()

	tool := NewApplyPatch(nil)
	result, err := tool.Execute(context.Background(), ports.ToolCall{ID: "c1"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Failed() || !strings.Contains(result.Content, "either 'code' or 'patch'") {
		t.Fatalf("unexpected result: %s", result.Content)
	}
}
