package parser

import (
	"strings"
	"testing"
)

func TestCleanCodePassesThroughCleanCode(t *testing.T) {
	code := "function setupScene(scene) {\n  const cube = new THREE.Mesh(geo, mat);\n  scene.add(cube);\n}"
	if got := CleanCode(code); got != code {
		t.Fatalf("clean code was modified:\n%s", got)
	}
}

func TestCleanCodeStripsMarkdownFences(t *testing.T) {
	raw := "Here is the updated scene:\n```javascript\nfunction setupScene(scene) {\n  scene.add(new THREE.GridHelper(10, 10));\n}\n```\nLet me know if you need changes."
	got := CleanCode(raw)
	if strings.Contains(got, "```") {
		t.Fatalf("fences survived: %q", got)
	}
	if strings.Contains(got, "Here is") || strings.Contains(got, "Let me know") {
		t.Fatalf("prose survived: %q", got)
	}
	if !strings.Contains(got, "GridHelper") {
		t.Fatalf("code body lost: %q", got)
	}
}

func TestCleanCodePrefersLargestFencedBlock(t *testing.T) {
	raw := "```js\nconst x = 1;\n```\nexplanation\n```js\nfunction setupScene(scene) {\n  const big = new THREE.Mesh(a, b);\n  scene.add(big);\n  big.rotation.y += 0.01;\n}\n```"
	got := CleanCode(raw)
	if !strings.Contains(got, "big.rotation.y") {
		t.Fatalf("largest block not chosen: %q", got)
	}
	if strings.Contains(got, "const x = 1") {
		t.Fatalf("small block chosen: %q", got)
	}
}

func TestCleanCodeUnwrapsHTMLPage(t *testing.T) {
	raw := "<!DOCTYPE html><html><head><title>t</title></head><body>\n<script>\nfunction setupScene(scene) {\n  scene.add(new THREE.AxesHelper(5));\n}\n</script>\n</body></html>"
	got := CleanCode(raw)
	if strings.Contains(got, "<script") || strings.Contains(got, "<html") {
		t.Fatalf("html survived: %q", got)
	}
	if !strings.Contains(got, "AxesHelper") {
		t.Fatalf("script body lost: %q", got)
	}
}

func TestCleanCodeWrapsBareStatements(t *testing.T) {
	raw := "const cube = new THREE.Mesh(new THREE.BoxGeometry(), new THREE.MeshStandardMaterial());\nscene.add(cube);"
	got := CleanCode(raw)
	if !strings.Contains(got, "function setupScene(scene)") {
		t.Fatalf("entry function missing: %q", got)
	}
	if !strings.Contains(got, "scene.add(cube)") {
		t.Fatalf("original statements lost: %q", got)
	}
}

func TestCleanCodeFallsBackToSkeletonOnProse(t *testing.T) {
	got := CleanCode("I'm sorry, I cannot help with that request.")
	if got != FallbackSkeleton {
		t.Fatalf("expected skeleton, got: %q", got)
	}
	if CleanCode("") != FallbackSkeleton {
		t.Fatalf("empty input should yield skeleton")
	}
}

func TestCleanCodeIdempotent(t *testing.T) {
	inputs := []string{
		"plain prose with no code at all",
		"```js\nfunction setupScene(scene) { scene.add(x); }\n```",
		"<html><script>const a = 1;\nscene.add(a);</script></html>",
		"const y = 2;\nscene.add(y);",
		FallbackSkeleton,
		"",
	}
	for _, input := range inputs {
		once := CleanCode(input)
		twice := CleanCode(once)
		if once != twice {
			t.Fatalf("not idempotent for %q:\nfirst:  %q\nsecond: %q", input, once, twice)
		}
	}
}

func TestExtractAssetURLsMarkerIsPrimary(t *testing.T) {
	code := "// MODEL_URL: https://assets.example.com/models/dragon.glb\nfunction setupScene(scene) {\n  loader.load('https://cdn.example.com/rock.glb', onLoad);\n}"
	got := ExtractAssetURLs(code)
	if got.Primary != "https://assets.example.com/models/dragon.glb" {
		t.Fatalf("primary = %q", got.Primary)
	}
	if len(got.All) != 2 {
		t.Fatalf("urls = %v", got.All)
	}
	if got.All[1] != "https://cdn.example.com/rock.glb" {
		t.Fatalf("literal scan order wrong: %v", got.All)
	}
}

func TestExtractAssetURLsRoundTrip(t *testing.T) {
	url := "https://assets.example.com/m/castle.glb?sig=abc123"
	code := EnsureModelMarker("function setupScene(scene) {}", url)
	got := ExtractAssetURLs(code)
	if got.Primary != url {
		t.Fatalf("round-trip lost url: %q != %q", got.Primary, url)
	}
}

func TestExtractAssetURLsDeduplicates(t *testing.T) {
	code := "// MODEL_URL: https://a.example.com/x.glb\nload('https://a.example.com/x.glb');\nload('https://b.example.com/y.obj');\nload('https://b.example.com/y.obj');"
	got := ExtractAssetURLs(code)
	if len(got.All) != 2 {
		t.Fatalf("expected 2 unique urls, got %v", got.All)
	}
	if got.All[0] != "https://a.example.com/x.glb" || got.All[1] != "https://b.example.com/y.obj" {
		t.Fatalf("order not first-seen: %v", got.All)
	}
}

func TestExtractAssetURLsEmpty(t *testing.T) {
	got := ExtractAssetURLs("function setupScene(scene) { /* nothing */ }")
	if got.Primary != "" || len(got.All) != 0 {
		t.Fatalf("expected empty result, got %+v", got)
	}
}

func TestEnsureModelMarkerIdempotent(t *testing.T) {
	url := "https://assets.example.com/m/tree.glb"
	code := "function setupScene(scene) {}"
	once := EnsureModelMarker(code, url)
	twice := EnsureModelMarker(once, url)
	if once != twice {
		t.Fatalf("marker duplicated:\n%s", twice)
	}
	if EnsureModelMarker(code, "") != code {
		t.Fatalf("empty url should be a no-op")
	}
}

func TestParseAnalysisWellFormed(t *testing.T) {
	raw := "```json\n{\"matches_requirement\": false, \"needs_improvement\": true, \"suggestions\": \"make the cube red\"}\n```"
	got, err := ParseAnalysis(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.MatchesRequirement || !got.NeedsImprovement {
		t.Fatalf("flags wrong: %+v", got)
	}
	if got.Suggestions != "make the cube red" {
		t.Fatalf("suggestions = %q", got.Suggestions)
	}
}

func TestParseAnalysisRepairsMalformedJSON(t *testing.T) {
	raw := "Result: {matches_requirement: true, needs_improvement: false, suggestions: 'looks good',}"
	got, err := ParseAnalysis(raw)
	if err != nil {
		t.Fatalf("repair failed: %v", err)
	}
	if !got.MatchesRequirement {
		t.Fatalf("flags wrong after repair: %+v", got)
	}
}

func TestParseAnalysisSuggestionArray(t *testing.T) {
	raw := `{"matches_requirement": false, "needs_improvement": true, "suggestions": ["add light", "center camera"]}`
	got, err := ParseAnalysis(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Suggestions != "add light; center camera" {
		t.Fatalf("suggestions = %q", got.Suggestions)
	}
}

func TestParseAnalysisRejectsProse(t *testing.T) {
	if _, err := ParseAnalysis("the screenshot looks fine to me"); err == nil {
		t.Fatalf("expected error for non-JSON reply")
	}
}
