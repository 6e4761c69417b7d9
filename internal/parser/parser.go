// Package parser is the pure text-normalization layer between free-form
// model output and the orchestration loop. Model replies arrive as prose,
// markdown, HTML pages, or bare code in no guaranteed format; everything here
// is stateless string work with documented fallbacks, kept isolated from the
// loop so the heuristics stay testable on their own.
package parser

import (
	"regexp"
	"strings"
)

// EntryFunction is the minimal functional contract every cleaned artifact
// satisfies: a top-level setupScene(scene) the preview host can call.
const EntryFunction = "setupScene"

// FallbackSkeleton is returned when a model reply contains nothing usable.
const FallbackSkeleton = `// Generation produced no usable code; placeholder scene kept renderable.
function setupScene(scene) {
  const light = new THREE.AmbientLight(0xffffff, 0.8);
  scene.add(light);
}`

var (
	fencePattern     = regexp.MustCompile("(?s)```[a-zA-Z0-9]*[ \t]*\r?\n(.*?)```")
	scriptPattern    = regexp.MustCompile(`(?is)<script[^>]*>(.*?)</script>`)
	scriptOpenOnly   = regexp.MustCompile(`(?is)<script[^>]*>`)
	entryPattern     = regexp.MustCompile(`(?m)function\s+setupScene\s*\(|setupScene\s*=\s*(?:async\s+)?(?:function\b|\()`)
	danglingBacktick = regexp.MustCompile("(?m)^```[a-zA-Z0-9]*[ \t]*$")
)

// codeTokens mark text as recognizable scene code. Deliberately coarse: the
// goal is to distinguish code from prose, not to parse JavaScript.
var codeTokens = []string{
	"function ",
	"=>",
	"const ",
	"let ",
	"var ",
	"new THREE.",
	"scene.add",
	"return ",
	"class ",
}

// CleanCode extracts a well-formed scene script from a raw model reply.
// Order of operations: unwrap an HTML page down to its script body, unwrap
// markdown fences (largest block wins when several exist), then enforce the
// entry-function contract — wrapping recognizable code that lacks it, and
// substituting FallbackSkeleton when no code was found at all. The function
// is idempotent: cleaning already-clean code changes nothing.
func CleanCode(raw string) string {
	code := strings.TrimSpace(raw)
	code = stripHTMLWrapper(code)
	code = stripFences(code)
	code = strings.TrimSpace(danglingBacktick.ReplaceAllString(code, ""))

	if !LooksLikeCode(code) {
		return FallbackSkeleton
	}
	if !definesEntry(code) {
		return wrapInEntry(code)
	}
	return code
}

// LooksLikeCode reports whether text carries any recognizable code token.
func LooksLikeCode(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	for _, tok := range codeTokens {
		if strings.Contains(text, tok) {
			return true
		}
	}
	return false
}

func stripHTMLWrapper(text string) string {
	lower := strings.ToLower(text)
	if !strings.Contains(lower, "<script") &&
		!strings.Contains(lower, "<html") &&
		!strings.Contains(lower, "<!doctype") {
		return text
	}
	if match := scriptPattern.FindStringSubmatch(text); match != nil {
		return strings.TrimSpace(match[1])
	}
	// Unterminated script tag: keep everything after the opening tag.
	if loc := scriptOpenOnly.FindStringIndex(text); loc != nil {
		return strings.TrimSpace(text[loc[1]:])
	}
	return text
}

func stripFences(text string) string {
	matches := fencePattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return text
	}
	largest := ""
	for _, match := range matches {
		if len(match[1]) > len(largest) {
			largest = match[1]
		}
	}
	return strings.TrimSpace(largest)
}

func definesEntry(code string) bool {
	return entryPattern.MatchString(code)
}

func wrapInEntry(code string) string {
	var b strings.Builder
	b.WriteString("function setupScene(scene) {\n")
	for _, line := range strings.Split(code, "\n") {
		if strings.TrimSpace(line) == "" {
			b.WriteString("\n")
			continue
		}
		b.WriteString("  ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("}")
	return b.String()
}
