package parser

import (
	"regexp"
	"strings"
)

// ModelURLMarker is the comment convention that authoritatively names a 3D
// asset URL inside generated code. Extraction prefers markers over bare URL
// literals so a model can pin the primary asset explicitly.
const ModelURLMarker = "// MODEL_URL:"

var (
	markerPattern = regexp.MustCompile(`(?m)^[ \t]*//[ \t]*MODEL_URL:[ \t]*(\S+)`)
	// Bare asset URLs are recognized by extension; query strings allowed.
	assetURLPattern = regexp.MustCompile(`https?://[^\s"'<>()\x60]+\.(?:glb|gltf|fbx|obj|usdz)(?:\?[^\s"'<>()\x60]*)?`)
)

// AssetURLs is the result of scanning code for 3D asset references.
type AssetURLs struct {
	Primary string   `json:"primary"`
	All     []string `json:"all"`
}

// ExtractAssetURLs scans code for asset URLs: marker comments first
// (authoritative, in file order), then bare URL literals with a known asset
// extension. The result is de-duplicated preserving first-seen order, and
// Primary is the first URL found ("" when there are none).
func ExtractAssetURLs(code string) AssetURLs {
	var urls []string
	seen := make(map[string]struct{})

	push := func(url string) {
		url = strings.TrimRight(url, ".,;")
		if url == "" {
			return
		}
		if _, dup := seen[url]; dup {
			return
		}
		seen[url] = struct{}{}
		urls = append(urls, url)
	}

	for _, match := range markerPattern.FindAllStringSubmatch(code, -1) {
		push(match[1])
	}
	for _, url := range assetURLPattern.FindAllString(code, -1) {
		push(url)
	}

	result := AssetURLs{All: urls}
	if len(urls) > 0 {
		result.Primary = urls[0]
	}
	return result
}

// EnsureModelMarker prepends a MODEL_URL marker for url unless the code
// already references it. Idempotent.
func EnsureModelMarker(code, url string) string {
	if url == "" || strings.Contains(code, url) {
		return code
	}
	return ModelURLMarker + " " + url + "\n" + code
}
