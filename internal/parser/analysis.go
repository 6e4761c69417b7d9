package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// VisualAnalysis is the structured verdict of the vision collaborator on one
// screenshot: does the render match the instruction, and if not, what should
// change.
type VisualAnalysis struct {
	MatchesRequirement bool   `json:"matches_requirement"`
	NeedsImprovement   bool   `json:"needs_improvement"`
	Suggestions        string `json:"suggestions"`
}

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// ParseAnalysis extracts a VisualAnalysis from a raw vision-model reply.
// The reply may wrap the JSON in prose or fences, and the JSON itself is
// frequently malformed (trailing commas, single quotes); jsonrepair handles
// those before the parse is given up on.
func ParseAnalysis(raw string) (*VisualAnalysis, error) {
	candidate := stripFences(raw)
	match := jsonObjectPattern.FindString(candidate)
	if match == "" {
		return nil, fmt.Errorf("no JSON object in analysis reply")
	}

	analysis, err := decodeAnalysis(match)
	if err == nil {
		return analysis, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(match)
	if repairErr != nil {
		return nil, fmt.Errorf("analysis JSON unparseable: %w", err)
	}
	analysis, err = decodeAnalysis(repaired)
	if err != nil {
		return nil, fmt.Errorf("analysis JSON unparseable after repair: %w", err)
	}
	return analysis, nil
}

func decodeAnalysis(text string) (*VisualAnalysis, error) {
	var aux struct {
		MatchesRequirement bool `json:"matches_requirement"`
		NeedsImprovement   bool `json:"needs_improvement"`
		Suggestions        any  `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(text), &aux); err != nil {
		return nil, err
	}
	return &VisualAnalysis{
		MatchesRequirement: aux.MatchesRequirement,
		NeedsImprovement:   aux.NeedsImprovement,
		Suggestions:        coerceSuggestions(aux.Suggestions),
	}, nil
}

// coerceSuggestions accepts the string and string-array shapes models emit.
func coerceSuggestions(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				parts = append(parts, strings.TrimSpace(s))
			}
		}
		return strings.Join(parts, "; ")
	default:
		return ""
	}
}
