package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"sceneforge/internal/logging"
	"sceneforge/internal/ports"
)

const (
	defaultMaxIterations = 10
	defaultCacheTTL      = 5 * time.Minute
)

// Options tunes the engine beyond the runtime dependencies.
type Options struct {
	// MaxIterations is the default per-turn budget; zero means 10.
	MaxIterations int
	// CacheTTL is how long cacheable tool results live; zero means 5m.
	CacheTTL time.Duration
}

// Engine drives the refinement loop: analyze the rendered scene, generate
// assets when the instruction calls for them, ask the code model for a fix,
// apply it, and repeat until the analysis is satisfied or the budget runs
// out. Tool choice is policy in code, not model output; the model only ever
// answers prompts.
type Engine struct {
	runtime       Runtime
	maxIterations int
	cacheTTL      time.Duration
	logger        logging.Logger
	clock         ports.Clock
}

// New builds an Engine. Registry and Memory are required.
func New(runtime Runtime, opts Options) (*Engine, error) {
	if runtime.Registry == nil {
		return nil, fmt.Errorf("agent: tool registry is required")
	}
	if runtime.Memory == nil {
		return nil, fmt.Errorf("agent: memory manager is required")
	}
	maxIterations := opts.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	cacheTTL := opts.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	clock := runtime.Clock
	if clock == nil {
		clock = ports.SystemClock()
	}
	return &Engine{
		runtime:       runtime,
		maxIterations: maxIterations,
		cacheTTL:      cacheTTL,
		logger:        logging.OrNop(runtime.Logger),
		clock:         clock,
	}, nil
}

// Refine runs one refinement turn. The returned error reports caller
// mistakes and context cancellation only; every other failure mode still
// produces a well-formed Result.
func (e *Engine) Refine(ctx context.Context, req Request) (*Result, error) {
	req.Instruction = strings.TrimSpace(req.Instruction)
	if req.Instruction == "" {
		return nil, fmt.Errorf("refine: instruction is required")
	}
	if strings.TrimSpace(req.SessionID) == "" {
		req.SessionID = "default"
	}

	ctx, span := startRefineSpan(ctx, traceSpanRefineTurn, req.SessionID)
	defer span.End()

	start := e.clock.Now()
	run := newRefineRun(e, req)
	result, err := run.execute(ctx)
	markSpanOutcome(span, err)
	if err != nil {
		return nil, err
	}

	e.runtime.Metrics.ObserveLoopIterations(result.Iterations)
	e.logger.Info("refine turn for session %s finished after %d iteration(s) in %s",
		req.SessionID, result.Iterations, e.clock.Now().Sub(start).Round(time.Millisecond))
	return result, nil
}

// ResetSession drops the session's memory windows.
func (e *Engine) ResetSession(ctx context.Context, sessionID string) {
	e.runtime.Memory.Reset(ctx, sessionID)
}

// Generation intent in instructions or analysis suggestions. Matching any of
// these while no reusable URL exists triggers the asset pipeline.
var generationIntent = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bgenerate\b[^.!?]*\bmodel\b`),
	regexp.MustCompile(`(?i)\b3d\s+model\b`),
	regexp.MustCompile(`(?i)\bcreate\b[^.!?]*\bmodel\b`),
}

func needsModelGeneration(texts ...string) bool {
	for _, text := range texts {
		if text == "" {
			continue
		}
		for _, pattern := range generationIntent {
			if pattern.MatchString(text) {
				return true
			}
		}
	}
	return false
}
