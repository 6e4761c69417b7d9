package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sergi/go-diff/diffmatchpatch"
	"go.opentelemetry.io/otel/attribute"

	"sceneforge/internal/memory"
	"sceneforge/internal/parser"
	"sceneforge/internal/ports"
	"sceneforge/internal/tools/builtin"
)

const directFixSystemPrompt = `You are a Three.js scene developer. Rewrite the
scene code so it satisfies the instruction. Reply with only JavaScript, no
prose and no markdown fences. The code must define function setupScene(scene).`

// refineRun owns the state of one refinement turn. The engine stays
// stateless across turns; everything mutable lives here.
type refineRun struct {
	engine *Engine
	req    Request

	code       string
	screenshot string
	assetURLs  []string
	analysis   *parser.VisualAnalysis
	suggestion string
	notes      []string
	iterations int
	tools      []string

	generated   bool
	baseStored  bool
	lastApplied string
	dmp         *diffmatchpatch.DiffMatchPatch
}

func newRefineRun(e *Engine, req Request) *refineRun {
	return &refineRun{
		engine: e,
		req:    req,
		dmp:    diffmatchpatch.New(),
	}
}

func (run *refineRun) execute(ctx context.Context) (*Result, error) {
	run.seed(ctx)

	budget := run.req.MaxIterations
	if budget <= 0 {
		budget = run.engine.maxIterations
	}

	var loopErr error
	for run.iterations < budget {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		run.iterations++
		done, err := run.iterate(ctx)
		if err != nil {
			loopErr = err
			break
		}
		if done {
			break
		}
	}

	if loopErr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		run.engine.logger.Warn("refinement loop for session %s aborted (%v); attempting one direct code fix",
			run.req.SessionID, loopErr)
		if err := run.directFix(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			run.note("direct code fix failed: %v", err)
		}
	}

	run.persistSceneObjects(ctx)
	return run.result(), nil
}

// seed gathers the reusable state a turn starts from: the caller's code and
// screenshot plus every model URL remembered for the session.
func (run *refineRun) seed(ctx context.Context) {
	run.code = strings.TrimSpace(run.req.CurrentCode)
	run.screenshot = strings.TrimSpace(run.req.Screenshot)

	for _, entry := range run.engine.runtime.Memory.ModelHistory(ctx, run.req.SessionID) {
		run.addAssetURL(entry.ModelURL)
	}
	for _, url := range parser.ExtractAssetURLs(run.code).All {
		run.addAssetURL(url)
	}
}

// iterate runs one loop iteration: look, decide, mutate. It reports done
// when the turn should stop, and an error only for failures that abort the
// loop (the caller then falls back to a single direct fix).
func (run *refineRun) iterate(ctx context.Context) (done bool, err error) {
	run.tools = nil
	ctx, span := startRefineSpan(ctx, traceSpanRefineIteration, run.req.SessionID,
		attribute.Int(traceAttrIteration, run.iterations))
	defer func() {
		span.SetAttributes(attribute.StringSlice(traceAttrTools, run.tools))
		markSpanOutcome(span, err)
		span.End()
	}()

	// Look before touching anything.
	run.ensureScreenshot(ctx)
	if run.screenshot != "" {
		if run.analyze(ctx) && run.analysis.MatchesRequirement && run.code != "" {
			run.engine.logger.Debug("iteration %d: scene already satisfies the instruction", run.iterations)
			return true, nil
		}
	}

	// Asset generation comes before the code fix so the fix can reference
	// the validated URL.
	if err := run.maybeGenerate(ctx); err != nil {
		return false, err
	}

	fixed, err := run.fixCode(ctx)
	if err != nil {
		return false, err
	}

	run.code = run.apply(ctx, fixed)
	run.saveMemory(ctx)

	// The screenshot shows the scene before this fix; a fresh one is needed
	// to judge the result.
	run.screenshot = ""

	// Without an analysis verdict there is nothing to iterate against.
	return run.analysis == nil || !run.analysis.NeedsImprovement, nil
}

func (run *refineRun) dispatch(ctx context.Context, name string, args map[string]any) (*ports.ToolResult, error) {
	run.tools = append(run.tools, name)
	result, err := run.engine.runtime.Registry.ExecuteCached(ctx, ports.ToolCall{
		ID:        uuid.NewString(),
		Name:      name,
		Arguments: args,
		SessionID: run.req.SessionID,
	}, run.engine.cacheTTL)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("tool %s returned no result", name)
	}
	return result, nil
}

// ensureScreenshot captures a frame when none was supplied and a renderer is
// connected. Capture problems degrade to "no screenshot".
func (run *refineRun) ensureScreenshot(ctx context.Context) {
	if run.screenshot != "" {
		return
	}
	b := run.engine.runtime.Bridge
	if b == nil || b.ClientCount() == 0 {
		return
	}
	result, err := run.dispatch(ctx, builtin.NameCaptureScreenshot, nil)
	if err != nil || result.Failed() {
		run.engine.logger.Warn("screenshot capture unavailable this iteration: %v", firstError(err, result))
		return
	}
	if image, _ := result.Data["screenshot"].(string); image != "" {
		run.screenshot = image
	}
}

// analyze judges the current screenshot against the instruction. It reports
// whether a verdict was obtained.
func (run *refineRun) analyze(ctx context.Context) bool {
	result, err := run.dispatch(ctx, builtin.NameAnalyzeScreenshot, map[string]any{
		"instruction": run.req.Instruction,
		"screenshot":  run.screenshot,
	})
	if err != nil || result.Failed() {
		run.note("visual analysis unavailable: %v", firstError(err, result))
		return false
	}

	analysis := &parser.VisualAnalysis{}
	analysis.MatchesRequirement, _ = result.Data["matches_requirement"].(bool)
	analysis.NeedsImprovement, _ = result.Data["needs_improvement"].(bool)
	analysis.Suggestions, _ = result.Data["suggestions"].(string)
	run.analysis = analysis
	if analysis.Suggestions != "" {
		run.suggestion = analysis.Suggestions
	}
	return true
}

// maybeGenerate submits one asset generation job per turn when the
// instruction or analysis asks for a model and no reusable URL exists. The
// URL is recorded into memory before the code fix runs, so it survives even
// a failed fix.
func (run *refineRun) maybeGenerate(ctx context.Context) error {
	if run.generated || len(run.assetURLs) > 0 {
		return nil
	}
	if run.engine.runtime.Poller == nil {
		return nil
	}
	if !needsModelGeneration(run.req.Instruction, run.suggestion) {
		return nil
	}
	run.generated = true

	result, err := run.dispatch(ctx, builtin.NameGenerateModel, map[string]any{
		"prompt": run.req.Instruction,
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		run.note("asset generation unavailable: %v", err)
		return nil
	}
	if result.Failed() {
		run.note("asset generation failed: %v", result.Error)
		return nil
	}
	url, _ := result.Data["model_url"].(string)
	if url == "" {
		run.note("asset generation returned no URL")
		return nil
	}

	run.engine.runtime.Memory.RecordModelGenerated(ctx, run.req.SessionID, url, run.req.Instruction)
	run.addAssetURL(url)
	run.engine.logger.Info("generated model asset for session %s: %s", run.req.SessionID, url)
	return nil
}

// fixCode asks the code model for the next version of the scene. A failure
// here aborts the loop: the retry layer has already done its part, so a
// failing code model will not recover by iterating.
func (run *refineRun) fixCode(ctx context.Context) (string, error) {
	args := map[string]any{
		"instruction": run.req.Instruction,
		"code":        run.code,
	}
	if block := run.contextBlock(ctx); block != "" {
		args["context"] = block
	}
	if len(run.assetURLs) > 0 {
		args["asset_urls"] = run.assetURLs
	}

	result, err := run.dispatch(ctx, builtin.NameFixCode, args)
	if err != nil {
		return "", err
	}
	if result.Failed() {
		return "", fmt.Errorf("code fix failed: %w", result.Error)
	}

	code, _ := result.Data["code"].(string)
	if code == "" {
		code = result.Content
	}
	if urls, ok := result.Data["asset_urls"].([]string); ok {
		for _, url := range urls {
			run.addAssetURL(url)
		}
	}
	return code, nil
}

// apply records fixed through the patch tool: the first application sends
// the full code to prime the session base, later ones send an incremental
// patch computed against the last applied version. Patch trouble falls back
// to full code; the fixed text itself is never lost.
func (run *refineRun) apply(ctx context.Context, fixed string) string {
	if fixed == "" {
		return run.code
	}

	if run.baseStored && run.lastApplied != "" {
		patch := run.dmp.PatchToText(run.dmp.PatchMake(run.lastApplied, fixed))
		if patch == "" {
			return fixed
		}
		result, err := run.dispatch(ctx, builtin.NameApplyPatch, map[string]any{"patch": patch})
		if err == nil && !result.Failed() {
			if applied, _ := result.Data["code"].(string); applied != "" {
				run.lastApplied = applied
				return applied
			}
		}
		run.engine.logger.Warn("incremental patch rejected, re-sending full code: %v", firstError(err, result))
	}

	result, err := run.dispatch(ctx, builtin.NameApplyPatch, map[string]any{"code": fixed})
	if err != nil || result.Failed() {
		run.note("patch base not updated: %v", firstError(err, result))
		return fixed
	}
	run.baseStored = true
	run.lastApplied = fixed
	return fixed
}

func (run *refineRun) saveMemory(ctx context.Context) {
	if run.code == "" {
		return
	}
	run.engine.runtime.Memory.SaveCode(ctx, run.req.SessionID, run.req.Instruction, memory.CodeState{
		Instruction: run.req.Instruction,
		Digest:      memory.Digest(run.code),
		Analysis:    run.suggestion,
	})
}

// persistSceneObjects is the best-effort terminal step: whenever the request
// reported scene objects, they are stored and snapshotted. Failures are
// logged, never fatal.
func (run *refineRun) persistSceneObjects(ctx context.Context) {
	if len(run.req.SceneObjects) == 0 || run.engine.runtime.Objects == nil {
		return
	}
	result, err := run.dispatch(ctx, builtin.NameStoreObjects, map[string]any{
		"objects": run.req.SceneObjects,
		"prompt":  run.req.Instruction,
	})
	if err != nil || result.Failed() {
		run.engine.logger.Warn("scene object persistence failed: %v", firstError(err, result))
		return
	}
	run.engine.runtime.Memory.RecordSceneSnapshot(ctx, run.req.SessionID, run.req.Instruction, run.req.SceneObjects)
}

// directFix is the fallback when the loop aborts: one plain completion,
// normalized, no tools.
func (run *refineRun) directFix(ctx context.Context) error {
	llm := run.engine.runtime.LLM
	if llm == nil {
		return fmt.Errorf("no code model configured for the fallback")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Instruction: %s\n", run.req.Instruction)
	if run.code != "" {
		fmt.Fprintf(&b, "\nCurrent code:\n%s\n", run.code)
	}
	resp, err := llm.Complete(ctx, ports.CompletionRequest{
		Messages: []ports.Message{
			{Role: ports.RoleSystem, Content: directFixSystemPrompt},
			{Role: ports.RoleUser, Content: b.String()},
		},
	})
	if err != nil {
		return err
	}

	code := parser.CleanCode(resp.Content)
	if len(run.assetURLs) > 0 && parser.ExtractAssetURLs(code).Primary == "" {
		code = parser.EnsureModelMarker(code, run.assetURLs[0])
	}
	run.code = code
	return nil
}

// contextBlock assembles the working context the code model sees: session
// memory, lint findings, reported scene objects, the latest analysis, and
// any accumulated trouble notes.
func (run *refineRun) contextBlock(ctx context.Context) string {
	var sections []string

	if history := run.engine.runtime.Memory.FormatHistoryForPrompt(ctx, run.req.SessionID); history != "" {
		sections = append(sections, history)
	}
	if len(run.req.Lint) > 0 {
		var b strings.Builder
		b.WriteString("Lint diagnostics:")
		for _, diag := range run.req.Lint {
			severity := diag.Severity
			if severity == "" {
				severity = "warning"
			}
			fmt.Fprintf(&b, "\n- line %d col %d: %s (%s)", diag.Line, diag.Column, diag.Message, severity)
		}
		sections = append(sections, b.String())
	}
	if len(run.req.SceneObjects) > 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "Renderer reports %d scene object(s):", len(run.req.SceneObjects))
		for _, obj := range run.req.SceneObjects {
			label := obj.Name
			if label == "" {
				label = obj.ID
			}
			fmt.Fprintf(&b, "\n- %s %q", obj.Type, label)
		}
		sections = append(sections, b.String())
	}
	if run.suggestion != "" {
		sections = append(sections, "Latest visual analysis: "+run.suggestion)
	}
	if len(run.notes) > 0 {
		sections = append(sections, "Recent issues:\n- "+strings.Join(run.notes, "\n- "))
	}

	return strings.Join(sections, "\n\n")
}

// result builds the turn artifact. The code is always well formed: when the
// turn produced nothing usable, the normalizer's skeleton stands in.
func (run *refineRun) result() *Result {
	code := run.code
	if strings.TrimSpace(code) == "" {
		code = parser.CleanCode(run.req.CurrentCode)
	}

	urls := parser.ExtractAssetURLs(code).All
	for _, url := range run.assetURLs {
		if !containsString(urls, url) {
			urls = append(urls, url)
		}
	}

	return &Result{
		Code:       code,
		AssetURLs:  urls,
		Suggestion: run.suggestion,
		Iterations: run.iterations,
		Analysis:   run.analysis,
	}
}

func (run *refineRun) addAssetURL(url string) {
	url = strings.TrimSpace(url)
	if url == "" || containsString(run.assetURLs, url) {
		return
	}
	run.assetURLs = append(run.assetURLs, url)
}

func (run *refineRun) note(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	run.engine.logger.Debug("refine note (session %s, iteration %d): %s", run.req.SessionID, run.iterations, msg)
	run.notes = append(run.notes, msg)
	if len(run.notes) > 5 {
		run.notes = run.notes[len(run.notes)-5:]
	}
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// firstError picks the most specific failure for a log line.
func firstError(err error, result *ports.ToolResult) error {
	if err != nil {
		return err
	}
	if result != nil && result.Error != nil {
		return result.Error
	}
	return fmt.Errorf("unknown failure")
}
