package toolregistry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"sceneforge/internal/logging"
	"sceneforge/internal/observability"
	"sceneforge/internal/ports"
)

// DefaultNeverCache lists tool names whose results must never be served from
// cache. Asset generation is a long-running job whose output is not a pure
// function of its input; the others mutate server- or store-side state.
func DefaultNeverCache() []string {
	return []string{
		"generate_3d_model",
		"apply_patch",
		"capture_screenshot",
		"store_scene_objects",
	}
}

// Config configures a Registry.
type Config struct {
	// Cache backs ExecuteCached. Nil disables caching entirely.
	Cache *ResultCache
	// NeverCache overrides the default cache-bypass list when non-nil.
	NeverCache []string
	// Logger receives registration and dispatch logs; nil means silent.
	Logger logging.Logger
	// Metrics receives per-tool execution timings; nil disables reporting.
	Metrics *observability.Metrics
}

// Registry holds the closed set of tools available to the refinement loop and
// dispatches calls to them, optionally through the result cache. It is safe
// for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	tools      map[string]ports.ToolExecutor
	categories map[string]string

	cache      *ResultCache
	neverCache map[string]bool
	logger     logging.Logger
	metrics    *observability.Metrics
}

// NewRegistry builds an empty registry.
func NewRegistry(config Config) *Registry {
	bypass := config.NeverCache
	if bypass == nil {
		bypass = DefaultNeverCache()
	}
	neverCache := make(map[string]bool, len(bypass))
	for _, name := range bypass {
		neverCache[strings.TrimSpace(name)] = true
	}
	return &Registry{
		tools:      make(map[string]ports.ToolExecutor),
		categories: make(map[string]string),
		cache:      config.Cache,
		neverCache: neverCache,
		logger:     logging.OrNop(config.Logger),
		metrics:    config.Metrics,
	}
}

// Register adds tool under its metadata name, overwriting any previous
// registration for that name.
func (r *Registry) Register(tool ports.ToolExecutor) error {
	if tool == nil {
		return fmt.Errorf("register tool: nil executor")
	}
	meta := tool.Metadata()
	name := strings.TrimSpace(meta.Name)
	if name == "" {
		return fmt.Errorf("register tool: empty name")
	}

	r.mu.Lock()
	_, overwrite := r.tools[name]
	r.tools[name] = tool
	r.categories[name] = meta.Category
	r.mu.Unlock()

	if overwrite {
		r.logger.Debug("tool %s re-registered (category %s)", name, meta.Category)
	} else {
		r.logger.Debug("tool %s registered (category %s)", name, meta.Category)
	}
	return nil
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (ports.ToolExecutor, error) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("tool %s not found", name)
	}
	return tool, nil
}

// All returns the registered tools sorted by name. A non-empty category
// restricts the result to tools whose metadata category equals it.
func (r *Registry) All(category string) []ports.ToolExecutor {
	r.mu.RLock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		if category != "" && r.categories[name] != category {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]ports.ToolExecutor, 0, len(names))
	for _, name := range names {
		out = append(out, r.tools[name])
	}
	r.mu.RUnlock()
	return out
}

// Names returns all registered tool names sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Definitions returns the schema definitions of all registered tools sorted
// by name, for inclusion in model prompts.
func (r *Registry) Definitions() []ports.ToolDefinition {
	tools := r.All("")
	defs := make([]ports.ToolDefinition, 0, len(tools))
	for _, tool := range tools {
		defs = append(defs, tool.Definition())
	}
	return defs
}

// Execute dispatches call to the tool named in it, without consulting the
// cache. The returned error reports environment failures only; tool-level
// failures travel in the result's Error field.
func (r *Registry) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	tool, err := r.Get(call.Name)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := tool.Execute(ctx, call)
	status := "ok"
	if err != nil || (result != nil && result.Error != nil) {
		status = "error"
	}
	r.metrics.ObserveToolDuration(call.Name, status, time.Since(start))
	return result, err
}

// ExecuteCached dispatches call through the result cache: bypass-listed tools
// always execute directly, everything else is served from cache on a key hit
// and stored with the given ttl after a successful execution. Execution
// errors and failed results propagate unmodified and are never stored.
func (r *Registry) ExecuteCached(ctx context.Context, call ports.ToolCall, ttl time.Duration) (*ports.ToolResult, error) {
	if r.cache == nil || r.neverCache[call.Name] {
		return r.Execute(ctx, call)
	}

	key := CacheKey(call.Name, call.Arguments)
	if cached, ok := r.cache.Get(key); ok {
		cached.CallID = call.ID
		r.logger.Debug("tool %s served from cache", call.Name)
		return cached, nil
	}

	result, err := r.Execute(ctx, call)
	if err != nil {
		return result, err
	}
	r.cache.Put(key, result, ttl)
	return result, nil
}

// InvalidateTool drops every cached result for the named tool and returns how
// many entries were removed.
func (r *Registry) InvalidateTool(name string) int {
	if r.cache == nil {
		return 0
	}
	return r.cache.Invalidate(name + ":")
}

// CacheStats reports the backing cache's counters; the zero value when no
// cache is configured.
func (r *Registry) CacheStats() CacheStats {
	if r.cache == nil {
		return CacheStats{}
	}
	return r.cache.Stats()
}
