package toolregistry

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"sceneforge/internal/observability"
	"sceneforge/internal/ports"
)

const (
	defaultCacheMaxSize = 256
	defaultCacheTTL     = 5 * time.Minute
)

// volatileArgKeys are argument fields that change on every call without
// changing what the call computes. They are stripped before key building so
// that logically identical calls share a cache entry.
var volatileArgKeys = map[string]bool{
	"timestamp":  true,
	"requestId":  true,
	"request_id": true,
	"nonce":      true,
}

// CacheConfig configures the tool result cache behaviour.
type CacheConfig struct {
	// MaxSize is the maximum number of entries in the LRU cache.
	MaxSize int
	// TTL is how long a cached result remains valid when Put is called
	// without an explicit per-entry TTL.
	TTL time.Duration
	// Clock supplies the current time; nil means the system clock.
	Clock ports.Clock
	// Metrics receives hit/miss counts; nil disables reporting.
	Metrics *observability.Metrics
}

// cacheEntry holds a cached tool result along with the timestamp it was
// stored and its lifetime. An entry is valid iff now - storedAt < ttl.
type cacheEntry struct {
	result   *ports.ToolResult
	storedAt time.Time
	ttl      time.Duration
}

// ResultCache is an LRU cache of tool results with per-entry TTLs. Expiry is
// lazy: a stale entry is evicted only when a Get touches it. There is no
// background sweep — the dataset is small and short-lived.
type ResultCache struct {
	entries *lru.Cache[string, cacheEntry]
	ttl     time.Duration
	clock   ports.Clock
	metrics *observability.Metrics

	hits   atomic.Uint64
	misses atomic.Uint64
}

// CacheStats is a point-in-time snapshot of cache effectiveness counters.
type CacheStats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Size   int    `json:"size"`
}

// NewResultCache builds a ResultCache. Zero config values fall back to
// defaults (256 entries, 5 minute TTL, system clock).
func NewResultCache(config CacheConfig) (*ResultCache, error) {
	if config.MaxSize <= 0 {
		config.MaxSize = defaultCacheMaxSize
	}
	if config.TTL <= 0 {
		config.TTL = defaultCacheTTL
	}
	if config.Clock == nil {
		config.Clock = ports.SystemClock()
	}
	entries, err := lru.New[string, cacheEntry](config.MaxSize)
	if err != nil {
		return nil, fmt.Errorf("create result cache: %w", err)
	}
	return &ResultCache{
		entries: entries,
		ttl:     config.TTL,
		clock:   config.Clock,
		metrics: config.Metrics,
	}, nil
}

// Get returns the cached result for key, or (nil, false) on a miss. A stale
// entry counts as a miss and is removed. The returned result is a copy; the
// caller may mutate it freely.
func (c *ResultCache) Get(key string) (*ports.ToolResult, bool) {
	entry, ok := c.entries.Get(key)
	if ok && c.clock.Now().Sub(entry.storedAt) < entry.ttl {
		c.hits.Add(1)
		c.metrics.IncCacheHit()
		return cloneResult(entry.result), true
	}
	if ok {
		// Expired — evict so the LRU bookkeeping stays clean.
		c.entries.Remove(key)
	}
	c.misses.Add(1)
	c.metrics.IncCacheMiss()
	return nil, false
}

// Put stores result under key. A non-positive ttl falls back to the cache
// default. Nil results and results carrying an error are never stored.
func (c *ResultCache) Put(key string, result *ports.ToolResult, ttl time.Duration) {
	if result == nil || result.Error != nil {
		return
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	c.entries.Add(key, cacheEntry{
		result:   cloneResult(result),
		storedAt: c.clock.Now(),
		ttl:      ttl,
	})
}

// Invalidate removes every entry whose key starts with prefix and returns how
// many were removed. An empty prefix clears the whole cache.
func (c *ResultCache) Invalidate(prefix string) int {
	removed := 0
	for _, key := range c.entries.Keys() {
		if prefix == "" || strings.HasPrefix(key, prefix) {
			if c.entries.Remove(key) {
				removed++
			}
		}
	}
	return removed
}

// Stats reports the hit/miss counters and the current entry count.
func (c *ResultCache) Stats() CacheStats {
	return CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   c.entries.Len(),
	}
}

// CacheKey produces a deterministic key from tool name + arguments: the
// canonical JSON form sorts object keys at every level and drops volatile
// fields, so key order and per-call noise do not defeat caching.
func CacheKey(name string, args map[string]any) string {
	return fmt.Sprintf("%s:%s", strings.TrimSpace(name), normalizeArgs(args))
}

// normalizeArgs serialises a map[string]any into a deterministic JSON string.
func normalizeArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(canonicalMap(args))
	if err != nil {
		return "{}"
	}
	return string(data)
}

// canonicalMap returns a copy of m that json.Marshal will serialise
// deterministically: volatile keys removed and nested containers converted to
// the same canonical form. json.Marshal already sorts map keys, so sorting
// here only guards the recursion order.
func canonicalMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	keys := make([]string, 0, len(m))
	for k := range m {
		if volatileArgKeys[k] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out[k] = canonicalValue(m[k])
	}
	return out
}

func canonicalValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		return canonicalMap(tv)
	case []any:
		out := make([]any, len(tv))
		for i, item := range tv {
			out[i] = canonicalValue(item)
		}
		return out
	default:
		return v
	}
}

// cloneResult performs a shallow copy with its own Data map so cached entries
// do not alias caller maps.
func cloneResult(r *ports.ToolResult) *ports.ToolResult {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Data != nil {
		cp.Data = make(map[string]any, len(r.Data))
		for k, v := range r.Data {
			cp.Data[k] = v
		}
	}
	return &cp
}
