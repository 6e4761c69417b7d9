package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"sceneforge/internal/logging"
	"sceneforge/internal/ports"
	"sceneforge/internal/token"
)

// maxHistoryPromptTokens caps the rendered memory digest so stale history can
// never crowd the instruction out of the model's context window.
const maxHistoryPromptTokens = 1500

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Store persists session memory; nil falls back to an in-process store.
	Store Store
	// WindowSize is the per-window capacity k. Values below one fall back
	// to one.
	WindowSize int
	// Clock supplies timestamps; nil means the system clock.
	Clock ports.Clock
	// Logger receives degradation warnings; nil means silent.
	Logger logging.Logger
}

// Manager owns the bounded code and scene memory windows for every session.
// Store failures degrade to "no memory": they are logged and swallowed, so
// callers never fail because memory is unavailable — they just see an empty
// window.
type Manager struct {
	mu     sync.Mutex
	store  Store
	k      int
	clock  ports.Clock
	logger logging.Logger
}

// NewManager builds a Manager from config, filling zero values with
// defaults.
func NewManager(config ManagerConfig) *Manager {
	store := config.Store
	if store == nil {
		store = NewInMemoryStore()
	}
	k := config.WindowSize
	if k < 1 {
		k = 1
	}
	clock := config.Clock
	if clock == nil {
		clock = ports.SystemClock()
	}
	return &Manager{
		store:  store,
		k:      k,
		clock:  clock,
		logger: logging.OrNop(config.Logger),
	}
}

// SaveCode pushes state into the session's code window under inputKey,
// evicting the oldest entry past capacity.
func (m *Manager) SaveCode(ctx context.Context, sessionID, inputKey string, state CodeState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem := m.load(ctx, sessionID)
	window := windowFrom(mem.Code, m.k)
	window.Push(Entry[CodeState]{Key: inputKey, Value: state, SavedAt: m.clock.Now()})
	mem.Code = window.Entries()
	m.persist(ctx, mem)
}

// LoadCode returns the aggregated code window payload. ok is false when the
// window is empty (or memory is unavailable).
func (m *Manager) LoadCode(ctx context.Context, sessionID string) (CodeState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem := m.load(ctx, sessionID)
	if len(mem.Code) == 0 {
		return CodeState{}, false
	}
	return mergeCode(mem.Code), true
}

// SaveScene pushes state into the session's scene window under inputKey.
func (m *Manager) SaveScene(ctx context.Context, sessionID, inputKey string, state SceneState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem := m.load(ctx, sessionID)
	window := windowFrom(mem.Scene, m.k)
	window.Push(Entry[SceneState]{Key: inputKey, Value: state, SavedAt: m.clock.Now()})
	mem.Scene = window.Entries()
	m.persist(ctx, mem)
}

// LoadScene returns the aggregated scene window payload.
func (m *Manager) LoadScene(ctx context.Context, sessionID string) (SceneState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem := m.load(ctx, sessionID)
	if len(mem.Scene) == 0 {
		return SceneState{}, false
	}
	return mergeScene(mem.Scene), true
}

// RecordModelGenerated appends a generated model URL to the code window's
// history, trimmed to the most recent five.
func (m *Manager) RecordModelGenerated(ctx context.Context, sessionID, modelURL, prompt string) {
	if strings.TrimSpace(modelURL) == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	mem := m.load(ctx, sessionID)
	state := mergeCode(mem.Code)
	state.ModelHistory = appendTrimmed(state.ModelHistory, ModelHistoryEntry{
		ModelURL:  modelURL,
		Prompt:    prompt,
		Timestamp: m.clock.Now(),
	}, maxModelHistory)
	mem.Code = updateLatest(mem.Code, state, m.clock.Now())
	m.persist(ctx, mem)
}

// RecordSceneSnapshot stores the latest object snapshot and appends a
// timestamped entry to the scene history, trimmed to the most recent five.
func (m *Manager) RecordSceneSnapshot(ctx context.Context, sessionID, prompt string, objects []ports.SceneObjectRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem := m.load(ctx, sessionID)
	state := mergeScene(mem.Scene)
	state.Prompt = prompt
	state.Objects = objects
	state.History = appendTrimmed(state.History, SceneHistoryEntry{
		Prompt:      prompt,
		ObjectCount: len(objects),
		Timestamp:   m.clock.Now(),
	}, maxSceneHistory)
	mem.Scene = updateLatest(mem.Scene, state, m.clock.Now())
	m.persist(ctx, mem)
}

// ModelHistory returns the recorded model URLs for the session, oldest
// first.
func (m *Manager) ModelHistory(ctx context.Context, sessionID string) []ModelHistoryEntry {
	state, _ := m.LoadCode(ctx, sessionID)
	return state.ModelHistory
}

// FormatHistoryForPrompt renders the session's memory as model-readable
// text, capped at maxHistoryPromptTokens. It returns the empty string when
// nothing is stored.
func (m *Manager) FormatHistoryForPrompt(ctx context.Context, sessionID string) string {
	m.mu.Lock()
	mem := m.load(ctx, sessionID)
	m.mu.Unlock()

	code := mergeCode(mem.Code)
	scene := mergeScene(mem.Scene)

	var b strings.Builder
	if code.Instruction != "" {
		fmt.Fprintf(&b, "Last instruction: %s\n", code.Instruction)
	}
	if code.Digest != "" {
		fmt.Fprintf(&b, "Current code digest:\n%s\n", code.Digest)
	}
	if code.Analysis != "" {
		fmt.Fprintf(&b, "Last visual analysis: %s\n", code.Analysis)
	}
	if len(code.ModelHistory) > 0 {
		b.WriteString("Generated model URLs (reuse these instead of regenerating):\n")
		for _, entry := range code.ModelHistory {
			fmt.Fprintf(&b, "- %s (prompt: %q)\n", entry.ModelURL, entry.Prompt)
		}
	}
	if len(scene.Objects) > 0 {
		fmt.Fprintf(&b, "Scene currently contains %d object(s):\n", len(scene.Objects))
		for _, obj := range scene.Objects {
			label := obj.Name
			if label == "" {
				label = obj.ID
			}
			fmt.Fprintf(&b, "- %s %q at (%.2f, %.2f, %.2f)\n", obj.Type, label, obj.Position[0], obj.Position[1], obj.Position[2])
		}
	}
	if len(scene.History) > 0 {
		b.WriteString("Scene snapshot history:\n")
		for _, entry := range scene.History {
			fmt.Fprintf(&b, "- [%s] %q (%d objects)\n", entry.Timestamp.Format(time.RFC3339), entry.Prompt, entry.ObjectCount)
		}
	}
	return token.Truncate(strings.TrimRight(b.String(), "\n"), maxHistoryPromptTokens)
}

// Reset drops the session's memory entirely.
func (m *Manager) Reset(ctx context.Context, sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Delete(ctx, normalizeSessionID(sessionID)); err != nil {
		m.logger.Warn("memory reset failed for session %s: %v", sessionID, err)
	}
}

// Sessions lists the session ids with stored memory; empty on store failure.
func (m *Manager) Sessions(ctx context.Context) []string {
	ids, err := m.store.List(ctx)
	if err != nil {
		m.logger.Warn("memory listing failed: %v", err)
		return nil
	}
	return ids
}

// load reads the session's memory, degrading to an empty document on any
// store failure.
func (m *Manager) load(ctx context.Context, sessionID string) SessionMemory {
	sessionID = normalizeSessionID(sessionID)
	mem, err := m.store.Load(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.logger.Warn("memory load failed for session %s: %v (continuing without memory)", sessionID, err)
		}
		return SessionMemory{SessionID: sessionID}
	}
	mem.SessionID = sessionID
	return mem
}

func (m *Manager) persist(ctx context.Context, mem SessionMemory) {
	mem.UpdatedAt = m.clock.Now()
	if err := m.store.Save(ctx, mem); err != nil {
		m.logger.Warn("memory save failed for session %s: %v (continuing without memory)", mem.SessionID, err)
	}
}

// updateLatest replaces the newest entry's payload in place, or starts the
// window when it is empty. Used by the record operations, which mutate the
// window payload rather than consuming a window slot.
func updateLatest[T any](entries []Entry[T], state T, now time.Time) []Entry[T] {
	if n := len(entries); n > 0 {
		entries[n-1].Value = state
		entries[n-1].SavedAt = now
		return entries
	}
	return []Entry[T]{{Value: state, SavedAt: now}}
}

// mergeCode overlays the window's entries oldest to newest; later non-empty
// fields win. With k=1 this is simply the most recent entry.
func mergeCode(entries []Entry[CodeState]) CodeState {
	var merged CodeState
	for _, entry := range entries {
		v := entry.Value
		if v.Instruction != "" {
			merged.Instruction = v.Instruction
		}
		if v.Digest != "" {
			merged.Digest = v.Digest
		}
		if v.Analysis != "" {
			merged.Analysis = v.Analysis
		}
		if len(v.ModelHistory) > 0 {
			merged.ModelHistory = v.ModelHistory
		}
	}
	return merged
}

func mergeScene(entries []Entry[SceneState]) SceneState {
	var merged SceneState
	for _, entry := range entries {
		v := entry.Value
		if v.Prompt != "" {
			merged.Prompt = v.Prompt
		}
		if len(v.Objects) > 0 {
			merged.Objects = v.Objects
		}
		if len(v.History) > 0 {
			merged.History = v.History
		}
	}
	return merged
}

func appendTrimmed[T any](list []T, item T, max int) []T {
	list = append(list, item)
	if len(list) > max {
		keep := make([]T, max)
		copy(keep, list[len(list)-max:])
		return keep
	}
	return list
}

func normalizeSessionID(sessionID string) string {
	if strings.TrimSpace(sessionID) == "" {
		return "default"
	}
	return sessionID
}
