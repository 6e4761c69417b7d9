package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"sceneforge/internal/ports"
)

func fixedClock(at *time.Time) ports.Clock {
	return ports.ClockFunc(func() time.Time { return *at })
}

func newTestManager(k int) (*Manager, *time.Time) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	m := NewManager(ManagerConfig{
		Store:      NewInMemoryStore(),
		WindowSize: k,
		Clock:      fixedClock(&now),
	})
	return m, &now
}

func TestSaveCodeEvictsOldestWithDefaultWindow(t *testing.T) {
	m, _ := newTestManager(1)
	ctx := context.Background()

	m.SaveCode(ctx, "s1", "turn-1", CodeState{Instruction: "add a cube", Digest: "d1"})
	m.SaveCode(ctx, "s1", "turn-2", CodeState{Instruction: "make it red", Digest: "d2"})

	state, ok := m.LoadCode(ctx, "s1")
	if !ok {
		t.Fatalf("expected stored code state")
	}
	if state.Instruction != "make it red" || state.Digest != "d2" {
		t.Fatalf("expected only the most recent entry with k=1, got %+v", state)
	}
}

func TestLoadCodeMergesAcrossWiderWindow(t *testing.T) {
	m, _ := newTestManager(3)
	ctx := context.Background()

	m.SaveCode(ctx, "s1", "turn-1", CodeState{Instruction: "add a cube", Digest: "d1"})
	m.SaveCode(ctx, "s1", "turn-2", CodeState{Analysis: "cube too small"})
	m.SaveCode(ctx, "s1", "turn-3", CodeState{Digest: "d3"})

	state, ok := m.LoadCode(ctx, "s1")
	if !ok {
		t.Fatalf("expected stored code state")
	}
	if state.Instruction != "add a cube" {
		t.Fatalf("older non-empty field should survive the merge, got %+v", state)
	}
	if state.Digest != "d3" || state.Analysis != "cube too small" {
		t.Fatalf("later fields should win the merge, got %+v", state)
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	m, _ := newTestManager(1)
	ctx := context.Background()

	m.SaveCode(ctx, "a", "k", CodeState{Digest: "da"})
	m.SaveCode(ctx, "b", "k", CodeState{Digest: "db"})

	stateA, _ := m.LoadCode(ctx, "a")
	stateB, _ := m.LoadCode(ctx, "b")
	if stateA.Digest != "da" || stateB.Digest != "db" {
		t.Fatalf("sessions leaked into each other: %q / %q", stateA.Digest, stateB.Digest)
	}
}

func TestRecordModelGeneratedTrimsToFive(t *testing.T) {
	m, _ := newTestManager(1)
	ctx := context.Background()

	for i := 1; i <= 7; i++ {
		m.RecordModelGenerated(ctx, "s1", fmt.Sprintf("https://cdn.test/model-%d.glb", i), fmt.Sprintf("prompt %d", i))
	}

	history := m.ModelHistory(ctx, "s1")
	if len(history) != 5 {
		t.Fatalf("expected history trimmed to 5, got %d", len(history))
	}
	if history[0].ModelURL != "https://cdn.test/model-3.glb" || history[4].ModelURL != "https://cdn.test/model-7.glb" {
		t.Fatalf("expected the 5 most recent URLs in order, got %+v", history)
	}
}

func TestRecordModelGeneratedIgnoresEmptyURL(t *testing.T) {
	m, _ := newTestManager(1)
	ctx := context.Background()
	m.RecordModelGenerated(ctx, "s1", "  ", "prompt")
	if history := m.ModelHistory(ctx, "s1"); len(history) != 0 {
		t.Fatalf("blank URL must not be recorded, got %+v", history)
	}
}

func TestRecordModelGeneratedSurvivesSubsequentSave(t *testing.T) {
	m, _ := newTestManager(1)
	ctx := context.Background()

	m.RecordModelGenerated(ctx, "s1", "https://cdn.test/dragon.glb", "a dragon")
	m.SaveCode(ctx, "s1", "turn-2", CodeState{
		Instruction:  "ride the dragon",
		Digest:       "d2",
		ModelHistory: m.ModelHistory(ctx, "s1"),
	})

	state, _ := m.LoadCode(ctx, "s1")
	if len(state.ModelHistory) != 1 || state.ModelHistory[0].ModelURL != "https://cdn.test/dragon.glb" {
		t.Fatalf("model history lost across save: %+v", state)
	}
}

func TestRecordSceneSnapshotTimestampsAndTrims(t *testing.T) {
	m, now := newTestManager(1)
	ctx := context.Background()

	objects := []ports.SceneObjectRecord{
		{ID: "cube-1", Type: "BoxGeometry", Position: [3]float64{0, 1, 0}},
	}
	for i := 1; i <= 6; i++ {
		*now = now.Add(time.Minute)
		m.RecordSceneSnapshot(ctx, "s1", fmt.Sprintf("step %d", i), objects)
	}

	state, ok := m.LoadScene(ctx, "s1")
	if !ok {
		t.Fatalf("expected stored scene state")
	}
	if len(state.History) != 5 {
		t.Fatalf("expected scene history trimmed to 5, got %d", len(state.History))
	}
	if state.History[0].Prompt != "step 2" || state.History[4].Prompt != "step 6" {
		t.Fatalf("unexpected history order: %+v", state.History)
	}
	if !state.History[4].Timestamp.Equal(*now) {
		t.Fatalf("expected the clock timestamp on entries, got %v want %v", state.History[4].Timestamp, *now)
	}
	if len(state.Objects) != 1 || state.Objects[0].ID != "cube-1" {
		t.Fatalf("latest object snapshot missing: %+v", state.Objects)
	}
}

func TestFormatHistoryEmptyWhenNothingStored(t *testing.T) {
	m, _ := newTestManager(1)
	if got := m.FormatHistoryForPrompt(context.Background(), "fresh"); got != "" {
		t.Fatalf("expected empty string for a fresh session, got %q", got)
	}
}

func TestFormatHistoryRendersAllSections(t *testing.T) {
	m, _ := newTestManager(1)
	ctx := context.Background()

	m.SaveCode(ctx, "s1", "turn-1", CodeState{Instruction: "add a cube", Digest: "function setupScene(scene) {...}", Analysis: "cube missing"})
	m.RecordModelGenerated(ctx, "s1", "https://cdn.test/dragon.glb", "a dragon")
	m.RecordSceneSnapshot(ctx, "s1", "add a cube", []ports.SceneObjectRecord{
		{ID: "cube-1", Type: "BoxGeometry", Name: "redCube", Position: [3]float64{1, 2, 3}},
	})

	text := m.FormatHistoryForPrompt(ctx, "s1")
	for _, want := range []string{
		"add a cube",
		"function setupScene",
		"cube missing",
		"https://cdn.test/dragon.glb",
		"redCube",
		"1 object",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("formatted history missing %q:\n%s", want, text)
		}
	}
}

func TestResetDropsSessionMemory(t *testing.T) {
	m, _ := newTestManager(1)
	ctx := context.Background()

	m.SaveCode(ctx, "s1", "turn-1", CodeState{Digest: "d1"})
	m.Reset(ctx, "s1")

	if _, ok := m.LoadCode(ctx, "s1"); ok {
		t.Fatalf("expected no memory after reset")
	}
	if got := m.FormatHistoryForPrompt(ctx, "s1"); got != "" {
		t.Fatalf("expected empty history after reset, got %q", got)
	}
}

type failingStore struct{}

func (failingStore) Load(context.Context, string) (SessionMemory, error) {
	return SessionMemory{}, errors.New("disk on fire")
}
func (failingStore) Save(context.Context, SessionMemory) error { return errors.New("disk on fire") }
func (failingStore) Delete(context.Context, string) error      { return errors.New("disk on fire") }
func (failingStore) List(context.Context) ([]string, error)    { return nil, errors.New("disk on fire") }

func TestStoreFailuresDegradeToNoMemory(t *testing.T) {
	m := NewManager(ManagerConfig{Store: failingStore{}})
	ctx := context.Background()

	// None of these may panic or surface an error.
	m.SaveCode(ctx, "s1", "turn-1", CodeState{Digest: "d1"})
	m.RecordModelGenerated(ctx, "s1", "https://cdn.test/m.glb", "p")
	m.RecordSceneSnapshot(ctx, "s1", "p", nil)
	m.Reset(ctx, "s1")

	if _, ok := m.LoadCode(ctx, "s1"); ok {
		t.Fatalf("expected no memory when the store is failing")
	}
	if got := m.FormatHistoryForPrompt(ctx, "s1"); got != "" {
		t.Fatalf("expected empty history when the store is failing, got %q", got)
	}
	if ids := m.Sessions(ctx); ids != nil {
		t.Fatalf("expected nil session list when the store is failing, got %v", ids)
	}
}

func TestEmptySessionIDFallsBackToDefault(t *testing.T) {
	m, _ := newTestManager(1)
	ctx := context.Background()

	m.SaveCode(ctx, "", "turn-1", CodeState{Digest: "d1"})
	state, ok := m.LoadCode(ctx, "default")
	if !ok || state.Digest != "d1" {
		t.Fatalf("expected blank session id to map to default, got %+v ok=%v", state, ok)
	}
}
