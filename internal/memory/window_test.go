package memory

import (
	"fmt"
	"strings"
	"testing"
)

func TestWindowEvictsOldestPastCapacity(t *testing.T) {
	w := NewWindow[int](3)
	for i := 1; i <= 5; i++ {
		w.Push(Entry[int]{Key: fmt.Sprintf("k%d", i), Value: i})
	}

	if w.Len() != 3 {
		t.Fatalf("expected window bounded at 3, got %d", w.Len())
	}
	entries := w.Entries()
	for i, want := range []int{3, 4, 5} {
		if entries[i].Value != want {
			t.Fatalf("expected the 3 most recent entries, got %v", entries)
		}
	}
	latest, ok := w.Latest()
	if !ok || latest.Value != 5 {
		t.Fatalf("unexpected latest entry: %+v ok=%v", latest, ok)
	}
}

func TestWindowCapacityCoercedToOne(t *testing.T) {
	w := NewWindow[string](0)
	if w.Cap() != 1 {
		t.Fatalf("expected capacity 1, got %d", w.Cap())
	}
	w.Push(Entry[string]{Value: "a"})
	w.Push(Entry[string]{Value: "b"})
	if w.Len() != 1 {
		t.Fatalf("expected single entry, got %d", w.Len())
	}
	latest, _ := w.Latest()
	if latest.Value != "b" {
		t.Fatalf("expected newest entry to survive, got %q", latest.Value)
	}
}

func TestWindowClear(t *testing.T) {
	w := NewWindow[int](2)
	w.Push(Entry[int]{Value: 1})
	w.Clear()
	if w.Len() != 0 {
		t.Fatalf("expected empty window after clear")
	}
	if _, ok := w.Latest(); ok {
		t.Fatalf("expected no latest entry after clear")
	}
}

func TestDigestShortCodeUnchanged(t *testing.T) {
	code := "function setupScene(scene) { scene.add(cube); }"
	if got := Digest(code); got != code {
		t.Fatalf("short code must pass through unchanged, got %q", got)
	}
}

func TestDigestLongCodeKeepsHeadTailAndLength(t *testing.T) {
	head := strings.Repeat("A", 250)
	tail := strings.Repeat("Z", 250)
	code := head + strings.Repeat("m", 1000) + tail

	got := Digest(code)
	if !strings.HasPrefix(got, strings.Repeat("A", 200)) {
		t.Fatalf("digest must start with the code head")
	}
	if !strings.HasSuffix(got, strings.Repeat("Z", 200)) {
		t.Fatalf("digest must end with the code tail")
	}
	if !strings.Contains(got, fmt.Sprintf("%d chars total", len(code))) {
		t.Fatalf("digest must state the total length, got %q", got)
	}
	if len(got) >= len(code) {
		t.Fatalf("digest must be shorter than the original")
	}
}
