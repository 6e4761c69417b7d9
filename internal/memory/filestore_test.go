package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error creating store: %v", err)
	}
	ctx := context.Background()

	mem := SessionMemory{
		SessionID: "s1",
		Code: []Entry[CodeState]{
			{Key: "turn-1", Value: CodeState{Instruction: "add a cube", Digest: "d1"}},
		},
	}
	if err := store.Save(ctx, mem); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	loaded, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if len(loaded.Code) != 1 || loaded.Code[0].Value.Instruction != "add a cube" {
		t.Fatalf("round trip lost data: %+v", loaded)
	}

	ids, err := store.List(ctx)
	if err != nil || len(ids) != 1 || ids[0] != "s1" {
		t.Fatalf("unexpected listing: %v err=%v", ids, err)
	}

	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	if _, err := store.Load(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	// Deleting a missing session is a no-op.
	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("expected idempotent delete, got %v", err)
	}
}

func TestFileStoreMissingSession(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error creating store: %v", err)
	}
	if _, err := store.Load(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFileStoreSanitizesSessionIDs(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("unexpected error creating store: %v", err)
	}
	ctx := context.Background()

	if err := store.Save(ctx, SessionMemory{SessionID: "../escape/attempt"}); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("unexpected readdir error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one file inside the base dir, got %d", len(entries))
	}
	// The same raw id resolves to the same sanitized file.
	if _, err := store.Load(ctx, "../escape/attempt"); err != nil {
		t.Fatalf("expected load by raw id to succeed, got %v", err)
	}
}

func TestFileStoreCorruptFileSurfacesDecodeError(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("unexpected error creating store: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}

	_, err = store.Load(context.Background(), "bad")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected a decode error distinct from ErrNotFound, got %v", err)
	}
}
