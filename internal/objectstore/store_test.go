package objectstore

import (
	"context"
	"testing"

	"sceneforge/internal/logging"
	"sceneforge/internal/ports"
)

func newTestStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := New(Config{Path: path, Logger: logging.Nop()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func cubeRecord() ports.SceneObjectRecord {
	return ports.SceneObjectRecord{
		ID:       "cube-1",
		Type:     "Mesh",
		Name:     "red cube",
		Position: [3]float64{0, 0.5, 0},
	}
}

func treeRecord() ports.SceneObjectRecord {
	return ports.SceneObjectRecord{
		ID:   "tree-1",
		Type: "Group",
		Name: "oak tree trunk",
	}
}

func TestStorePutAndGet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "")

	stored, err := store.Put(ctx, []ports.SceneObjectRecord{cubeRecord(), treeRecord()}, "a cube and a tree")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if stored != 2 {
		t.Fatalf("stored = %d, want 2", stored)
	}

	record, ok := store.Get("cube-1")
	if !ok {
		t.Fatal("cube-1 not found")
	}
	if record.Name != "red cube" || record.Position[1] != 0.5 {
		t.Fatalf("record = %+v", record)
	}

	ids := store.ListIDs()
	if len(ids) != 2 || ids[0] != "cube-1" || ids[1] != "tree-1" {
		t.Fatalf("ids = %v", ids)
	}
	if store.Len() != 2 {
		t.Fatalf("Len = %d", store.Len())
	}
}

func TestStoreRetrieveByIDPrefix(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "")

	if _, err := store.Put(ctx, []ports.SceneObjectRecord{cubeRecord(), treeRecord()}, "a cube and a tree"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Retrieve(ctx, "id:cube-1", 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 1 || got[0].ID != "cube-1" {
		t.Fatalf("got = %+v", got)
	}

	missing, err := store.Retrieve(ctx, "id:nope", 5)
	if err != nil {
		t.Fatalf("Retrieve missing: %v", err)
	}
	if len(missing) != 0 {
		t.Fatalf("missing = %+v", missing)
	}
}

func TestStoreRetrieveBySimilarity(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "")

	if _, err := store.Put(ctx, []ports.SceneObjectRecord{cubeRecord(), treeRecord()}, "a cube and a tree"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Retrieve(ctx, "red cube", 1)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1", len(got))
	}
	if got[0].ID != "cube-1" {
		t.Fatalf("top match = %q, want cube-1", got[0].ID)
	}
}

func TestStoreUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "")

	if _, err := store.Put(ctx, []ports.SceneObjectRecord{cubeRecord()}, "a cube"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	updated := cubeRecord()
	updated.Name = "blue cube"
	if _, err := store.Put(ctx, []ports.SceneObjectRecord{updated}, "a cube"); err != nil {
		t.Fatalf("Put updated: %v", err)
	}

	record, ok := store.Get("cube-1")
	if !ok || record.Name != "blue cube" {
		t.Fatalf("record = %+v, ok = %v", record, ok)
	}
	if store.Len() != 1 {
		t.Fatalf("Len = %d, want 1 after upsert", store.Len())
	}
}

func TestStoreSkipsBlankIDs(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "")

	stored, err := store.Put(ctx, []ports.SceneObjectRecord{
		{Type: "Mesh", Name: "nameless"},
		cubeRecord(),
	}, "a cube")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if stored != 1 {
		t.Fatalf("stored = %d, want 1", stored)
	}
	if store.Len() != 1 {
		t.Fatalf("Len = %d, want 1", store.Len())
	}
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store := newTestStore(t, dir)
	if _, err := store.Put(ctx, []ports.SceneObjectRecord{cubeRecord()}, "a cube"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	reopened := newTestStore(t, dir)
	record, ok := reopened.Get("cube-1")
	if !ok {
		t.Fatal("record lost across reopen")
	}
	if record.Name != "red cube" {
		t.Fatalf("record = %+v", record)
	}

	got, err := reopened.Retrieve(ctx, "red cube", 1)
	if err != nil {
		t.Fatalf("Retrieve after reopen: %v", err)
	}
	if len(got) != 1 || got[0].ID != "cube-1" {
		t.Fatalf("got = %+v", got)
	}
}

func TestStoreRetrieveEmpty(t *testing.T) {
	store := newTestStore(t, "")

	got, err := store.Retrieve(context.Background(), "anything", 3)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got = %+v, want empty", got)
	}
}
