package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"sceneforge/internal/logging"
	"sceneforge/internal/objectstore"
	"sceneforge/internal/ports"
)

// storeObjects persists scene object records into the object store.
type storeObjects struct {
	store  *objectstore.Store
	logger logging.Logger
}

// NewStoreObjects creates the scene persistence tool.
func NewStoreObjects(store *objectstore.Store, logger logging.Logger) ports.ToolExecutor {
	return &storeObjects{store: store, logger: logging.OrNop(logger)}
}

func (t *storeObjects) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	raw, ok := call.Arguments["objects"]
	if !ok {
		return failf(call.ID, "store_scene_objects requires 'objects'"), nil
	}

	records, err := decodeRecords(raw)
	if err != nil {
		return failf(call.ID, "objects must be an array of scene records: %v", err), nil
	}
	if len(records) == 0 {
		return &ports.ToolResult{
			CallID:  call.ID,
			Content: "No scene objects to store",
			Data:    map[string]any{"stored": 0},
		}, nil
	}

	stored, err := t.store.Put(ctx, records, stringArg(call.Arguments, "prompt"))
	if err != nil {
		return failf(call.ID, "store scene objects: %v", err), nil
	}

	ids := make([]string, 0, stored)
	for _, record := range records {
		if record.ID != "" {
			ids = append(ids, record.ID)
		}
	}
	t.logger.Debug("store_scene_objects stored %d of %d record(s)", stored, len(records))
	return &ports.ToolResult{
		CallID:  call.ID,
		Content: fmt.Sprintf("Stored %d scene object(s)", stored),
		Data:    map[string]any{"stored": stored, "ids": ids},
	}, nil
}

// decodeRecords accepts both typed slices and the []any shape JSON argument
// maps arrive in.
func decodeRecords(raw any) ([]ports.SceneObjectRecord, error) {
	if records, ok := raw.([]ports.SceneObjectRecord); ok {
		return records, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var records []ports.SceneObjectRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (t *storeObjects) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        NameStoreObjects,
		Description: "Persist the current scene's object records for later retrieval.",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"objects": {
					Type:        "array",
					Description: "Scene object records {id, type, name, position, rotation, scale}",
					Items:       &ports.Property{Type: "object"},
				},
				"prompt": {Type: "string", Description: "Prompt the scene answers, for context"},
			},
			Required: []string{"objects"},
		},
	}
}

func (t *storeObjects) Metadata() ports.ToolMetadata {
	return ports.ToolMetadata{
		Name: NameStoreObjects, Version: "1.0.0", Category: "scene",
	}
}

// retrieveObjects answers exact-id and semantic queries over stored records.
type retrieveObjects struct {
	store *objectstore.Store
}

// NewRetrieveObjects creates the scene retrieval tool.
func NewRetrieveObjects(store *objectstore.Store) ports.ToolExecutor {
	return &retrieveObjects{store: store}
}

func (t *retrieveObjects) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	query := stringArg(call.Arguments, "query")
	if query == "" {
		return failf(call.ID, "retrieve_scene_objects requires a 'query'"), nil
	}
	limit := intArg(call.Arguments, "limit", 5)

	records, err := t.store.Retrieve(ctx, query, limit)
	if err != nil {
		return failf(call.ID, "retrieve scene objects: %v", err), nil
	}

	content := fmt.Sprintf("Found %d scene object(s)", len(records))
	if len(records) == 0 {
		content = fmt.Sprintf("No scene objects matched %q", query)
	}
	return &ports.ToolResult{
		CallID:  call.ID,
		Content: content,
		Data:    map[string]any{"objects": records, "count": len(records)},
	}, nil
}

func (t *retrieveObjects) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        NameRetrieveObjects,
		Description: "Look up stored scene objects by exact id (query \"id:<id>\") or by semantic text.",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"query": {Type: "string", Description: "\"id:<id>\" for exact lookup, otherwise free text"},
				"limit": {Type: "number", Description: "Maximum results for text queries (default 5)"},
			},
			Required: []string{"query"},
		},
	}
}

func (t *retrieveObjects) Metadata() ports.ToolMetadata {
	return ports.ToolMetadata{
		Name: NameRetrieveObjects, Version: "1.0.0", Category: "scene",
	}
}
