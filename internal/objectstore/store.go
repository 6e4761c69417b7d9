package objectstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"sceneforge/internal/logging"
	"sceneforge/internal/ports"
)

const (
	defaultCollection = "scene-objects"
	sidecarFile       = "objects.json"
)

// Config holds object store configuration.
type Config struct {
	// Path enables on-disk persistence under this directory; empty keeps
	// everything in memory.
	Path string
	// Collection names the vector collection; empty selects the default.
	Collection string
	Logger     logging.Logger
}

// Store keeps scene object records addressable two ways: exact lookup by id
// and similarity search over a vector collection. The id index is the source
// of truth for record payloads; the collection only ranks.
type Store struct {
	mu         sync.Mutex
	db         *chromem.DB
	collection *chromem.Collection
	records    map[string]ports.SceneObjectRecord
	path       string
	logger     logging.Logger
}

// New creates a Store, reloading any persisted records when Path is set.
func New(config Config) (*Store, error) {
	collectionName := config.Collection
	if collectionName == "" {
		collectionName = defaultCollection
	}

	var db *chromem.DB
	var err error
	if config.Path != "" {
		if err := os.MkdirAll(config.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create object store dir: %w", err)
		}
		db, err = chromem.NewPersistentDB(filepath.Join(config.Path, "chromem"), false)
		if err != nil {
			return nil, fmt.Errorf("open persistent vector store: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	collection, err := db.GetOrCreateCollection(collectionName, nil, tokenHashEmbedding())
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	s := &Store{
		db:         db,
		collection: collection,
		records:    make(map[string]ports.SceneObjectRecord),
		path:       config.Path,
		logger:     logging.OrNop(config.Logger),
	}
	s.loadSidecar()
	return s, nil
}

// Put upserts records by id and reports how many were stored. Records
// without an id are skipped. prompt is the instruction the scene answers and
// is kept as metadata on every record it stored.
func (s *Store) Put(ctx context.Context, objects []ports.SceneObjectRecord, prompt string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := 0
	for _, record := range objects {
		id := strings.TrimSpace(record.ID)
		if id == "" {
			s.logger.Warn("objectstore: skipping record without id (type %q, name %q)", record.Type, record.Name)
			continue
		}
		record.ID = id

		if _, exists := s.records[id]; exists {
			if err := s.collection.Delete(ctx, map[string]string{"id": id}, nil); err != nil {
				return stored, fmt.Errorf("replace object %s: %w", id, err)
			}
		}

		payload, err := json.Marshal(record)
		if err != nil {
			return stored, fmt.Errorf("encode object %s: %w", id, err)
		}
		metadata := map[string]string{
			"id":   id,
			"type": record.Type,
			"name": record.Name,
			"json": string(payload),
		}
		if prompt != "" {
			metadata["prompt"] = prompt
		}
		doc := chromem.Document{
			ID:       id,
			Content:  describeRecord(record),
			Metadata: metadata,
		}
		if err := s.collection.AddDocument(ctx, doc); err != nil {
			return stored, fmt.Errorf("add object %s: %w", id, err)
		}
		s.records[id] = record
		stored++
	}

	if stored > 0 {
		s.saveSidecar()
	}
	return stored, nil
}

// Get returns the record with the given id.
func (s *Store) Get(id string) (ports.SceneObjectRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[strings.TrimSpace(id)]
	return record, ok
}

// Retrieve answers a query. A query of the form "id:<id>" is an exact
// lookup; anything else is a similarity search over the stored records.
func (s *Store) Retrieve(ctx context.Context, query string, limit int) ([]ports.SceneObjectRecord, error) {
	query = strings.TrimSpace(query)
	if limit <= 0 {
		limit = 5
	}

	if rest, ok := strings.CutPrefix(query, "id:"); ok {
		record, found := s.Get(rest)
		if !found {
			return nil, nil
		}
		return []ports.SceneObjectRecord{record}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.collection.Count()
	if n == 0 {
		return nil, nil
	}
	if limit < n {
		n = limit
	}

	results, err := s.collection.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query objects: %w", err)
	}

	out := make([]ports.SceneObjectRecord, 0, len(results))
	for _, r := range results {
		var record ports.SceneObjectRecord
		if err := json.Unmarshal([]byte(r.Metadata["json"]), &record); err != nil {
			s.logger.Warn("objectstore: undecodable record %s: %v", r.ID, err)
			continue
		}
		out = append(out, record)
	}
	return out, nil
}

// ListIDs returns every stored id in sorted order.
func (s *Store) ListIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len reports how many records are stored.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// describeRecord builds the searchable text for a record.
func describeRecord(record ports.SceneObjectRecord) string {
	parts := make([]string, 0, 3)
	if record.Type != "" {
		parts = append(parts, record.Type)
	}
	if record.Name != "" {
		parts = append(parts, record.Name)
	}
	parts = append(parts, record.ID)
	return strings.Join(parts, " ")
}

// loadSidecar restores the id index written by a previous process. The
// vector collection reloads itself; only the record payload index needs help.
func (s *Store) loadSidecar() {
	if s.path == "" {
		return
	}
	data, err := os.ReadFile(filepath.Join(s.path, sidecarFile))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("objectstore: read sidecar: %v", err)
		}
		return
	}
	records := make(map[string]ports.SceneObjectRecord)
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warn("objectstore: decode sidecar: %v (starting empty)", err)
		return
	}
	s.records = records
}

func (s *Store) saveSidecar() {
	if s.path == "" {
		return
	}
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		s.logger.Warn("objectstore: encode sidecar: %v", err)
		return
	}
	if err := os.WriteFile(filepath.Join(s.path, sidecarFile), data, 0o644); err != nil {
		s.logger.Warn("objectstore: write sidecar: %v", err)
	}
}
