package memory

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned when a session has no stored memory.
var ErrNotFound = errors.New("session memory not found")

// Store persists SessionMemory keyed by session id.
type Store interface {
	Load(ctx context.Context, sessionID string) (SessionMemory, error)
	Save(ctx context.Context, mem SessionMemory) error
	Delete(ctx context.Context, sessionID string) error
	List(ctx context.Context) ([]string, error)
}

// InMemoryStore is a lightweight Store implementation for tests and
// single-process deployments without persistence.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]SessionMemory
}

// NewInMemoryStore constructs an in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]SessionMemory)}
}

func (s *InMemoryStore) Load(_ context.Context, sessionID string) (SessionMemory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mem, ok := s.sessions[sessionID]
	if !ok {
		return SessionMemory{}, ErrNotFound
	}
	return mem, nil
}

func (s *InMemoryStore) Save(_ context.Context, mem SessionMemory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[mem.SessionID] = mem
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *InMemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids, nil
}
