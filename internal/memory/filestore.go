package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore persists one JSON document per session under a base directory.
type FileStore struct {
	baseDir string
}

// NewFileStore expands a leading ~/ in baseDir and creates the directory.
func NewFileStore(baseDir string) (*FileStore, error) {
	if strings.HasPrefix(baseDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		baseDir = filepath.Join(home, baseDir[2:])
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) path(sessionID string) string {
	return filepath.Join(s.baseDir, sanitizeID(sessionID)+".json")
}

func (s *FileStore) Load(_ context.Context, sessionID string) (SessionMemory, error) {
	data, err := os.ReadFile(s.path(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return SessionMemory{}, ErrNotFound
		}
		return SessionMemory{}, fmt.Errorf("read session memory %s: %w", sessionID, err)
	}
	var mem SessionMemory
	if err := json.Unmarshal(data, &mem); err != nil {
		return SessionMemory{}, fmt.Errorf("decode session memory %s: %w (preview: %s)", sessionID, err, previewJSON(data))
	}
	return mem, nil
}

func (s *FileStore) Save(_ context.Context, mem SessionMemory) error {
	data, err := json.MarshalIndent(mem, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(mem.SessionID), data, 0o644)
}

func (s *FileStore) Delete(_ context.Context, sessionID string) error {
	err := os.Remove(s.path(sessionID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *FileStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			ids = append(ids, strings.TrimSuffix(entry.Name(), ".json"))
		}
	}
	return ids, nil
}

// sanitizeID keeps session ids filesystem-safe; anything outside
// [a-zA-Z0-9._-] becomes an underscore.
func sanitizeID(id string) string {
	if id == "" {
		return "default"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, id)
}

func previewJSON(data []byte) string {
	const maxPreview = 256
	preview := strings.TrimSpace(string(data))
	preview = strings.ReplaceAll(preview, "\n", " ")
	if len(preview) > maxPreview {
		preview = preview[:maxPreview] + "... (truncated)"
	}
	return preview
}
