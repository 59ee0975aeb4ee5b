package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	json "github.com/goccy/go-json"
)

const modelNameKey = "model_name"

// SessionStore persists the user's selected model between runs in a small
// JSON file. Unknown keys in the file are preserved on write.
type SessionStore struct {
	mu   sync.Mutex
	path string
}

func NewSessionStore(path string) *SessionStore {
	if path == "" {
		path = DefaultSessionFile
	}
	return &SessionStore{path: path}
}

func (s *SessionStore) Path() string { return s.path }

// SavedModelName returns the stored model name. A missing or unreadable file
// counts as nothing saved.
func (s *SessionStore) SavedModelName() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.read()
	if err != nil {
		return "", false
	}
	name, ok := m[modelNameKey].(string)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// SetSavedModelName records name as the selected model.
func (s *SessionStore) SetSavedModelName(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.read()
	if err != nil {
		m = map[string]any{}
	}
	m[modelNameKey] = name
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("session dir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return os.Rename(tmp, s.path)
}

func (s *SessionStore) read() (map[string]any, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, err
	}
	m := map[string]any{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}
