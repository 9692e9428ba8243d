// Package persist implements the external persistence collaborator: a
// scoped key/value store for pipeline and preset definitions. The engine
// treats it as synchronous request/response and never depends on its
// on-disk layout.
package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Scope partitions keys so global settings and per-pipeline presets do
// not collide.
type Scope string

const (
	// ScopeGlobal holds settings shared across all pipelines.
	ScopeGlobal Scope = "global"
	// ScopePipeline holds per-pipeline definitions.
	ScopePipeline Scope = "pipeline"
	// ScopePreset holds exported component presets.
	ScopePreset Scope = "preset"
)

// Store is the persistence contract the rest of the system codes against.
type Store interface {
	// Save writes data under the scoped key.
	Save(key string, data []byte, scope Scope) error
	// Load reads the data stored under the scoped key.
	Load(key string, scope Scope) ([]byte, error)
	// Delete removes the scoped key. Missing keys are not an error.
	Delete(key string, scope Scope) error
	// Keys lists all keys in a scope.
	Keys(scope Scope) ([]string, error)
}

// FileStore is a file-backed Store. Each scope is a directory and each
// key a JSON-safe file name within it.
type FileStore struct {
	root string
	mu   sync.RWMutex
}

// NewFileStore creates a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &FileStore{root: dir}, nil
}

// Save writes data under the scoped key.
func (s *FileStore) Save(key string, data []byte, scope Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.root, string(scope))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create scope directory: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, key+".json"), data, 0644)
}

// Load reads the data stored under the scoped key.
func (s *FileStore) Load(key string, scope Scope) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(s.root, string(scope), key+".json"))
	if err != nil {
		return nil, fmt.Errorf("load %s/%s: %w", scope, key, err)
	}
	return data, nil
}

// Delete removes the scoped key. Missing keys are not an error.
func (s *FileStore) Delete(key string, scope Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(filepath.Join(s.root, string(scope), key+".json"))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Keys lists all keys in a scope.
func (s *FileStore) Keys(scope Scope) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(filepath.Join(s.root, string(scope)))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var keys []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if filepath.Ext(name) == ".json" {
			keys = append(keys, name[:len(name)-len(".json")])
		}
	}
	return keys, nil
}

// SaveJSON marshals v and saves it under the scoped key.
func SaveJSON(s Store, key string, v any, scope Scope) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", scope, key, err)
	}
	return s.Save(key, data, scope)
}

// LoadJSON loads the scoped key and unmarshals it into v.
func LoadJSON(s Store, key string, v any, scope Scope) error {
	data, err := s.Load(key, scope)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s/%s: %w", scope, key, err)
	}
	return nil
}
