package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileDocumentStore keeps each document in <baseDir>/<key>.
type FileDocumentStore struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileDocumentStore creates the base directory if needed.
func NewFileDocumentStore(baseDir string) (*FileDocumentStore, error) {
	//nolint:gosec // G301: registry directory is shared with operators
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to ensure registry dir: %w", err)
	}
	return &FileDocumentStore{baseDir: baseDir}, nil
}

// Path returns the file backing key.
func (s *FileDocumentStore) Path(key string) string {
	return filepath.Join(s.baseDir, key)
}

func (s *FileDocumentStore) Load(ctx context.Context, key string) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

func (s *FileDocumentStore) Save(ctx context.Context, key string, data []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(key)
	// Write to temp, then rename
	tmpPath := path + ".tmp"
	//nolint:gosec // G306: registry documents are not secret
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to commit %s: %w", key, err)
	}
	return nil
}

func validKey(key string) error {
	if key == "" || strings.Contains(key, "..") || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("store: invalid document key %q", key)
	}
	return nil
}
