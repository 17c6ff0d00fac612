// Package store reads and writes published objects in a bucket or a
// local directory.
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNotFound is returned by Get when no object exists under the key.
var ErrNotFound = errors.New("object not found")

// Attrs are the HTTP metadata stored with an object.
type Attrs struct {
	ContentType     string
	ContentEncoding string
	CacheControl    string
}

// Store is the interface for an object store keyed by path.
// Put overwrites any existing object under the key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, attrs Attrs) error
}

// LocalStore is a file-based implementation of Store.
// Attrs are not persisted.
type LocalStore struct {
	dir string
	mu  sync.RWMutex
}

// NewLocal creates a new LocalStore rooted at dir.
func NewLocal(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &LocalStore{dir: dir}, nil
}

// Dir returns the root directory.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Get reads the object stored under key.
func (s *LocalStore) Get(ctx context.Context, key string) ([]byte, error) {
	path, err := s.keyPath(key)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Put writes data under key, creating parent directories as needed.
func (s *LocalStore) Put(ctx context.Context, key string, data []byte, attrs Attrs) error {
	path, err := s.keyPath(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (s *LocalStore) keyPath(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(s.dir, clean), nil
}
