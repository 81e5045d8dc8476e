package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/oshokin/solar-monitor/internal/config"
)

// fileExtension is appended to keys to build file names.
const fileExtension = ".json"

// FileStore persists each key as a JSON file inside a directory.
type FileStore struct {
	// dir is the directory holding one file per key.
	dir string
	// mu serializes file access.
	mu sync.Mutex
}

// NewFileStore creates a store rooted at dir. The directory is created on first write.
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = "."
	}

	return &FileStore{
		dir: filepath.Clean(dir),
	}
}

// Get reads the value stored under key.
func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	contents, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read %s: %w", key, err)
	}

	return contents, nil
}

// Put writes value under key, replacing the previous file atomically.
func (s *FileStore) Put(_ context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}

	tmpName := tmp.Name()

	if _, err = tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)

		return fmt.Errorf("write %s: %w", key, err)
	}

	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("close %s: %w", key, err)
	}

	if err = os.Chmod(tmpName, config.DefaultFilePermissions); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("chmod %s: %w", key, err)
	}

	if err = os.Rename(tmpName, s.path(key)); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("replace %s: %w", key, err)
	}

	return nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error {
	return nil
}

// Path returns the file backing key.
func (s *FileStore) Path(key string) string {
	return s.path(key)
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+fileExtension)
}
