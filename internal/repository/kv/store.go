package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Store defines persistence operations for opaque values addressed by key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Close() error
}

var (
	// ErrNotFound is returned when no value is stored under the key.
	ErrNotFound = errors.New("key not found")
	// errInvalidKey is returned for keys that cannot be mapped to storage.
	errInvalidKey = errors.New("invalid key")
)

// Open returns the store described by location: a redis:// or rediss:// URL
// selects Redis, a file:// URL or a bare path selects a directory on disk.
//
//nolint:ireturn // Callers only depend on the Store contract.
func Open(location string) (Store, error) {
	switch {
	case strings.HasPrefix(location, "redis://"), strings.HasPrefix(location, "rediss://"):
		store, err := NewRedisStore(location)
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}

		return store, nil
	case strings.HasPrefix(location, "file://"):
		return NewFileStore(strings.TrimPrefix(location, "file://")), nil
	default:
		return NewFileStore(location), nil
	}
}

// validateKey rejects keys that would escape a directory or be ambiguous.
func validateKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("%w: %q", errInvalidKey, key)
	}

	return nil
}
