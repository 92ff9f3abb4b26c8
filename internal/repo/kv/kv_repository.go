// Package kv provides the string key/value substrates the session store mirrors its
// state into. All implementations are interchangeable.
package kv

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnknownStorageKind is returned when the configured storage kind is not supported.
	ErrUnknownStorageKind = errors.New("unknown storage kind")
	// ErrStorageFull is returned when the substrate rejects a write for lack of space.
	ErrStorageFull = errors.New("storage full")
	// ErrClosed is returned by operations on a closed repository.
	ErrClosed = errors.New("repository closed")
)

// Storage kinds accepted by RepositoryConfig.Kind.
const (
	KindMemory = "memory"
	KindFile   = "file"
	KindSQLite = "sqlite"
)

// Repository is a synchronous string key/value store.
type Repository interface {
	// Get returns the value stored under key.
	// Returns false if the key does not exist.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Close releases any resources held by the repository.
	Close() error
}

// RepositoryFactory is a function that creates a new Repository instance.
type RepositoryFactory func(ctx context.Context) (Repository, error)

// RepositoryConfig selects and configures a storage substrate.
type RepositoryConfig struct {
	// Kind is one of "memory", "file" or "sqlite"
	Kind string `env:"KIND" default:"sqlite"`

	File   FileSystemKVRepositoryConfig `envPrefix:"FILE_"`
	SQLite SQLiteKVRepositoryConfig     `envPrefix:"SQLITE_"`
}

// NewRepositoryFactory returns the factory for the configured storage kind.
func NewRepositoryFactory(cfg RepositoryConfig) (RepositoryFactory, error) {
	switch cfg.Kind {
	case KindMemory:
		return func(context.Context) (Repository, error) {
			return NewMemoryKVRepository(), nil
		}, nil
	case KindFile:
		return FileSystemKVRepositoryFactory(cfg.File), nil
	case KindSQLite:
		return SQLiteKVRepositoryFactory(cfg.SQLite), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStorageKind, cfg.Kind)
	}
}
