package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mkrupp/learnai-dashboard/internal/infra/logging"
)

// SQLiteKVRepositoryConfig holds configuration for the SQLite key/value repository.
type SQLiteKVRepositoryConfig struct {
	// DatabasePath is the filesystem path to the SQLite database file
	DatabasePath string `env:"DATABASE_PATH" default:"var/storage/learnsvc.db"`

	// BusyTimeout bounds how long a write waits on a locked database
	BusyTimeout time.Duration `env:"BUSY_TIMEOUT" default:"5s"`
}

// SQLiteKVRepository implements Repository using SQLite as the storage backend.
type SQLiteKVRepository struct {
	db        *sql.DB
	log       logging.Logger
	writeLock *sync.Mutex // go-sqlite does not support concurrent writes
}

var _ Repository = (*SQLiteKVRepository)(nil)

// SQLiteKVRepositoryFactory creates a factory function that returns a new SQLiteKVRepository.
func SQLiteKVRepositoryFactory(cfg SQLiteKVRepositoryConfig) RepositoryFactory {
	return func(ctx context.Context) (Repository, error) {
		return NewSQLiteKVRepository(ctx, cfg)
	}
}

// NewSQLiteKVRepository opens the database and creates the schema if needed.
func NewSQLiteKVRepository(ctx context.Context, cfg SQLiteKVRepositoryConfig) (*SQLiteKVRepository, error) {
	log := logging.GetLogger("repo.kv.sqlite").With(
		logging.Group("db", "path", cfg.DatabasePath),
	)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir all: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping db: %w", err)
	}

	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds())); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := initializeDB(ctx, db); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("initialize db: %w", err)
	}

	log.DebugContext(ctx, "database opened")

	return &SQLiteKVRepository{
		db:        db,
		log:       log,
		writeLock: new(sync.Mutex),
	}, nil
}

func initializeDB(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kv (
			key        TEXT    PRIMARY KEY,
			value      TEXT    NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// Get implements Repository.Get using SQLite.
func (r *SQLiteKVRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string

	err := r.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}

		return "", false, fmt.Errorf("query value: %w", err)
	}

	return value, true, nil
}

// Set implements Repository.Set using SQLite.
func (r *SQLiteKVRepository) Set(ctx context.Context, key, value string) (err error) {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	defer func() {
		if err != nil {
			r.log.ErrorContext(ctx, "value store failed", "error", err, logging.Group("kv", "key", key))
		}
	}()

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key,
		value,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert value: %w", classifySQLiteErr(err))
	}

	return nil
}

// Remove implements Repository.Remove using SQLite.
func (r *SQLiteKVRepository) Remove(ctx context.Context, key string) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	if _, err := r.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete value: %w", classifySQLiteErr(err))
	}

	return nil
}

// Close implements Repository.Close by closing the database connection.
func (r *SQLiteKVRepository) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}

func classifySQLiteErr(err error) error {
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_FULL:
			return errors.Join(ErrStorageFull, err)
		default:
			break
		}
	}

	return err
}
