package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/mkrupp/learnai-dashboard/internal/infra/logging"
	"github.com/mkrupp/learnai-dashboard/internal/util/encoding"
)

const (
	shardPrefixLength = 2
	shardDepth        = 2
	valueExt          = "val"
)

// FileSystemKVRepositoryConfig holds configuration for the filesystem-based key/value repository.
type FileSystemKVRepositoryConfig struct {
	// Basedir is the root directory for stored values
	Basedir string `env:"BASEDIR" default:"var/storage/kv"`
}

// FileSystemKVRepositoryFactory creates a factory function that returns a new FileSystemKVRepository.
func FileSystemKVRepositoryFactory(cfg FileSystemKVRepositoryConfig) RepositoryFactory {
	return func(ctx context.Context) (Repository, error) {
		return NewFileSystemKVRepository(ctx, cfg)
	}
}

// NewFileSystemKVRepository creates the base directory and returns a repository rooted there.
func NewFileSystemKVRepository(
	ctx context.Context,
	cfg FileSystemKVRepositoryConfig,
) (*FileSystemKVRepository, error) {
	log := logging.GetLogger("repo.kv.filesystem").With(
		logging.Group("repo", "basedir", cfg.Basedir),
	)

	repo := &FileSystemKVRepository{
		cfg: cfg,
		log: log,
		m:   new(sync.Mutex),
	}

	if err := repo.initStorage(ctx); err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}

	return repo, nil
}

// FileSystemKVRepository implements Repository with one file per key. Keys are
// Crockford-encoded into file names and sharded into nested directories.
type FileSystemKVRepository struct {
	cfg FileSystemKVRepositoryConfig
	log logging.Logger
	m   *sync.Mutex
}

var _ Repository = (*FileSystemKVRepository)(nil)

// Get implements Repository.Get.
func (r *FileSystemKVRepository) Get(ctx context.Context, key string) (value string, found bool, err error) {
	filename := r.Filename(key)

	defer func() {
		log := r.log.With(logging.Group("kv", "key", key, "filename", filename))
		if err != nil {
			log.ErrorContext(ctx, "value fetch failed", "error", err)
		} else {
			log.DebugContext(ctx, "value fetched", "found", found)
		}
	}()

	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}

		return "", false, fmt.Errorf("read: %w", err)
	}

	return string(data), true, nil
}

// Set implements Repository.Set. The value is written to a temporary file and renamed
// into place while holding an exclusive lock on the key.
func (r *FileSystemKVRepository) Set(ctx context.Context, key, value string) (err error) {
	filename := r.Filename(key)

	defer func() {
		log := r.log.With(logging.Group("kv", "key", key, "filename", filename))
		if err != nil {
			log.ErrorContext(ctx, "value store failed", "error", err)
		} else {
			log.DebugContext(ctx, "value stored", "size", len(value))
		}
	}()

	r.m.Lock()
	defer r.m.Unlock()

	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("mkdir all: %w", err)
	}

	release, err := r.flock(ctx, filename)
	if err != nil {
		return fmt.Errorf("lock: %w", err)
	}
	defer release()

	tmp, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.WriteString(value); err != nil {
		_ = tmp.Close()

		return classifyWriteErr(fmt.Errorf("write: %w", err))
	} else if err := tmp.Sync(); err != nil {
		_ = tmp.Close()

		return classifyWriteErr(fmt.Errorf("sync: %w", err))
	} else if err := tmp.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	if err := os.Rename(tmp.Name(), filename); err != nil {
		return fmt.Errorf("rename: %w", err)
	}

	return nil
}

// Remove implements Repository.Remove.
func (r *FileSystemKVRepository) Remove(ctx context.Context, key string) (err error) {
	filename := r.Filename(key)

	defer func() {
		log := r.log.With(logging.Group("kv", "key", key, "filename", filename))
		if err != nil {
			log.ErrorContext(ctx, "value delete failed", "error", err)
		} else {
			log.DebugContext(ctx, "value deleted")
		}
	}()

	r.m.Lock()
	defer r.m.Unlock()

	if err := os.Remove(filename); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove: %w", err)
	}

	return nil
}

// Close implements Repository.Close.
func (r *FileSystemKVRepository) Close() error {
	return nil
}

// Filename returns the full filesystem path holding the value for key.
func (r *FileSystemKVRepository) Filename(key string) string {
	// Empty keys still need a non-empty basename
	basename := "_" + encoding.EncodeCrockfordB32LC([]byte(key))

	// e.g. var/storage/kv/_d/hg/_dhgp6ww...val
	parts := []string{r.cfg.Basedir}
	for i := 1; i+shardPrefixLength <= len(basename) && len(parts) <= shardDepth; i += shardPrefixLength {
		parts = append(parts, basename[i:i+shardPrefixLength])
	}

	return filepath.Join(append(parts, basename+"."+valueExt)...)
}

func (r *FileSystemKVRepository) initStorage(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			r.log.ErrorContext(ctx, "init storage failed", "error", err)
		} else {
			r.log.DebugContext(ctx, "init storage")
		}
	}()

	if err := os.MkdirAll(r.cfg.Basedir, 0o755); err != nil {
		return fmt.Errorf("mkdir all: %w", err)
	}

	return nil
}

func (r *FileSystemKVRepository) flock(ctx context.Context, filename string) (release func(), err error) {
	lockfile := filename + ".lock"
	log := r.log.With(logging.Group("kv", "lockfile", lockfile))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "lock failed", "error", err)
		} else {
			log.DebugContext(ctx, "lock acquired")
		}
	}()

	file, err := os.OpenFile(lockfile, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX); err != nil {
		_ = file.Close()

		return nil, fmt.Errorf("flock: %w", err)
	}

	return func() {
		_ = syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		_ = file.Close()
		_ = os.Remove(lockfile)

		log.DebugContext(ctx, "lock released")
	}, nil
}

func classifyWriteErr(err error) error {
	if errors.Is(err, syscall.ENOSPC) || errors.Is(err, syscall.EDQUOT) {
		return errors.Join(ErrStorageFull, err)
	}

	return err
}
