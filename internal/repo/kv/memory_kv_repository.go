package kv

import (
	"context"
	"sync"
)

// MemoryKVRepository implements Repository with a map. Write failures can be
// injected to exercise degraded persistence.
type MemoryKVRepository struct {
	m        sync.Mutex
	values   map[string]string
	writeErr error
	writes   int
	closed   bool
}

var _ Repository = (*MemoryKVRepository)(nil)

// NewMemoryKVRepository creates an empty in-memory repository.
func NewMemoryKVRepository() *MemoryKVRepository {
	return &MemoryKVRepository{values: make(map[string]string)}
}

// Get implements Repository.Get.
func (r *MemoryKVRepository) Get(_ context.Context, key string) (string, bool, error) {
	r.m.Lock()
	defer r.m.Unlock()

	if r.closed {
		return "", false, ErrClosed
	}

	value, ok := r.values[key]

	return value, ok, nil
}

// Set implements Repository.Set.
func (r *MemoryKVRepository) Set(_ context.Context, key, value string) error {
	r.m.Lock()
	defer r.m.Unlock()

	if err := r.beginWrite(); err != nil {
		return err
	}

	r.values[key] = value

	return nil
}

// Remove implements Repository.Remove.
func (r *MemoryKVRepository) Remove(_ context.Context, key string) error {
	r.m.Lock()
	defer r.m.Unlock()

	if err := r.beginWrite(); err != nil {
		return err
	}

	delete(r.values, key)

	return nil
}

func (r *MemoryKVRepository) beginWrite() error {
	if r.closed {
		return ErrClosed
	}

	r.writes++

	return r.writeErr
}

// Close implements Repository.Close.
func (r *MemoryKVRepository) Close() error {
	r.m.Lock()
	defer r.m.Unlock()

	r.closed = true

	return nil
}

// FailWrites makes every following Set and Remove return err. A nil err restores writes.
func (r *MemoryKVRepository) FailWrites(err error) {
	r.m.Lock()
	defer r.m.Unlock()

	r.writeErr = err
}

// Writes returns the number of attempted Set and Remove calls.
func (r *MemoryKVRepository) Writes() int {
	r.m.Lock()
	defer r.m.Unlock()

	return r.writes
}

// Snapshot returns a copy of all stored values.
func (r *MemoryKVRepository) Snapshot() map[string]string {
	r.m.Lock()
	defer r.m.Unlock()

	out := make(map[string]string, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}

	return out
}
