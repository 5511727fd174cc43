package storage

import (
	"context"
	"sync"

	"github.com/ohadgu/api-agent/internal/task"
)

// MemoryStore is an in-process Store for tests and single-node runs.
// A single mutex serializes every Mutate, which trivially satisfies the
// per-id atomicity contract.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*task.Record
}

// NewMemoryStore creates an empty in-memory record store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*task.Record),
	}
}

// Get returns a copy of the record for id
func (ms *MemoryStore) Get(ctx context.Context, id string) (*task.Record, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	rec, ok := ms.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

// Mutate applies fn to a copy of the stored record and persists the
// result, all under the store lock.
func (ms *MemoryStore) Mutate(ctx context.Context, id string, fn func(rec *task.Record) (*task.Record, error)) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var current *task.Record
	if rec, ok := ms.records[id]; ok {
		current = rec.Clone()
	}

	updated, err := fn(current)
	if err != nil {
		return err
	}
	if updated == nil {
		return nil
	}

	ms.records[id] = updated.Clone()
	return nil
}

// Close is a no-op for the in-memory store
func (ms *MemoryStore) Close() error {
	return nil
}

// Len reports the number of stored records (test helper)
func (ms *MemoryStore) Len() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.records)
}
