package storage

import (
	"context"
	"errors"

	"github.com/ohadgu/api-agent/internal/task"
)

// ErrNotFound is returned when no record exists for the requested id.
var ErrNotFound = errors.New("task record not found")

// Store persists task lifecycle records keyed by task id.
//
// Mutate is the only write path: it applies fn atomically to the record
// for id, so concurrent hook deliveries for the same id serialize into
// consistent read-modify-write cycles instead of racing check-then-write
// sequences. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns a copy of the record for id, or ErrNotFound.
	Get(ctx context.Context, id string) (*task.Record, error)

	// Mutate atomically applies fn to the record for id. fn receives nil
	// when no record exists. Returning a non-nil record persists it;
	// returning nil leaves the store unchanged (a deliberate no-op).
	Mutate(ctx context.Context, id string, fn func(rec *task.Record) (*task.Record, error)) error

	// Close releases any resources held by the store.
	Close() error
}
