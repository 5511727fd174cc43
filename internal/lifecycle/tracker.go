// Package lifecycle owns the durable TaskRecord lifecycle: the hooks
// invoked around each unit of work and the read path clients poll.
//
// Hook delivery is at-least-once and may arrive out of order, so every
// mutation funnels through the store's atomic per-id read-modify-write
// and each transition is written last-writer-wins. A bookkeeping
// failure is never a task failure: hooks log store errors and return.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/ohadgu/api-agent/internal/logger"
	"github.com/ohadgu/api-agent/internal/storage"
	"github.com/ohadgu/api-agent/internal/task"
)

// Hooks is the callback surface the worker wrapper invokes around each
// execution. Implementations must tolerate duplicated and reordered
// delivery for the same task id.
type Hooks interface {
	OnStart(ctx context.Context, id, name string, args, kwargs interface{})
	OnSuccess(ctx context.Context, id string, result interface{})
	OnFailure(ctx context.Context, id string, execErr error)
}

// QueryResult is the client-facing projection of a record
type QueryResult struct {
	Status task.Status `json:"status"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// Tracker records task state transitions in a Store
type Tracker struct {
	store    storage.Store
	log      *logger.Logger
	now      func() time.Time
	valueCap int
}

// Option configures a Tracker
type Option func(*Tracker)

// WithClock overrides the wall clock (tests use a fixed clock so
// durations are deterministic)
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithValueCap overrides the serialized-size cap for args/kwargs/results
func WithValueCap(cap int) Option {
	return func(t *Tracker) { t.valueCap = cap }
}

// NewTracker creates a tracker over the given store
func NewTracker(store storage.Store, opts ...Option) *Tracker {
	t := &Tracker{
		store:    store,
		log:      logger.GetDefault().WithComponent("lifecycle"),
		now:      time.Now,
		valueCap: task.DefaultValueCap,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// OnEnqueue writes the initial PENDING record. Unlike the other hooks it
// returns the store error: the dispatcher must report a failed write to
// the caller instead of answering "queued".
func (t *Tracker) OnEnqueue(ctx context.Context, id, name, queue string, args, kwargs interface{}) error {
	now := t.now()
	err := t.store.Mutate(ctx, id, func(rec *task.Record) (*task.Record, error) {
		if rec != nil {
			// Worker beat us to it; the upsert in OnStart already
			// created the record. Leave it alone.
			return nil, nil
		}
		return &task.Record{
			ID:        id,
			Name:      name,
			Status:    task.StatusPending,
			Queue:     queue,
			CreatedAt: now,
			Args:      task.BoundValue(args, t.valueCap),
			Kwargs:    task.BoundValue(kwargs, t.valueCap),
		}, nil
	})
	if err != nil {
		return fmt.Errorf("failed to write pending record for task %s: %w", id, err)
	}
	return nil
}

// OnStart upserts the record to STARTED. started_at is set on the first
// delivery only; duplicates must not reset it.
func (t *Tracker) OnStart(ctx context.Context, id, name string, args, kwargs interface{}) {
	now := t.now()
	err := t.store.Mutate(ctx, id, func(rec *task.Record) (*task.Record, error) {
		if rec == nil {
			// Worker outran the dispatcher's own write
			rec = &task.Record{ID: id, CreatedAt: now}
		}
		rec.Name = name
		rec.Status = task.StatusStarted
		if rec.StartedAt == nil {
			started := now
			rec.StartedAt = &started
		}
		rec.Args = task.BoundValue(args, t.valueCap)
		rec.Kwargs = task.BoundValue(kwargs, t.valueCap)
		return rec, nil
	})
	if err != nil {
		t.log.Error("Failed to record task start", logger.Fields{
			"task_id": id,
			"name":    name,
			"error":   err.Error(),
		})
	}
}

// OnSuccess marks the record SUCCESS, stores the bounded result and
// clears any prior error. An absent record is logged and skipped: a
// finished-without-started record is never fabricated.
func (t *Tracker) OnSuccess(ctx context.Context, id string, result interface{}) {
	now := t.now()
	missing := false
	err := t.store.Mutate(ctx, id, func(rec *task.Record) (*task.Record, error) {
		if rec == nil {
			missing = true
			return nil, nil
		}
		rec.Status = task.StatusSuccess
		rec.MarkFinished(now)
		rec.Result = task.BoundValue(result, t.valueCap)
		rec.Error = ""
		return rec, nil
	})
	if err != nil {
		t.log.Error("Failed to record task success", logger.Fields{
			"task_id": id,
			"error":   err.Error(),
		})
		return
	}
	if missing {
		t.log.Warn("Success reported for unknown task", logger.Fields{
			"task_id": id,
		})
	}
}

// OnFailure marks the record FAILURE, stores the bounded error message
// and clears any prior result.
func (t *Tracker) OnFailure(ctx context.Context, id string, execErr error) {
	now := t.now()
	missing := false
	err := t.store.Mutate(ctx, id, func(rec *task.Record) (*task.Record, error) {
		if rec == nil {
			missing = true
			return nil, nil
		}
		rec.Status = task.StatusFailure
		rec.MarkFinished(now)
		if execErr != nil {
			rec.Error = task.BoundError(execErr.Error())
		} else {
			rec.Error = "UNKNOWN_ERROR"
		}
		rec.Result = nil
		return rec, nil
	})
	if err != nil {
		t.log.Error("Failed to record task failure", logger.Fields{
			"task_id": id,
			"error":   err.Error(),
		})
		return
	}
	if missing {
		t.log.Warn("Failure reported for unknown task", logger.Fields{
			"task_id": id,
		})
	}
}

// Query projects the record for id into a client-facing status payload.
// Unknown ids and internal failures both degrade to UNKNOWN; Query never
// propagates an error to the serving path.
func (t *Tracker) Query(ctx context.Context, id string) QueryResult {
	rec, err := t.store.Get(ctx, id)
	if err == storage.ErrNotFound {
		return QueryResult{
			Status: task.StatusUnknown,
			Error:  fmt.Sprintf("Task %s not found in database", id),
		}
	}
	if err != nil {
		t.log.Error("Failed to query task record", logger.Fields{
			"task_id": id,
			"error":   err.Error(),
		})
		return QueryResult{
			Status: task.StatusUnknown,
			Error:  fmt.Sprintf("Failed to retrieve task %s from database: %v", id, err),
		}
	}

	out := QueryResult{Status: rec.Status}
	switch rec.Status {
	case task.StatusSuccess:
		if len(rec.Result) > 0 {
			out.Result = rec.Result
		}
	case task.StatusFailure:
		out.Error = rec.Error
	}
	return out
}
