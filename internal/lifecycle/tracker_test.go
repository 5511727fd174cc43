package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ohadgu/api-agent/internal/storage"
	"github.com/ohadgu/api-agent/internal/task"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// testClock steps forward by a fixed amount on every read
type testClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func newTestClock(step time.Duration) *testClock {
	return &testClock{now: baseTime, step: step}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func newTracker(t *testing.T, opts ...Option) (*Tracker, *storage.MemoryStore) {
	store := storage.NewMemoryStore()
	return NewTracker(store, opts...), store
}

func TestQueryUnknownTask(t *testing.T) {
	tr, _ := newTracker(t)

	res := tr.Query(context.Background(), "never-enqueued")
	assert.Equal(t, task.StatusUnknown, res.Status)
	assert.Equal(t, "Task never-enqueued not found in database", res.Error)
	assert.Nil(t, res.Result)
}

func TestEnqueueWritesPending(t *testing.T) {
	tr, store := newTracker(t)
	ctx := context.Background()

	require.NoError(t, tr.OnEnqueue(ctx, "t1", "net.dns_query", "probes", []string{"example.com"}, nil))

	rec, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, task.StatusPending, rec.Status)
	assert.Equal(t, "net.dns_query", rec.Name)
	assert.Equal(t, "probes", rec.Queue)
	assert.JSONEq(t, `["example.com"]`, string(rec.Args))
}

func TestStartThenSuccess(t *testing.T) {
	clock := newTestClock(time.Second)
	tr, _ := newTracker(t, WithClock(clock.Now))
	ctx := context.Background()

	tr.OnStart(ctx, "t1", "net.port_scan", nil, map[string]int{"from_port": 80})
	tr.OnSuccess(ctx, "t1", map[string]interface{}{"open": []int{80}})

	res := tr.Query(ctx, "t1")
	assert.Equal(t, task.StatusSuccess, res.Status)
	assert.Empty(t, res.Error)

	raw, ok := res.Result.(json.RawMessage)
	require.True(t, ok)
	assert.JSONEq(t, `{"open":[80]}`, string(raw))
}

func TestStartThenFailure(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()

	tr.OnStart(ctx, "t1", "net.http_request", nil, nil)
	tr.OnFailure(ctx, "t1", errors.New("connection refused"))

	res := tr.Query(ctx, "t1")
	assert.Equal(t, task.StatusFailure, res.Status)
	assert.Equal(t, "connection refused", res.Error)
	assert.Nil(t, res.Result)
}

func TestFailureWithNilError(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()

	tr.OnStart(ctx, "t1", "net.http_request", nil, nil)
	tr.OnFailure(ctx, "t1", nil)

	res := tr.Query(ctx, "t1")
	assert.Equal(t, task.StatusFailure, res.Status)
	assert.Equal(t, "UNKNOWN_ERROR", res.Error)
}

func TestDuplicateSuccessIsIdempotent(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()

	tr.OnStart(ctx, "t1", "op", nil, nil)
	tr.OnSuccess(ctx, "t1", "first")
	tr.OnSuccess(ctx, "t1", "first")

	res := tr.Query(ctx, "t1")
	assert.Equal(t, task.StatusSuccess, res.Status)

	raw, ok := res.Result.(json.RawMessage)
	require.True(t, ok)
	assert.JSONEq(t, `"first"`, string(raw))
}

func TestSuccessOverwritesFailure(t *testing.T) {
	// Redelivered hooks are applied last-writer-wins, error cleared
	tr, _ := newTracker(t)
	ctx := context.Background()

	tr.OnStart(ctx, "t1", "op", nil, nil)
	tr.OnFailure(ctx, "t1", errors.New("transient"))
	tr.OnSuccess(ctx, "t1", "recovered")

	res := tr.Query(ctx, "t1")
	assert.Equal(t, task.StatusSuccess, res.Status)
	assert.Empty(t, res.Error)
}

func TestTerminalHookOnUnknownTaskIsNoOp(t *testing.T) {
	tr, store := newTracker(t)
	ctx := context.Background()

	tr.OnSuccess(ctx, "ghost", "result")
	tr.OnFailure(ctx, "ghost2", errors.New("boom"))

	assert.Equal(t, 0, store.Len())
	assert.Equal(t, task.StatusUnknown, tr.Query(ctx, "ghost").Status)
}

func TestDuplicateStartKeepsStartedAt(t *testing.T) {
	clock := newTestClock(time.Minute)
	tr, store := newTracker(t, WithClock(clock.Now))
	ctx := context.Background()

	tr.OnStart(ctx, "t1", "op", nil, nil)
	first, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, first.StartedAt)

	tr.OnStart(ctx, "t1", "op", nil, nil)
	second, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, second.StartedAt)
	assert.Equal(t, *first.StartedAt, *second.StartedAt)
}

func TestDurationFromClock(t *testing.T) {
	clock := newTestClock(3 * time.Second)
	tr, store := newTracker(t, WithClock(clock.Now))
	ctx := context.Background()

	tr.OnStart(ctx, "t1", "op", nil, nil)
	tr.OnSuccess(ctx, "t1", "ok")

	rec, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, rec.DurationMS)
	assert.Equal(t, int64(3000), *rec.DurationMS)
	require.NotNil(t, rec.FinishedAt)
	assert.Equal(t, rec.StartedAt.Add(3*time.Second), *rec.FinishedAt)
}

func TestOversizeResultTruncated(t *testing.T) {
	tr, store := newTracker(t, WithValueCap(64))
	ctx := context.Background()

	tr.OnStart(ctx, "t1", "op", nil, nil)
	tr.OnSuccess(ctx, "t1", strings.Repeat("z", 500))

	rec, err := store.Get(ctx, "t1")
	require.NoError(t, err)

	var marker struct {
		Truncated bool `json:"truncated"`
		ApproxLen int  `json:"approx_len"`
	}
	require.NoError(t, json.Unmarshal(rec.Result, &marker))
	assert.True(t, marker.Truncated)
	assert.Greater(t, marker.ApproxLen, 64)
}

func TestOversizeErrorCapped(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()

	tr.OnStart(ctx, "t1", "op", nil, nil)
	tr.OnFailure(ctx, "t1", errors.New(strings.Repeat("e", task.ErrorCap+1000)))

	res := tr.Query(ctx, "t1")
	assert.Len(t, res.Error, task.ErrorCap)
}

func TestConcurrentStarts(t *testing.T) {
	tr, store := newTracker(t)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("task-%d", i)
			tr.OnStart(ctx, id, "op", nil, nil)
			tr.OnSuccess(ctx, id, i)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, n, store.Len())
	for i := 0; i < n; i++ {
		res := tr.Query(ctx, fmt.Sprintf("task-%d", i))
		assert.Equal(t, task.StatusSuccess, res.Status)
	}
}

// failingStore reports an error on every operation
type failingStore struct{}

func (failingStore) Get(ctx context.Context, id string) (*task.Record, error) {
	return nil, errors.New("store offline")
}

func (failingStore) Mutate(ctx context.Context, id string, fn func(rec *task.Record) (*task.Record, error)) error {
	return errors.New("store offline")
}

func (failingStore) Close() error { return nil }

func TestHooksSwallowStoreErrors(t *testing.T) {
	tr := NewTracker(failingStore{})
	ctx := context.Background()

	// None of these may panic or propagate
	tr.OnStart(ctx, "t1", "op", nil, nil)
	tr.OnSuccess(ctx, "t1", "ok")
	tr.OnFailure(ctx, "t1", errors.New("boom"))

	res := tr.Query(ctx, "t1")
	assert.Equal(t, task.StatusUnknown, res.Status)
	assert.Contains(t, res.Error, "Failed to retrieve task t1 from database")
}

func TestEnqueueReturnsStoreError(t *testing.T) {
	tr := NewTracker(failingStore{})

	err := tr.OnEnqueue(context.Background(), "t1", "op", "probes", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write pending record")
}

func TestEnqueueDoesNotClobberStartedRecord(t *testing.T) {
	tr, store := newTracker(t)
	ctx := context.Background()

	tr.OnStart(ctx, "t1", "op", nil, nil)
	require.NoError(t, tr.OnEnqueue(ctx, "t1", "op", "probes", nil, nil))

	rec, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, task.StatusStarted, rec.Status)
}
