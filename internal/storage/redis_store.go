package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ohadgu/api-agent/internal/task"
	"github.com/redis/go-redis/v9"
)

const (
	// Redis key prefix for task records
	recordKeyPrefix = "agent:record:"

	// Retention for task records (records are never deleted by the
	// application itself; Redis expires them after this window)
	recordTTL = 30 * 24 * time.Hour

	// Attempts before giving up on an optimistic transaction
	maxCASRetries = 10
)

// RedisStore implements Store on Redis. Per-id atomicity comes from
// optimistic WATCH transactions: a Mutate that loses the race against a
// concurrent writer is retried against the fresh record.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed record store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
	}
}

// Get retrieves the record for id
func (rs *RedisStore) Get(ctx context.Context, id string) (*task.Record, error) {
	if id == "" {
		return nil, fmt.Errorf("task id cannot be empty")
	}

	data, err := rs.client.Get(ctx, recordKeyPrefix+id).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	var rec task.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}

	return &rec, nil
}

// Mutate applies fn under a WATCH on the record key, retrying when a
// concurrent writer invalidates the transaction.
func (rs *RedisStore) Mutate(ctx context.Context, id string, fn func(rec *task.Record) (*task.Record, error)) error {
	if id == "" {
		return fmt.Errorf("task id cannot be empty")
	}

	key := recordKeyPrefix + id

	txn := func(tx *redis.Tx) error {
		var current *task.Record

		data, err := tx.Get(ctx, key).Result()
		switch {
		case err == redis.Nil:
			current = nil
		case err != nil:
			return fmt.Errorf("failed to read record: %w", err)
		default:
			var rec task.Record
			if err := json.Unmarshal([]byte(data), &rec); err != nil {
				return fmt.Errorf("failed to unmarshal record: %w", err)
			}
			current = &rec
		}

		updated, err := fn(current)
		if err != nil {
			return err
		}
		if updated == nil {
			// fn declined to write
			return nil
		}

		buf, err := json.Marshal(updated)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, buf, recordTTL)
			return nil
		})
		return err
	}

	for i := 0; i < maxCASRetries; i++ {
		err := rs.client.Watch(ctx, txn, key)
		if err == redis.TxFailedErr {
			continue
		}
		return err
	}
	return fmt.Errorf("record %s: too much contention, gave up after %d attempts", id, maxCASRetries)
}

// Close releases the store. The Redis client may be shared, so its
// lifecycle belongs to the caller.
func (rs *RedisStore) Close() error {
	return nil
}
