package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// Redis key prefixes
	queueKeyPrefix      = "agent:queue:"
	messageKeyPrefix    = "agent:msg:"
	processingKeyPrefix = "agent:processing:"
	statsKeyPrefix      = "agent:stats:"

	// How long a dequeued-but-unacked marker survives
	processingTTL = 1 * time.Hour
)

// RedisQueue implements Queue on a Redis list. Message bodies live in
// their own keys so the list holds only ids.
type RedisQueue struct {
	client   *redis.Client
	name     string
	queueKey string
}

// NewRedisQueue creates a Redis-backed queue with connection pooling
// and verifies connectivity before returning.
func NewRedisQueue(addr, password string, db, poolSize int, name string) (*RedisQueue, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}
	if name == "" {
		name = "default"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     poolSize,
		MinIdleConns: poolSize / 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisQueue{
		client:   client,
		name:     name,
		queueKey: queueKeyPrefix + name,
	}, nil
}

// NewRedisQueueWithClient wraps an existing client (used by tests)
func NewRedisQueueWithClient(client *redis.Client, name string) *RedisQueue {
	if name == "" {
		name = "default"
	}
	return &RedisQueue{
		client:   client,
		name:     name,
		queueKey: queueKeyPrefix + name,
	}
}

// Name returns the queue name
func (rq *RedisQueue) Name() string {
	return rq.name
}

// Enqueue assigns a fresh id, stores the message body and pushes the id
// onto the queue list.
func (rq *RedisQueue) Enqueue(ctx context.Context, name string, args, kwargs interface{}) (*Message, error) {
	if name == "" {
		return nil, fmt.Errorf("operation name cannot be empty")
	}

	msg := &Message{
		ID:         uuid.New().String(),
		Name:       name,
		Queue:      rq.name,
		EnqueuedAt: time.Now().UTC(),
	}

	var err error
	if args != nil {
		if msg.Args, err = json.Marshal(args); err != nil {
			return nil, fmt.Errorf("failed to marshal args: %w", err)
		}
	}
	if kwargs != nil {
		if msg.Kwargs, err = json.Marshal(kwargs); err != nil {
			return nil, fmt.Errorf("failed to marshal kwargs: %w", err)
		}
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	msgKey := messageKeyPrefix + msg.ID
	if err := rq.client.Set(ctx, msgKey, data, 0).Err(); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	if err := rq.client.RPush(ctx, rq.queueKey, msg.ID).Err(); err != nil {
		// Clean up the body if the push fails
		rq.client.Del(ctx, msgKey)
		return nil, fmt.Errorf("failed to enqueue message: %w", err)
	}

	rq.client.Incr(ctx, statsKeyPrefix+"enqueued")

	return msg, nil
}

// Dequeue pops the next message id and loads its body. The id is marked
// as processing so stuck deliveries stay observable.
func (rq *RedisQueue) Dequeue(ctx context.Context) (*Message, error) {
	id, err := rq.client.LPop(ctx, rq.queueKey).Result()
	if err == redis.Nil {
		return nil, ErrNoTask
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue message: %w", err)
	}

	msgKey := messageKeyPrefix + id
	data, err := rq.client.Get(ctx, msgKey).Result()
	if err == redis.Nil {
		// Body expired or was purged out from under us
		return nil, ErrNoTask
	}
	if err != nil {
		// Put the id back so the message is not lost
		rq.client.LPush(ctx, rq.queueKey, id)
		return nil, fmt.Errorf("failed to retrieve message body: %w", err)
	}

	var msg Message
	if err := json.Unmarshal([]byte(data), &msg); err != nil {
		rq.client.Del(ctx, msgKey)
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}

	rq.client.Set(ctx, processingKeyPrefix+id, time.Now().Unix(), processingTTL)

	return &msg, nil
}

// Ack removes the message body and its processing marker
func (rq *RedisQueue) Ack(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("message id cannot be empty")
	}

	rq.client.Del(ctx, processingKeyPrefix+id)
	rq.client.Del(ctx, messageKeyPrefix+id)
	rq.client.Incr(ctx, statsKeyPrefix+"acked")

	return nil
}

// Size returns the queue depth
func (rq *RedisQueue) Size(ctx context.Context) (int64, error) {
	size, err := rq.client.LLen(ctx, rq.queueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue size: %w", err)
	}
	return size, nil
}

// Purge removes every queued message and its body
func (rq *RedisQueue) Purge(ctx context.Context) error {
	if err := rq.client.Del(ctx, rq.queueKey).Err(); err != nil {
		return fmt.Errorf("failed to purge queue: %w", err)
	}

	iter := rq.client.Scan(ctx, 0, messageKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		rq.client.Del(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to delete message bodies: %w", err)
	}

	return nil
}

// Health checks broker connectivity
func (rq *RedisQueue) Health(ctx context.Context) error {
	return rq.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (rq *RedisQueue) Close() error {
	if rq.client != nil {
		return rq.client.Close()
	}
	return nil
}
