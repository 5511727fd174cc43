package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNoTask signals an empty queue to polling workers
var ErrNoTask = errors.New("no task available")

// Message is one unit of work in flight. The queue assigns the id at
// enqueue time; it is the task id for the record's whole lifecycle.
type Message struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Args       json.RawMessage `json:"args,omitempty"`
	Kwargs     json.RawMessage `json:"kwargs,omitempty"`
	Queue      string          `json:"queue"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Queue is the broker abstraction between the dispatcher and the
// workers. Delivery is at-least-once: a message dequeued but never
// acked may be seen again.
type Queue interface {
	// Enqueue submits a unit of work and returns the message carrying
	// its freshly assigned id.
	Enqueue(ctx context.Context, name string, args, kwargs interface{}) (*Message, error)

	// Dequeue retrieves the next message, or ErrNoTask when empty.
	Dequeue(ctx context.Context) (*Message, error)

	// Ack acknowledges that a message finished processing.
	Ack(ctx context.Context, id string) error

	// Size returns the number of queued messages.
	Size(ctx context.Context) (int64, error)

	// Purge removes all queued messages.
	Purge(ctx context.Context) error

	// Health checks broker connectivity.
	Health(ctx context.Context) error

	// Close releases broker resources.
	Close() error
}
