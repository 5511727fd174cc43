// Package dispatch turns validated API requests into queued units of
// work with an initial PENDING lifecycle record.
package dispatch

import (
	"context"
	"fmt"

	"github.com/ohadgu/api-agent/internal/lifecycle"
	"github.com/ohadgu/api-agent/internal/logger"
	"github.com/ohadgu/api-agent/internal/queue"
)

// Receipt is returned to the caller after a successful enqueue
type Receipt struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
	Name   string `json:"name"`
}

// Dispatcher submits units of work and records them as PENDING
type Dispatcher struct {
	queue   queue.Queue
	tracker *lifecycle.Tracker
	log     *logger.Logger
}

// NewDispatcher creates a dispatcher over the given queue and tracker
func NewDispatcher(q queue.Queue, tracker *lifecycle.Tracker) *Dispatcher {
	return &Dispatcher{
		queue:   q,
		tracker: tracker,
		log:     logger.GetDefault().WithComponent("dispatch"),
	}
}

// Enqueue submits (name, args, kwargs) to the queue and synchronously
// writes the PENDING record. A failed record write is reported to the
// caller even though the unit of work may already be submitted: the
// worker-side upsert will still track it, but the caller must not be
// told "queued" when the read path could answer UNKNOWN.
func (d *Dispatcher) Enqueue(ctx context.Context, name string, args, kwargs interface{}) (*Receipt, error) {
	msg, err := d.queue.Enqueue(ctx, name, args, kwargs)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue %s: %w", name, err)
	}

	if err := d.tracker.OnEnqueue(ctx, msg.ID, name, msg.Queue, args, kwargs); err != nil {
		d.log.Error("Pending record write failed after enqueue", logger.Fields{
			"task_id": msg.ID,
			"name":    name,
			"error":   err.Error(),
		})
		return nil, err
	}

	d.log.Info("Task enqueued", logger.Fields{
		"task_id": msg.ID,
		"name":    name,
		"queue":   msg.Queue,
	})

	return &Receipt{
		TaskID: msg.ID,
		Status: "queued",
		Name:   name,
	}, nil
}
