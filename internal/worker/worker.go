package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ohadgu/api-agent/internal/lifecycle"
	"github.com/ohadgu/api-agent/internal/logger"
	"github.com/ohadgu/api-agent/internal/queue"
	"github.com/ohadgu/api-agent/internal/task"
)

// Worker polls the queue and executes probe operations, invoking the
// lifecycle hooks around each execution. Hook failures are the hooks'
// own problem: they log and never surface into the execution path.
type Worker struct {
	id       string
	queue    queue.Queue
	hooks    lifecycle.Hooks
	registry *task.Registry
	pollFreq time.Duration
	timeout  time.Duration
	log      *logger.Logger

	// Graceful shutdown
	shutdownChan chan struct{}
	wg           sync.WaitGroup
	mu           sync.RWMutex
	running      bool

	// Stats
	tasksProcessed int64
	tasksFailed    int64
}

// Config holds worker configuration
type Config struct {
	ID           string
	PollInterval time.Duration // How often to poll the queue
	TaskTimeout  time.Duration // Per-execution timeout
}

// NewWorker creates a new worker instance
func NewWorker(q queue.Queue, hooks lifecycle.Hooks, registry *task.Registry, config Config) *Worker {
	if config.PollInterval == 0 {
		config.PollInterval = 100 * time.Millisecond
	}
	if config.TaskTimeout == 0 {
		config.TaskTimeout = 30 * time.Second
	}
	if config.ID == "" {
		config.ID = fmt.Sprintf("worker-%d", time.Now().UnixNano())
	}

	return &Worker{
		id:           config.ID,
		queue:        q,
		hooks:        hooks,
		registry:     registry,
		pollFreq:     config.PollInterval,
		timeout:      config.TaskTimeout,
		log:          logger.GetDefault().WithComponent("worker"),
		shutdownChan: make(chan struct{}),
	}
}

// Start begins the worker loop
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("worker %s is already running", w.id)
	}
	w.running = true
	w.mu.Unlock()

	w.log.Info("Worker starting", logger.Fields{"worker_id": w.id})

	w.wg.Add(1)
	go w.run(ctx)

	return nil
}

// run is the main worker loop
func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	ticker := time.NewTicker(w.pollFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Context cancelled, worker shutting down", logger.Fields{"worker_id": w.id})
			return
		case <-w.shutdownChan:
			w.log.Info("Shutdown signal received", logger.Fields{"worker_id": w.id})
			return
		case <-ticker.C:
			if err := w.pollAndExecute(ctx); err != nil && err != queue.ErrNoTask {
				w.log.Error("Worker poll error", logger.Fields{
					"worker_id": w.id,
					"error":     err.Error(),
				})
			}
		}
	}
}

// pollAndExecute dequeues one message and runs it through the probe
// registry with the lifecycle hooks wrapped around the execution.
func (w *Worker) pollAndExecute(ctx context.Context) error {
	msg, err := w.queue.Dequeue(ctx)
	if err != nil {
		return err
	}

	w.log.Info("Picked up task", logger.Fields{
		"worker_id": w.id,
		"task_id":   msg.ID,
		"name":      msg.Name,
	})

	w.hooks.OnStart(ctx, msg.ID, msg.Name, msg.Args, msg.Kwargs)

	execCtx, cancel := context.WithTimeout(ctx, w.timeout)
	result, execErr := w.registry.Execute(execCtx, msg.Name, msg.Args, msg.Kwargs)
	cancel()

	if execErr != nil {
		w.mu.Lock()
		w.tasksFailed++
		w.mu.Unlock()

		w.log.Warn("Task failed", logger.Fields{
			"worker_id": w.id,
			"task_id":   msg.ID,
			"name":      msg.Name,
			"error":     execErr.Error(),
		})
		w.hooks.OnFailure(ctx, msg.ID, execErr)
	} else {
		w.mu.Lock()
		w.tasksProcessed++
		w.mu.Unlock()

		w.hooks.OnSuccess(ctx, msg.ID, result)
	}

	return w.queue.Ack(ctx, msg.ID)
}

// Stop gracefully stops the worker
func (w *Worker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("worker %s is not running", w.id)
	}
	w.running = false
	w.mu.Unlock()

	close(w.shutdownChan)
	w.wg.Wait()
	w.log.Info("Worker stopped", logger.Fields{"worker_id": w.id})
	return nil
}

// IsRunning returns whether the worker is currently running
func (w *Worker) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// Stats returns processed/failed counters
func (w *Worker) Stats() (processed, failed int64) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.tasksProcessed, w.tasksFailed
}

// ID returns the worker's unique identifier
func (w *Worker) ID() string {
	return w.id
}
