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

// Pool runs a fixed set of workers over one queue
type Pool struct {
	queue    queue.Queue
	hooks    lifecycle.Hooks
	registry *task.Registry
	log      *logger.Logger

	mu      sync.RWMutex
	workers map[string]*Worker

	ctx        context.Context
	cancelFunc context.CancelFunc

	size            int
	pollInterval    time.Duration
	taskTimeout     time.Duration
	shutdownTimeout time.Duration
}

// PoolConfig holds configuration for the worker pool
type PoolConfig struct {
	Workers         int
	PollInterval    time.Duration
	TaskTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewPool creates a new worker pool
func NewPool(q queue.Queue, hooks lifecycle.Hooks, registry *task.Registry, cfg PoolConfig) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		queue:           q,
		hooks:           hooks,
		registry:        registry,
		log:             logger.GetDefault().WithComponent("pool"),
		workers:         make(map[string]*Worker),
		size:            cfg.Workers,
		pollInterval:    cfg.PollInterval,
		taskTimeout:     cfg.TaskTimeout,
		shutdownTimeout: cfg.ShutdownTimeout,
		ctx:             ctx,
		cancelFunc:      cancel,
	}
}

// Start launches the configured number of workers
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := 1; i <= p.size; i++ {
		id := fmt.Sprintf("worker-%d", i)
		w := NewWorker(p.queue, p.hooks, p.registry, Config{
			ID:           id,
			PollInterval: p.pollInterval,
			TaskTimeout:  p.taskTimeout,
		})
		if err := w.Start(p.ctx); err != nil {
			p.log.Error("Failed to start worker", logger.Fields{
				"worker_id": id,
				"error":     err.Error(),
			})
			continue
		}
		p.workers[id] = w
	}

	if len(p.workers) == 0 {
		return fmt.Errorf("failed to start any workers")
	}

	p.log.Info("Worker pool started", logger.Fields{"workers": len(p.workers)})
	return nil
}

// WorkerCount returns the number of live workers
func (p *Pool) WorkerCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.workers)
}

// Stats aggregates processed/failed counters across workers
func (p *Pool) Stats() (processed, failed int64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, w := range p.workers {
		pr, fl := w.Stats()
		processed += pr
		failed += fl
	}
	return processed, failed
}

// Shutdown gracefully stops all workers in the pool
func (p *Pool) Shutdown(ctx context.Context) error {
	p.log.Info("Shutting down worker pool", logger.Fields{"workers": p.WorkerCount()})

	p.cancelFunc()

	done := make(chan struct{})
	go func() {
		p.mu.RLock()
		workers := make([]*Worker, 0, len(p.workers))
		for _, w := range p.workers {
			workers = append(workers, w)
		}
		p.mu.RUnlock()

		for _, w := range workers {
			w.wg.Wait()
		}
		close(done)
	}()

	select {
	case <-done:
		p.log.Info("All workers shut down", logger.Fields{})
		return nil
	case <-ctx.Done():
		p.log.Warn("Pool shutdown timeout exceeded", logger.Fields{})
		return ctx.Err()
	}
}
