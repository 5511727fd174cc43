package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ohadgu/api-agent/internal/config"
	"github.com/ohadgu/api-agent/internal/lifecycle"
	"github.com/ohadgu/api-agent/internal/logger"
	"github.com/ohadgu/api-agent/internal/probe"
	"github.com/ohadgu/api-agent/internal/queue"
	"github.com/ohadgu/api-agent/internal/storage"
	"github.com/ohadgu/api-agent/internal/task"
	"github.com/ohadgu/api-agent/internal/worker"
)

func main() {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format, "worker")
	mainLog := logger.GetDefault().WithComponent("main")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		pingCancel()
		log.Fatalf("Failed to connect to Redis at %s: %v", cfg.Redis.RedisAddr(), err)
	}
	pingCancel()

	store := storage.NewRedisStore(redisClient)
	defer store.Close()

	tracker := lifecycle.NewTracker(store)

	q := queue.NewRedisQueueWithClient(redisClient, cfg.Queue.Name)
	defer q.Close()

	registry := task.NewRegistry()
	if err := probe.RegisterAll(registry); err != nil {
		log.Fatalf("Failed to register probe handlers: %v", err)
	}

	pool := worker.NewPool(q, tracker, registry, worker.PoolConfig{
		Workers:         cfg.Worker.Workers,
		PollInterval:    cfg.Worker.PollInterval,
		TaskTimeout:     cfg.Worker.TaskTimeout,
		ShutdownTimeout: cfg.Worker.ShutdownTimeout,
	})

	if err := pool.Start(); err != nil {
		log.Fatalf("Failed to start worker pool: %v", err)
	}

	mainLog.Info("Worker pool running", logger.Fields{
		"workers": pool.WorkerCount(),
		"queue":   cfg.Queue.Name,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	mainLog.Info("Signal received, shutting down", logger.Fields{"signal": sig.String()})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer cancel()
	if err := pool.Shutdown(shutdownCtx); err != nil {
		mainLog.Error("Pool shutdown error", logger.Fields{"error": err.Error()})
	}

	processed, failed := pool.Stats()
	mainLog.Info("Worker pool stopped", logger.Fields{
		"processed": processed,
		"failed":    failed,
	})
}
