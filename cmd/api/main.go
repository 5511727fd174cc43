package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ohadgu/api-agent/internal/api"
	"github.com/ohadgu/api-agent/internal/config"
	"github.com/ohadgu/api-agent/internal/dispatch"
	"github.com/ohadgu/api-agent/internal/lifecycle"
	"github.com/ohadgu/api-agent/internal/logger"
	"github.com/ohadgu/api-agent/internal/queue"
	"github.com/ohadgu/api-agent/internal/registry"
	"github.com/ohadgu/api-agent/internal/storage"
)

func main() {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format, "api")
	mainLog := logger.GetDefault().WithComponent("main")

	// Redis connection shared by the queue and the record store
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

	dispatcher := dispatch.NewDispatcher(q, tracker)
	reg := registry.NewService()

	server := api.NewServer(api.Config{
		Addr:          cfg.API.ListenAddr,
		Dispatcher:    dispatcher,
		Tracker:       tracker,
		Registry:      reg,
		Queue:         q,
		SweepInterval: cfg.Registry.SweepInterval,
	})

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	mainLog.Info("Agent API started", logger.Fields{
		"address": cfg.API.ListenAddr,
		"queue":   cfg.Queue.Name,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		mainLog.Info("Signal received, shutting down", logger.Fields{"signal": sig.String()})
	case err := <-errChan:
		mainLog.Error("Server failed", logger.Fields{"error": err.Error()})
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		mainLog.Error("Shutdown error", logger.Fields{"error": err.Error()})
	}
}
