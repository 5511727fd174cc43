package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the agent
type Config struct {
	Redis    RedisConfig
	Queue    QueueConfig
	Worker   WorkerConfig
	API      APIConfig
	Registry RegistryConfig
	Logging  LoggingConfig
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
}

// QueueConfig holds queue settings
type QueueConfig struct {
	// Queue name shared by the API and the workers
	Name string
}

// WorkerConfig holds worker-pool settings
type WorkerConfig struct {
	// Number of concurrent probe executors
	Workers int

	// How often each worker polls the queue
	PollInterval time.Duration

	// Per-execution timeout
	TaskTimeout time.Duration

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration
}

// APIConfig holds HTTP server settings
type APIConfig struct {
	ListenAddr string
}

// RegistryConfig holds tracked-endpoint registry settings
type RegistryConfig struct {
	// How often expired endpoints are swept (0 disables the sweeper)
	SweepInterval time.Duration
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// Default returns a configuration with sensible defaults, overridable
// through environment variables.
func Default() *Config {
	return &Config{
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
		},
		Queue: QueueConfig{
			Name: getEnv("QUEUE_NAME", "probes"),
		},
		Worker: WorkerConfig{
			Workers:         getEnvInt("WORKERS", 4),
			PollInterval:    100 * time.Millisecond,
			TaskTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		API: APIConfig{
			ListenAddr: getEnv("API_LISTEN_ADDR", ":8000"),
		},
		Registry: RegistryConfig{
			SweepInterval: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
}

// RedisAddr returns the full Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Redis.Host == "" {
		return fmt.Errorf("redis host cannot be empty")
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		return fmt.Errorf("redis port must be between 1 and 65535")
	}
	if c.Queue.Name == "" {
		return fmt.Errorf("queue name cannot be empty")
	}
	if c.Worker.Workers < 1 {
		return fmt.Errorf("worker count must be at least 1")
	}
	if c.Worker.TaskTimeout <= 0 {
		return fmt.Errorf("task timeout must be positive")
	}
	if c.API.ListenAddr == "" {
		return fmt.Errorf("api listen address cannot be empty")
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
