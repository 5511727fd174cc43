package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "localhost", cfg.Redis.Host)
	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.Equal(t, "probes", cfg.Queue.Name)
	assert.Equal(t, 4, cfg.Worker.Workers)
	assert.Equal(t, ":8000", cfg.API.ListenAddr)
	assert.Equal(t, "info", cfg.Logging.Level)

	require.NoError(t, cfg.Validate())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("REDIS_HOST", "redis.internal")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("QUEUE_NAME", "scans")
	t.Setenv("WORKERS", "8")
	t.Setenv("LOG_FORMAT", "json")

	cfg := Default()

	assert.Equal(t, "redis.internal", cfg.Redis.Host)
	assert.Equal(t, 6380, cfg.Redis.Port)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.RedisAddr())
	assert.Equal(t, "scans", cfg.Queue.Name)
	assert.Equal(t, 8, cfg.Worker.Workers)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestEnvOverrideBadInt(t *testing.T) {
	t.Setenv("REDIS_PORT", "not-a-port")

	cfg := Default()
	assert.Equal(t, 6379, cfg.Redis.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty redis host", func(c *Config) { c.Redis.Host = "" }, "redis host"},
		{"bad redis port", func(c *Config) { c.Redis.Port = 0 }, "redis port"},
		{"empty queue name", func(c *Config) { c.Queue.Name = "" }, "queue name"},
		{"zero workers", func(c *Config) { c.Worker.Workers = 0 }, "worker count"},
		{"zero task timeout", func(c *Config) { c.Worker.TaskTimeout = 0 }, "task timeout"},
		{"empty listen addr", func(c *Config) { c.API.ListenAddr = "" }, "listen address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateDefaults(t *testing.T) {
	cfg := Default()
	cfg.Registry.SweepInterval = 0 // sweeper disabled is still valid
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 30*time.Second, cfg.Worker.ShutdownTimeout)
}
