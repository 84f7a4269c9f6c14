// Package config provides runtime configuration values for the engine.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds configuration knobs for the pipeline and the HTTP transport.
type Config struct {
	ShardCount         int
	QueueBuffer        int
	QueueHighWatermark int
	HTTPAddr           string
	ShutdownTimeout    time.Duration
	LogLevel           string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durenvs(key string, defSec int) time.Duration {
	sec := atoienv(key, defSec)
	return time.Duration(sec) * time.Second
}

// Load collects configuration from environment with defaults.
func Load() Config {
	cfg := Config{
		ShardCount:         atoienv("SHARD_COUNT", 2),
		QueueBuffer:        atoienv("QUEUE_BUFFER", 128),
		QueueHighWatermark: atoienv("QUEUE_HIGH_WATERMARK", 5000),
		HTTPAddr:           getenv("HTTP_ADDR", ":8080"),
		ShutdownTimeout:    durenvs("SHUTDOWN_TIMEOUT", 15),
		LogLevel:           getenv("LOG_LEVEL", "info"),
	}
	return cfg.Normalize()
}

// Normalize clamps values that would make the pipeline unusable.
func (c Config) Normalize() Config {
	if c.ShardCount < 1 {
		c.ShardCount = 1
	}
	if c.QueueBuffer < 1 {
		c.QueueBuffer = 128
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 15 * time.Second
	}
	return c
}
