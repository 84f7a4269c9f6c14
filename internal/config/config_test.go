package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"SHARD_COUNT", "QUEUE_BUFFER", "QUEUE_HIGH_WATERMARK", "HTTP_ADDR", "SHUTDOWN_TIMEOUT", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	c := Load()
	if c.ShardCount != 2 {
		t.Fatalf("ShardCount default")
	}
	if c.QueueBuffer != 128 || c.QueueHighWatermark != 5000 {
		t.Fatalf("queue defaults")
	}
	if c.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr default")
	}
	if c.ShutdownTimeout != 15*time.Second {
		t.Fatalf("ShutdownTimeout default")
	}
	if c.LogLevel != "info" {
		t.Fatalf("LogLevel default")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SHARD_COUNT", "8")
	t.Setenv("QUEUE_BUFFER", "16")
	t.Setenv("QUEUE_HIGH_WATERMARK", "99")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("SHUTDOWN_TIMEOUT", "2")
	t.Setenv("LOG_LEVEL", "debug")
	c := Load()
	if c.ShardCount != 8 {
		t.Fatalf("ShardCount env")
	}
	if c.QueueBuffer != 16 || c.QueueHighWatermark != 99 {
		t.Fatalf("queue env")
	}
	if c.HTTPAddr != ":9090" {
		t.Fatalf("HTTPAddr env")
	}
	if c.ShutdownTimeout != 2*time.Second {
		t.Fatalf("ShutdownTimeout env")
	}
	if c.LogLevel != "debug" {
		t.Fatalf("LogLevel env")
	}
}

func TestLoadClampsInvalid(t *testing.T) {
	t.Setenv("SHARD_COUNT", "0")
	t.Setenv("QUEUE_BUFFER", "-3")
	t.Setenv("SHUTDOWN_TIMEOUT", "notanumber")
	c := Load()
	if c.ShardCount != 1 {
		t.Fatalf("expected shard count clamped to 1, got %d", c.ShardCount)
	}
	if c.QueueBuffer != 128 {
		t.Fatalf("expected queue buffer 128, got %d", c.QueueBuffer)
	}
	if c.ShutdownTimeout != 15*time.Second {
		t.Fatalf("expected default shutdown timeout, got %s", c.ShutdownTimeout)
	}
}
