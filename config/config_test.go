package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TARGET_BASE_URL", "http://localhost:8080")
	t.Setenv("MEMORY_STORE", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("expected listen addr :8080, got %s", cfg.ListenAddr)
	}
	if cfg.TargetTimeout != 30*time.Second {
		t.Errorf("expected timeout 30s, got %s", cfg.TargetTimeout)
	}
	if cfg.SweepInterval != time.Minute {
		t.Errorf("expected interval 1m, got %s", cfg.SweepInterval)
	}
	if cfg.SweepConcurrency != 1 {
		t.Errorf("expected concurrency 1, got %d", cfg.SweepConcurrency)
	}
	if cfg.DbConnectionUri != "" || !cfg.MemoryStore {
		t.Errorf("expected memory store without db uri, got %q/%v", cfg.DbConnectionUri, cfg.MemoryStore)
	}
}

func TestLoad_RequiresStore(t *testing.T) {
	t.Setenv("TARGET_BASE_URL", "http://localhost:8080")
	t.Setenv("DB_CONNECTION_URI", "")
	t.Setenv("MEMORY_STORE", "")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error without DB_CONNECTION_URI or MEMORY_STORE")
	}

	t.Setenv("DB_CONNECTION_URI", "postgres://localhost/deferral")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.MemoryStore {
		t.Error("expected memory store off by default")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("TARGET_BASE_URL", "http://localhost:8080")
	t.Setenv("DB_CONNECTION_URI", "postgres://localhost/deferral")
	t.Setenv("SWEEP_INTERVAL", "5s")
	t.Setenv("SWEEP_CONCURRENCY", "4")
	t.Setenv("QUEUE_HOST_PORTS", "k1:9092,k2:9092")
	t.Setenv("INTAKE_TOPIC", "tasks.intake")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.SweepInterval != 5*time.Second || cfg.SweepConcurrency != 4 {
		t.Errorf("unexpected sweep settings %s/%d", cfg.SweepInterval, cfg.SweepConcurrency)
	}
	if len(cfg.QueueHostPorts) != 2 || cfg.QueueHostPorts[1] != "k2:9092" {
		t.Errorf("unexpected host ports %v", cfg.QueueHostPorts)
	}
}

func TestLoad_MissingBaseURL(t *testing.T) {
	t.Setenv("TARGET_BASE_URL", "")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for missing TARGET_BASE_URL")
	}
}

func TestValidate(t *testing.T) {
	valid := Config{DbConnectionUri: "postgres://localhost/deferral", TargetBaseUrl: "http://localhost:8080", TargetTimeout: time.Second, SweepInterval: time.Second, SweepConcurrency: 1}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no store", func(c *Config) { c.DbConnectionUri = "" }},
		{"zero timeout", func(c *Config) { c.TargetTimeout = 0 }},
		{"zero interval", func(c *Config) { c.SweepInterval = 0 }},
		{"zero concurrency", func(c *Config) { c.SweepConcurrency = 0 }},
		{"topic without brokers", func(c *Config) { c.CompletionTopic = "tasks.executed" }},
	}

	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
