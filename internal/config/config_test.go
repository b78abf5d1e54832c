package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "REDIS_URL", "LOG_LEVEL", "GRPC_ADDR", "GRPC_PORT"} {
		t.Setenv(key, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.GRPCAddr() != "0.0.0.0:50051" {
		t.Fatalf("GRPCAddr = %q", cfg.GRPCAddr())
	}
	if cfg.MinLeadTime != 2*time.Hour {
		t.Fatalf("MinLeadTime = %v", cfg.MinLeadTime)
	}
	if cfg.DefaultPatientTz != "America/Argentina/Buenos_Aires" || cfg.DefaultStepMin != 15 {
		t.Fatalf("availability defaults = %q/%d", cfg.DefaultPatientTz, cfg.DefaultStepMin)
	}
	if cfg.RedisURL != "" {
		t.Fatalf("RedisURL = %q, want cache disabled", cfg.RedisURL)
	}
	if cfg.SweepCronSpec != "@every 5m" {
		t.Fatalf("SweepCronSpec = %q", cfg.SweepCronSpec)
	}
}

func TestLoad_EnvOverridesAndAliases(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/x")
	t.Setenv("REDIS_URL", "redis://cache:6379/0")
	t.Setenv("PORT", "9090")
	t.Setenv("THERABOOK_GRPC_ADDR", "127.0.0.1:6000")
	t.Setenv("THERABOOK_BOOKING_MIN_LEAD_TIME", "30m")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabaseURL != "postgres://u:p@db:5432/x" {
		t.Fatalf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.RedisURL != "redis://cache:6379/0" {
		t.Fatalf("RedisURL = %q", cfg.RedisURL)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.GRPCHost != "127.0.0.1" || cfg.GRPCPort != 6000 {
		t.Fatalf("grpc = %s:%d", cfg.GRPCHost, cfg.GRPCPort)
	}
	if cfg.MinLeadTime != 30*time.Minute {
		t.Fatalf("MinLeadTime = %v", cfg.MinLeadTime)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("THERABOOK_CACHE_TTL", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid cache ttl")
	}
}
