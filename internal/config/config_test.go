package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("EVENTS_SINK", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	t.Setenv("CALENDAR_GRANULARITY_MINUTES", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.EventsSink != "log" {
		t.Fatalf("expected log events sink by default, got %s", cfg.EventsSink)
	}
	if cfg.CalendarGranularityMinutes != 60 {
		t.Fatalf("expected hourly calendar grid by default, got %d", cfg.CalendarGranularityMinutes)
	}
	if cfg.OutboxPollInterval != 2*time.Second {
		t.Fatalf("expected default outbox interval, got %s", cfg.OutboxPollInterval)
	}
	if cfg.CORSAllowedOrigins != nil {
		t.Fatalf("expected no CORS origins by default, got %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("EVENTS_SINK", " SQS ")
	t.Setenv("OUTBOX_POLL_INTERVAL", "5s")
	t.Setenv("PUBLIC_RATE_LIMIT_RPS", "0.5")
	t.Setenv("PUBLIC_RATE_LIMIT_BURST", "3")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://book.example.com, ,https://staff.example.com")
	t.Setenv("REDIS_TLS", "true")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.EventsSink != "sqs" {
		t.Fatalf("expected normalized sink, got %q", cfg.EventsSink)
	}
	if cfg.OutboxPollInterval != 5*time.Second {
		t.Fatalf("expected interval override, got %s", cfg.OutboxPollInterval)
	}
	if cfg.PublicRateLimitRPS != 0.5 || cfg.PublicRateLimitBurst != 3 {
		t.Fatalf("expected rate limit overrides, got %v/%d", cfg.PublicRateLimitRPS, cfg.PublicRateLimitBurst)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://staff.example.com" {
		t.Fatalf("unexpected CORS origins: %v", cfg.CORSAllowedOrigins)
	}
	if !cfg.RedisTLS {
		t.Fatal("expected redis TLS enabled")
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("OUTBOX_BATCH_SIZE", "many")
	t.Setenv("OUTBOX_POLL_INTERVAL", "soon")
	cfg := Load()
	if cfg.OutboxBatchSize != 25 {
		t.Fatalf("expected default batch size, got %d", cfg.OutboxBatchSize)
	}
	if cfg.OutboxPollInterval != 2*time.Second {
		t.Fatalf("expected default interval, got %s", cfg.OutboxPollInterval)
	}
	if cfg.OutboxMaxAttempts != 10 {
		t.Fatalf("expected default max attempts, got %d", cfg.OutboxMaxAttempts)
	}
}
