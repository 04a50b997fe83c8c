package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.HTTPPort != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.HTTPPort)
	}
	if cfg.CacheBackend != BackendMemory || cfg.QueueBackend != BackendMemory {
		t.Fatalf("expected memory backends by default, got %q / %q", cfg.CacheBackend, cfg.QueueBackend)
	}
	if len(cfg.Providers) != 1 || cfg.Providers[0] != "mock" {
		t.Fatalf("expected the mock provider by default, got %v", cfg.Providers)
	}
	if cfg.RateLimitMax != 100 || cfg.RateLimitWindow != time.Minute {
		t.Fatalf("expected 100/min rate limit defaults, got %d/%s", cfg.RateLimitMax, cfg.RateLimitWindow)
	}
	if cfg.HTTPRateLimitMax != 10 || cfg.HTTPRateLimitWindow != 30*time.Second {
		t.Fatalf("expected 10/30s client throttle defaults, got %d/%s", cfg.HTTPRateLimitMax, cfg.HTTPRateLimitWindow)
	}
	if cfg.MySQLDSN != "" {
		t.Fatalf("expected the audit log disabled by default, got %q", cfg.MySQLDSN)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("CACHE_BACKEND", "Redis")
	t.Setenv("QUEUE_BACKEND", "redis")
	t.Setenv("EMAIL_PROVIDERS", "SES, smtp ,mock")
	t.Setenv("RATE_LIMIT_MAX", "5")
	t.Setenv("RATE_LIMIT_WINDOW_SECONDS", "10")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.HTTPPort != "9999" {
		t.Fatalf("expected port 9999, got %q", cfg.HTTPPort)
	}
	if cfg.CacheBackend != BackendRedis || cfg.QueueBackend != BackendRedis {
		t.Fatalf("expected redis backends, got %q / %q", cfg.CacheBackend, cfg.QueueBackend)
	}
	want := []string{"ses", "smtp", "mock"}
	if len(cfg.Providers) != len(want) {
		t.Fatalf("expected %v, got %v", want, cfg.Providers)
	}
	for i, name := range want {
		if cfg.Providers[i] != name {
			t.Fatalf("expected provider %q at %d, got %v", name, i, cfg.Providers)
		}
	}
	if cfg.RateLimitMax != 5 || cfg.RateLimitWindow != 10*time.Second {
		t.Fatalf("unexpected rate limit settings: %d/%s", cfg.RateLimitMax, cfg.RateLimitWindow)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "memcached")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error for an unsupported cache backend")
	}
}

func TestLoadRejectsEmptyProviderList(t *testing.T) {
	t.Setenv("EMAIL_PROVIDERS", " , ")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error for an empty provider list")
	}
}

func TestGetEnvIntBadValue(t *testing.T) {
	t.Setenv("SMTP_PORT", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SMTPPort != 587 {
		t.Fatalf("expected the default on a bad int, got %d", cfg.SMTPPort)
	}
}
