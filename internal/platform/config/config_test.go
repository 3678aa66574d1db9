package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("DEFAULT_CURRENCY", "")
	t.Setenv("LOG_LEVEL", "")
	cfg := Load()
	if cfg.StoreDriver != StoreDriverPostgres {
		t.Fatalf("expected postgres driver, got %q", cfg.StoreDriver)
	}
	if cfg.DefaultCurrency != "NGN" {
		t.Fatalf("expected NGN, got %q", cfg.DefaultCurrency)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("expected info level, got %v", cfg.LogLevel)
	}
	if cfg.LockTTL != 30*time.Second {
		t.Fatalf("expected 30s lock ttl, got %v", cfg.LockTTL)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", "BOLT")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REPAIR_INTERVAL", "6h")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://hr.example.com, https://me.example.com")
	t.Setenv("DEFAULT_CURRENCY", "ghs")
	cfg := Load()
	if cfg.StoreDriver != StoreDriverBolt {
		t.Fatalf("expected bolt driver, got %q", cfg.StoreDriver)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("expected debug level, got %v", cfg.LogLevel)
	}
	if cfg.RepairInterval != 6*time.Hour {
		t.Fatalf("expected 6h, got %v", cfg.RepairInterval)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://me.example.com" {
		t.Fatalf("unexpected origins %v", cfg.CORSOrigins)
	}
	if cfg.DefaultCurrency != "GHS" {
		t.Fatalf("expected GHS, got %q", cfg.DefaultCurrency)
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		StoreDriver:        StoreDriverBolt,
		BoltPath:           "data/hris.db",
		DefaultCurrency:    "NGN",
		LockTTL:            time.Second,
		MaxBodyBytes:       4096,
		RateLimitPerMinute: 10,
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cases := map[string]func(c *Config){
		"postgres without url": func(c *Config) { c.StoreDriver = StoreDriverPostgres },
		"unknown driver":       func(c *Config) { c.StoreDriver = "mongo" },
		"bolt in production":   func(c *Config) { c.Environment = "production"; c.JWTSecret = "s" },
		"missing jwt in prod":  func(c *Config) { c.Environment = "production"; c.StoreDriver = StoreDriverPostgres; c.DatabaseURL = "postgres://x" },
		"bad currency":         func(c *Config) { c.DefaultCurrency = "NAIRA" },
		"email without host":   func(c *Config) { c.EmailEnabled = true },
		"tiny body limit":      func(c *Config) { c.MaxBodyBytes = 10 },
	}
	for name, mutate := range cases {
		cfg := base
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}
