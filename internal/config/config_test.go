package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("PORT", "")
	t.Setenv("JWT_ACCESS_TTL", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "")

	cfg := Load()

	if cfg.Env != "dev" {
		t.Fatalf("expected env dev, got %q", cfg.Env)
	}
	if cfg.Port != 5000 {
		t.Fatalf("expected port 5000, got %d", cfg.Port)
	}
	if cfg.JWTAccessTTL != 15*time.Minute {
		t.Fatalf("expected 15m access ttl, got %s", cfg.JWTAccessTTL)
	}
	if cfg.JWTRefreshTTL != 7*24*time.Hour {
		t.Fatalf("expected 7d refresh ttl, got %s", cfg.JWTRefreshTTL)
	}
	if cfg.BcryptCost != 10 {
		t.Fatalf("expected bcrypt cost 10, got %d", cfg.BcryptCost)
	}
	if cfg.UploadMaxBytes != 2*1024*1024 {
		t.Fatalf("expected 2MiB upload limit, got %d", cfg.UploadMaxBytes)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_ACCESS_TTL", "90s")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test,,")
	t.Setenv("DB_AUTO_MIGRATE", "false")
	t.Setenv("DATABASE_URL", "postgres://x:y@db:5432/z")

	cfg := Load()

	if cfg.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.JWTAccessTTL != 90*time.Second {
		t.Fatalf("expected 90s, got %s", cfg.JWTAccessTTL)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.test" {
		t.Fatalf("unexpected origins: %#v", cfg.CORSOrigins)
	}
	if cfg.DBAutoMigrate {
		t.Fatalf("expected auto migrate disabled")
	}
	if cfg.DBURL != "postgres://x:y@db:5432/z" {
		t.Fatalf("unexpected db url %q", cfg.DBURL)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	t.Setenv("JWT_REFRESH_TTL", "forever")
	t.Setenv("OTEL_SAMPLE_RATIO", "1.5")

	cfg := Load()

	if cfg.Port != 5000 {
		t.Fatalf("expected fallback port, got %d", cfg.Port)
	}
	if cfg.JWTRefreshTTL != 7*24*time.Hour {
		t.Fatalf("expected fallback refresh ttl, got %s", cfg.JWTRefreshTTL)
	}
	if cfg.OTelSampleRatio != 1.0 {
		t.Fatalf("expected fallback sample ratio, got %v", cfg.OTelSampleRatio)
	}
}
