package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ROOM_TTL_HOURS", "GAME_TTL_MINUTES", "PROMPT_SELECTION"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Port != 8080 {
		t.Fatalf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.RoomTTL != 24*time.Hour || cfg.GameTTL != 2*time.Hour {
		t.Fatalf("unexpected ttls room=%s game=%s", cfg.RoomTTL, cfg.GameTTL)
	}
	if !cfg.PromptSelection {
		t.Fatalf("expected prompt selection enabled by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("GAME_TTL_MINUTES", "30")
	t.Setenv("PROMPT_SELECTION", "false")
	t.Setenv("PUBLIC_BASE_URL", "https://example.test/")
	t.Setenv("RATE_LIMIT_BURST", "-3")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.test, ,https://b.test")

	cfg := Load()
	if cfg.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.GameTTL != 30*time.Minute {
		t.Fatalf("expected 30m game ttl, got %s", cfg.GameTTL)
	}
	if cfg.PromptSelection {
		t.Fatalf("expected prompt selection disabled")
	}
	if cfg.PublicBaseURL != "https://example.test" {
		t.Fatalf("expected trimmed base url, got %q", cfg.PublicBaseURL)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.test" {
		t.Fatalf("expected two cors origins, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.RateLimitBurst != Default().RateLimitBurst {
		t.Fatalf("expected invalid burst to be ignored, got %d", cfg.RateLimitBurst)
	}
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("expected missing file to be ignored, got %v", err)
	}
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("REDIS_URL=redis://from-file:6379\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("REDIS_URL", "redis://from-env:6379")
	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("load env: %v", err)
	}
	if got := os.Getenv("REDIS_URL"); got != "redis://from-env:6379" {
		t.Fatalf("expected env to win, got %q", got)
	}
}
