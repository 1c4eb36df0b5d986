package api

import (
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DEVROOM_CONFIG", "")
	t.Setenv("PORT", "")
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr != ":5000" {
		t.Errorf("listen addr = %q", cfg.ListenAddr)
	}
	if cfg.TokenTTL != 7*24*time.Hour {
		t.Errorf("token ttl = %v", cfg.TokenTTL)
	}
	if cfg.RateLimitAuth != 10 {
		t.Errorf("auth limit = %d", cfg.RateLimitAuth)
	}
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devroom.yaml")
	yml := "listen_addr: \":7000\"\nrate_limit_exec: 3\npiston_timeout: 5s\ncors_allowed_origins:\n  - https://a.example.com\n"
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "")
	t.Setenv("DEVROOM_RATE_LIMIT_EXEC", "9")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr != ":7000" {
		t.Errorf("listen addr = %q", cfg.ListenAddr)
	}
	if cfg.PistonTimeout != 5*time.Second {
		t.Errorf("piston timeout = %v", cfg.PistonTimeout)
	}
	if cfg.RateLimitExec != 9 {
		t.Errorf("env should override file: exec limit = %d", cfg.RateLimitExec)
	}
	if cfg.JWTSecret != "s3cret" {
		t.Errorf("jwt secret = %q", cfg.JWTSecret)
	}
	if !reflect.DeepEqual(cfg.CORSAllowedOrigins, []string{"https://a.example.com"}) {
		t.Errorf("origins = %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadConfigPortAndFrontend(t *testing.T) {
	t.Setenv("DEVROOM_CONFIG", "")
	t.Setenv("DEVROOM_LISTEN_ADDR", "")
	t.Setenv("DEVROOM_CORS_ALLOWED_ORIGINS", "")
	t.Setenv("PORT", "8080")
	t.Setenv("FRONTEND_URL", "https://mine.example.com")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("listen addr = %q", cfg.ListenAddr)
	}
	want := []string{"https://mine.example.com", LocalFrontendURL}
	if !reflect.DeepEqual(cfg.CORSAllowedOrigins, want) {
		t.Errorf("origins = %v, want %v", cfg.CORSAllowedOrigins, want)
	}
}

func TestParseDaysDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"90d", 90 * 24 * time.Hour},
		{"1d", 24 * time.Hour},
		{"12h", 12 * time.Hour},
		{"0d", 0},
		{"abc", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := parseDaysDuration(tt.in); got != tt.want {
			t.Errorf("parseDaysDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := (Config{LogLevel: in}).SlogLevel(); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
