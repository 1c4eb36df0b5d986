package api

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFrontendURL and LocalFrontendURL are the origins allowed when no
// CORS list is configured.
const (
	DefaultFrontendURL = "https://dev-room-8sa2.vercel.app"
	LocalFrontendURL   = "http://localhost:5173"
)

// Config holds the server configuration. Values come from defaults, then an
// optional YAML file, then environment variables.
type Config struct {
	ListenAddr      string        `yaml:"listen_addr"`
	DBPath          string        `yaml:"db_path"`
	DBDriver        string        `yaml:"db_driver"` // "sqlite" (default) or "sqlite3"
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogFormat       string        `yaml:"log_format"` // "json" (default) or "text"
	LogLevel        string        `yaml:"log_level"`  // "debug", "info" (default), "warn", "error"

	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`

	GoogleAPIKey string `yaml:"google_api_key"`
	DevAIModel   string `yaml:"devai_model"`

	PistonURL     string        `yaml:"piston_url"`
	PistonTimeout time.Duration `yaml:"piston_timeout"`

	WebhookURL    string `yaml:"webhook_url"`
	WebhookSecret string `yaml:"webhook_secret"`

	RateLimitAuth  int `yaml:"rate_limit_auth"`  // /api/auth/* per IP per minute
	RateLimitDevAI int `yaml:"rate_limit_devai"` // /api/devai-chat per IP per minute
	RateLimitExec  int `yaml:"rate_limit_exec"`  // compileCode per socket per minute

	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`

	AuthEventRetention      time.Duration `yaml:"auth_event_retention"`
	RateLimitEventRetention time.Duration `yaml:"rate_limit_event_retention"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		ListenAddr:      ":5000",
		DBPath:          "./data/devroom.db",
		ShutdownTimeout: 30 * time.Second,
		LogFormat:       "json",
		LogLevel:        "info",

		TokenTTL:   7 * 24 * time.Hour,
		DevAIModel: "gemini-2.5-flash",

		PistonURL:     "https://emkc.org",
		PistonTimeout: 30 * time.Second,

		RateLimitAuth:  10,
		RateLimitDevAI: 20,
		RateLimitExec:  30,

		CORSAllowedOrigins: []string{DefaultFrontendURL, LocalFrontendURL},

		AuthEventRetention:      90 * 24 * time.Hour,
		RateLimitEventRetention: 30 * 24 * time.Hour,
	}
}

// LoadConfig builds the configuration. path names an optional YAML file; an
// empty path falls back to DEVROOM_CONFIG.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv("DEVROOM_CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.ListenAddr = ":" + v
	}
	if v := os.Getenv("DEVROOM_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("DEVROOM_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("DEVROOM_DB_DRIVER"); v != "" {
		c.DBDriver = v
	}
	if v := os.Getenv("DEVROOM_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.ShutdownTimeout = d
		}
	}
	if v := os.Getenv("DEVROOM_LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv("DEVROOM_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}

	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v := os.Getenv("DEVROOM_TOKEN_TTL"); v != "" {
		if d := parseDaysDuration(v); d > 0 {
			c.TokenTTL = d
		}
	}
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		c.GoogleAPIKey = v
	}
	if v := os.Getenv("DEVROOM_DEVAI_MODEL"); v != "" {
		c.DevAIModel = v
	}
	if v := os.Getenv("DEVROOM_PISTON_URL"); v != "" {
		c.PistonURL = v
	}
	if v := os.Getenv("DEVROOM_PISTON_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.PistonTimeout = d
		}
	}
	if v := os.Getenv("DEVROOM_WEBHOOK_URL"); v != "" {
		c.WebhookURL = v
	}
	if v := os.Getenv("DEVROOM_WEBHOOK_SECRET"); v != "" {
		c.WebhookSecret = v
	}

	envInt("DEVROOM_RATE_LIMIT_AUTH", &c.RateLimitAuth)
	envInt("DEVROOM_RATE_LIMIT_DEVAI", &c.RateLimitDevAI)
	envInt("DEVROOM_RATE_LIMIT_EXEC", &c.RateLimitExec)

	if v := os.Getenv("DEVROOM_AUTH_EVENT_RETENTION"); v != "" {
		if d := parseDaysDuration(v); d > 0 {
			c.AuthEventRetention = d
		}
	}
	if v := os.Getenv("DEVROOM_RATE_LIMIT_EVENT_RETENTION"); v != "" {
		if d := parseDaysDuration(v); d > 0 {
			c.RateLimitEventRetention = d
		}
	}

	if v := os.Getenv("DEVROOM_CORS_ALLOWED_ORIGINS"); v != "" {
		c.CORSAllowedOrigins = splitList(v)
	} else if v := os.Getenv("FRONTEND_URL"); v != "" {
		c.CORSAllowedOrigins = []string{strings.TrimSpace(v), LocalFrontendURL}
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, o := range strings.Split(v, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// parseDaysDuration parses a string like "90d", "30d" into a time.Duration.
// Falls back to time.ParseDuration for standard Go durations.
func parseDaysDuration(s string) time.Duration {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "d") {
		numStr := strings.TrimSuffix(s, "d")
		if n, err := strconv.Atoi(numStr); err == nil && n > 0 {
			return time.Duration(n) * 24 * time.Hour
		}
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return 0
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
