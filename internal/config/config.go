package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr string `env:"ROLLCALL_HTTP_ADDR" envDefault:":8080"`
	GRPCAddr string `env:"ROLLCALL_GRPC_ADDR" envDefault:":9090"` // empty disables gRPC

	Env    string `env:"ROLLCALL_ENV"     envDefault:"dev"`    // "dev" | "prod"
	Store  string `env:"ROLLCALL_STORE"   envDefault:"sqlite"` // "sqlite" | "memory"
	DBPath string `env:"ROLLCALL_DB_PATH" envDefault:"./data/rollcall.db"`

	CamerasFile      string  `env:"ROLLCALL_CAMERAS_FILE"`
	DefaultThreshold float64 `env:"ROLLCALL_DEFAULT_THRESHOLD"     envDefault:"0.85"`
	DefaultGrace     int     `env:"ROLLCALL_DEFAULT_GRACE_MINUTES" envDefault:"15"`

	// bcrypt hash of the key AI nodes send in X-API-Key.
	AIKeyHash string `env:"ROLLCALL_AI_API_KEY_HASH"`

	// Camera status retention
	StatusRetentionDays int `env:"ROLLCALL_STATUS_RETENTION_DAYS" envDefault:"30"` // 0 = keep forever
	PruneIntervalHours  int `env:"ROLLCALL_PRUNE_INTERVAL_HOURS"  envDefault:"6"`

	SideEffectTimeout time.Duration `env:"ROLLCALL_SIDE_EFFECT_TIMEOUT" envDefault:"2s"`
	OTelEndpoint      string        `env:"ROLLCALL_OTEL_ENDPOINT"`
	LogLevel          string        `env:"ROLLCALL_LOG_LEVEL" envDefault:"info"`
}

// FromEnv reads ROLLCALL_* variables. Malformed or out of range values are
// reported with the variable name.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch {
	case c.Env != "dev" && c.Env != "prod":
		return fmt.Errorf("ROLLCALL_ENV: must be dev or prod, got %q", c.Env)
	case c.Store != "sqlite" && c.Store != "memory":
		return fmt.Errorf("ROLLCALL_STORE: must be sqlite or memory, got %q", c.Store)
	case c.DefaultThreshold < 0 || c.DefaultThreshold > 1:
		return fmt.Errorf("ROLLCALL_DEFAULT_THRESHOLD: must be between 0 and 1, got %v", c.DefaultThreshold)
	case c.DefaultGrace < 0:
		return fmt.Errorf("ROLLCALL_DEFAULT_GRACE_MINUTES: must not be negative, got %d", c.DefaultGrace)
	case c.StatusRetentionDays < 0:
		return fmt.Errorf("ROLLCALL_STATUS_RETENTION_DAYS: must not be negative, got %d", c.StatusRetentionDays)
	case c.PruneIntervalHours < 0:
		return fmt.Errorf("ROLLCALL_PRUNE_INTERVAL_HOURS: must not be negative, got %d", c.PruneIntervalHours)
	case c.SideEffectTimeout < 0:
		return fmt.Errorf("ROLLCALL_SIDE_EFFECT_TIMEOUT: must not be negative, got %s", c.SideEffectTimeout)
	case c.Env == "prod" && strings.TrimSpace(c.AIKeyHash) == "":
		return fmt.Errorf("ROLLCALL_AI_API_KEY_HASH: required when ROLLCALL_ENV=prod")
	}
	return nil
}

// IsDev reports whether the server runs in development mode.
func (c Config) IsDev() bool { return c.Env == "dev" }
