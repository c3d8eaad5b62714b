package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/BrandonDHaskell/rollcall/internal/config"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := config.FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.Env != "dev" || cfg.Store != "sqlite" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.DefaultThreshold != 0.85 || cfg.DefaultGrace != 15 {
		t.Errorf("threshold=%v grace=%d", cfg.DefaultThreshold, cfg.DefaultGrace)
	}
	if cfg.SideEffectTimeout != 2*time.Second || cfg.StatusRetentionDays != 30 {
		t.Errorf("timeout=%s retention=%d", cfg.SideEffectTimeout, cfg.StatusRetentionDays)
	}
	if !cfg.IsDev() {
		t.Error("IsDev() = false")
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("ROLLCALL_ENV", "PROD")
	t.Setenv("ROLLCALL_STORE", "memory")
	t.Setenv("ROLLCALL_AI_API_KEY_HASH", "$2a$10$abcdefghijklmnopqrstuv")
	t.Setenv("ROLLCALL_DEFAULT_THRESHOLD", "0.9")
	t.Setenv("ROLLCALL_SIDE_EFFECT_TIMEOUT", "500ms")

	cfg, err := config.FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Env != "prod" || cfg.Store != "memory" || cfg.DefaultThreshold != 0.9 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.SideEffectTimeout != 500*time.Millisecond {
		t.Errorf("timeout = %s", cfg.SideEffectTimeout)
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
		named      bool // malformed values are reported by the env parser by field
	}{
		{"ROLLCALL_ENV", "staging", true},
		{"ROLLCALL_STORE", "postgres", true},
		{"ROLLCALL_DEFAULT_THRESHOLD", "1.5", true},
		{"ROLLCALL_DEFAULT_GRACE_MINUTES", "-5", true},
		{"ROLLCALL_STATUS_RETENTION_DAYS", "lots", false},
		{"ROLLCALL_SIDE_EFFECT_TIMEOUT", "soon", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := config.FromEnv()
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.named && !strings.Contains(err.Error(), tt.key) {
				t.Errorf("error %q does not name %s", err, tt.key)
			}
		})
	}
}

func TestFromEnv_ProdRequiresKeyHash(t *testing.T) {
	t.Setenv("ROLLCALL_ENV", "prod")
	if _, err := config.FromEnv(); err == nil || !strings.Contains(err.Error(), "ROLLCALL_AI_API_KEY_HASH") {
		t.Fatalf("got %v", err)
	}
}
