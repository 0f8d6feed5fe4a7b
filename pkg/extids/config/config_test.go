package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("EXTIDS_DB_DRIVER", "")
	t.Setenv("EXTIDS_DB_PATH", "")
	t.Setenv("PORT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DBDriver != "sqlite3" || cfg.DBPath != "extids.db" {
		t.Errorf("Unexpected database defaults: %s %s", cfg.DBDriver, cfg.DBPath)
	}
	if cfg.Addr() != ":8080" {
		t.Errorf("Expected :8080, got %s", cfg.Addr())
	}
	if cfg.TokenTTL != 24*time.Hour || cfg.CacheTTL != 5*time.Minute {
		t.Errorf("Unexpected durations: %s %s", cfg.TokenTTL, cfg.CacheTTL)
	}
	if !cfg.OtelEnabled || cfg.AdminClient != "admin" {
		t.Errorf("Unexpected defaults: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("EXTIDS_DB_DRIVER", "sqlite")
	t.Setenv("PORT", "9000")
	t.Setenv("EXTIDS_TOKEN_TTL", "90m")
	t.Setenv("EXTIDS_REDIS_ADDR", "localhost:6379")
	t.Setenv("EXTIDS_REDIS_DB", "3")
	t.Setenv("EXTIDS_PRETTY_LOG", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DBDriver != "sqlite" || cfg.Port != "9000" || cfg.TokenTTL != 90*time.Minute {
		t.Errorf("Overrides not applied: %+v", cfg)
	}
	if cfg.RedisAddr != "localhost:6379" || cfg.RedisDB != 3 || !cfg.PrettyLog {
		t.Errorf("Overrides not applied: %+v", cfg)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("EXTIDS_DB_DRIVER", "postgres")
	if _, err := Load(); err == nil {
		t.Error("Expected an error for an unsupported driver")
	}

	t.Setenv("EXTIDS_DB_DRIVER", "")
	t.Setenv("EXTIDS_REDIS_DB", "abc")
	if _, err := Load(); err == nil {
		t.Error("Expected an error for a non-numeric redis db")
	}
}
