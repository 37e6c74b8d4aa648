package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoad_Success(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.App.Env != "production" {
		t.Fatalf("expected App.Env to be production, got %q", cfg.App.Env)
	}
	if cfg.DB.Path != "/tmp/kasse.db" {
		t.Fatalf("unexpected db path %q", cfg.DB.Path)
	}
	if got := cfg.DB.BusyTimeout; got != 5*time.Second {
		t.Fatalf("expected busy timeout 5s, got %v", got)
	}
	if cfg.Ledger.NumberAttempts != 5 {
		t.Fatalf("expected 5 numbering attempts, got %d", cfg.Ledger.NumberAttempts)
	}
	if cfg.Migrations.TableName != "schema_migrations" {
		t.Fatalf("unexpected migrations table %q", cfg.Migrations.TableName)
	}
	if !cfg.FeatureFlags.AutoMigrate {
		t.Fatalf("auto migrate should default to true")
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	setMinimalEnv(t)
	if err := os.Unsetenv(EnvDBPath); err != nil {
		t.Fatalf("failed to unset %s: %v", EnvDBPath, err)
	}

	if _, err := Load(); err == nil {
		t.Fatal("expected missing required env to return an error")
	}
}

func TestLoad_RejectsNonPositiveAttempts(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvNumberAttempts, "0")

	if _, err := Load(); err == nil {
		t.Fatal("expected zero attempts to be rejected")
	}
}

func setMinimalEnv(t *testing.T) {
	t.Helper()

	t.Setenv(EnvAppEnv, "production")
	t.Setenv(EnvDBPath, "/tmp/kasse.db")
}

func TestAppConfigEnvHelpers(t *testing.T) {
	devConfig := AppConfig{Env: "DEV"}
	if !devConfig.IsDev() {
		t.Fatalf("expected IsDev true for %q", devConfig.Env)
	}
	if devConfig.IsProd() {
		t.Fatalf("expected IsProd false for %q", devConfig.Env)
	}

	prodConfig := AppConfig{Env: "prod"}
	if !prodConfig.IsProd() {
		t.Fatalf("expected IsProd true for %q", prodConfig.Env)
	}
}

func TestDBConfigDSN(t *testing.T) {
	cfg := DBConfig{Path: "/data/kasse.db", BusyTimeout: 2 * time.Second, JournalMode: "wal"}
	dsn := cfg.DSN()

	for _, want := range []string{"file:/data/kasse.db?", "_txlock=immediate", "_busy_timeout=2000", "_journal_mode=WAL", "_foreign_keys=1"} {
		if !strings.Contains(dsn, want) {
			t.Fatalf("dsn %q missing %q", dsn, want)
		}
	}
}
