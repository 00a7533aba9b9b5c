package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "")
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, resolved, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if resolved != path {
		t.Fatalf("unexpected path: %s", resolved)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if cfg.HistoryLimit != 50 || cfg.StoreDriver != StoreDriverSQLite || cfg.Addr != ":3001" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadPrecedence(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "addr: \":9000\"\nstore_driver: badger\nhistory_limit: 20\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CHATRELAY_HISTORY_LIMIT", "30")
	t.Setenv("CHATRELAY_STORE_TIMEOUT", "2s")

	cfg, _, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9000" {
		t.Fatalf("file value not applied: %s", cfg.Addr)
	}
	if cfg.StoreDriver != StoreDriverBadger {
		t.Fatalf("file value not applied: %s", cfg.StoreDriver)
	}
	if cfg.HistoryLimit != 30 {
		t.Fatalf("env must override file, got %d", cfg.HistoryLimit)
	}
	if cfg.StoreTimeout != 2*time.Second {
		t.Fatalf("unexpected store timeout: %v", cfg.StoreTimeout)
	}
}

func TestLoadHonoursPortAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("PORT=4567\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("PORT", "")
	os.Unsetenv("PORT")

	cfg, _, err := Load(nil, filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":4567" {
		t.Fatalf("expected PORT from .env, got %s", cfg.Addr)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("store_driver: mongo\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, _, err := Load(nil, path); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestUpdateFrom(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{Addr: ":1", RateLimit: 10, AllowedOrigins: []string{"example.com"}})

	if cfg.Addr != ":1" || cfg.RateLimit != 10 || cfg.AllowedOrigins[0] != "example.com" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.HistoryLimit != 50 {
		t.Fatalf("zero values must not override: %+v", cfg)
	}
}
