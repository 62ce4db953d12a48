package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port from file, got %d", cfg.Server.Port)
	}
	if cfg.Cache.Backend != CacheMemory {
		t.Errorf("expected memory cache by default, got %q", cfg.Cache.Backend)
	}
	if cfg.Validation.MaxTargets != 20 || cfg.Validation.MaxTargetLength != 200 {
		t.Errorf("unexpected validation defaults %+v", cfg.Validation)
	}
	if cfg.Analysis.Timeout() != 2*time.Minute {
		t.Errorf("expected 2m analysis timeout, got %v", cfg.Analysis.Timeout())
	}
	if cfg.Neo4j.Enabled {
		t.Errorf("neo4j export must be opt-in")
	}
}

func TestLoadFileOverrides(t *testing.T) {
	path := writeConfig(t, `
analysis:
  baseURL: http://analysis:5000
  maxPairs: 10
cache:
  backend: sqlite
sqlite:
  path: /tmp/snap.db
neo4j:
  enabled: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Analysis.BaseURL != "http://analysis:5000" || cfg.Analysis.MaxPairs != 10 {
		t.Errorf("unexpected analysis config %+v", cfg.Analysis)
	}
	if cfg.Cache.Backend != CacheSQLite || cfg.SQLite.Path != "/tmp/snap.db" {
		t.Errorf("unexpected cache config %+v %+v", cfg.Cache, cfg.SQLite)
	}
	if !cfg.Neo4j.Enabled {
		t.Errorf("expected neo4j enabled")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DASHBOARD_CACHE_BACKEND", "redis")
	t.Setenv("DASHBOARD_REDIS_HOST", "cache.internal")

	cfg, err := Load(writeConfig(t, "logging:\n  level: debug\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cache.Backend != CacheRedis || cfg.Redis.Host != "cache.internal" {
		t.Errorf("env overrides not applied: %+v %+v", cfg.Cache, cfg.Redis)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected file value to survive, got %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	path := writeConfig(t, "cache:\n  backend: memcached\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
