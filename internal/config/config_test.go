package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if errWrite := os.WriteFile(path, []byte(body), 0o600); errWrite != nil {
		t.Fatalf("write config: %v", errWrite)
	}
	return path
}

func TestLoadAppliesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  address: "0.0.0.0:9000"
database:
  dsn: "postgres://u:p@localhost:5432/ipgen"
  time_zone: "Asia/Dhaka"
jwt:
  secret: "0123456789abcdef0123"
session:
  batch_ttl: 30m
`)

	cfg, errLoad := Load(path)
	if errLoad != nil {
		t.Fatalf("load: %v", errLoad)
	}
	if cfg.Server.Address != "0.0.0.0:9000" {
		t.Fatalf("expected address override, got %q", cfg.Server.Address)
	}
	if cfg.Session.BatchTTL != 30*time.Minute {
		t.Fatalf("expected batch ttl 30m, got %s", cfg.Session.BatchTTL)
	}
	if cfg.Session.Backend != "memory" {
		t.Fatalf("expected default memory backend, got %q", cfg.Session.Backend)
	}
	if cfg.Pool.InsertBatchSize != 500 {
		t.Fatalf("expected default insert batch size, got %d", cfg.Pool.InsertBatchSize)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
jwt:
  secret: "0123456789abcdef0123"
`)
	t.Setenv("IPGEN_SERVER_ADDRESS", "127.0.0.1:7000")
	t.Setenv("IPGEN_POOL_AUDIT_CLAIMED_PROXIES", "true")

	cfg, errLoad := Load(path)
	if errLoad != nil {
		t.Fatalf("load: %v", errLoad)
	}
	if cfg.Server.Address != "127.0.0.1:7000" {
		t.Fatalf("expected env address, got %q", cfg.Server.Address)
	}
	if !cfg.Pool.AuditClaimedProxies {
		t.Fatalf("expected audit flag from env")
	}
}

func TestLoadRejectsShortSecretAndRedisWithoutAddr(t *testing.T) {
	path := writeConfig(t, `
jwt:
  secret: "short"
`)
	if _, errLoad := Load(path); errLoad == nil || !strings.Contains(errLoad.Error(), "Secret") {
		t.Fatalf("expected secret validation error, got %v", errLoad)
	}

	path = writeConfig(t, `
jwt:
  secret: "0123456789abcdef0123"
session:
  backend: redis
`)
	if _, errLoad := Load(path); errLoad == nil || !strings.Contains(errLoad.Error(), "RedisAddr") {
		t.Fatalf("expected redis addr validation error, got %v", errLoad)
	}
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("IPGEN_CONFIG", "")
	if got := ResolveConfigPath(""); got != defaultConfigPath {
		t.Fatalf("expected default path, got %q", got)
	}
	t.Setenv("IPGEN_CONFIG", "/etc/ipgen/config.yaml")
	if got := ResolveConfigPath(""); got != "/etc/ipgen/config.yaml" {
		t.Fatalf("expected env path, got %q", got)
	}
	if got := ResolveConfigPath("custom.yaml"); got != "custom.yaml" {
		t.Fatalf("expected flag path, got %q", got)
	}
}
