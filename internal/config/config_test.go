package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_AppliesDefaultsAndOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
capability:
  base_url: http://localhost:7001
identity:
  base_url: http://localhost:7002
azure:
  base_url: http://localhost:7003
  load_concurrency: 4
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	// Unset fields keep defaults.
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("ReadTimeout = %v, want default 30s", cfg.Server.ReadTimeout)
	}
	if cfg.Identity.TokenCache.Driver != "memory" {
		t.Errorf("TokenCache.Driver = %q, want default memory", cfg.Identity.TokenCache.Driver)
	}
	if cfg.Azure.LoadConcurrency != 4 {
		t.Errorf("LoadConcurrency = %d, want 4", cfg.Azure.LoadConcurrency)
	}
	if cfg.Azure.SubscriptionTTL != 5*time.Minute {
		t.Errorf("SubscriptionTTL = %v, want default 5m", cfg.Azure.SubscriptionTTL)
	}
}

func TestLoad_MissingRequiredFields(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load succeeded without required base URLs")
	}
	for _, want := range []string{"capability.base_url", "identity.base_url"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoad_RejectsUnknownDrivers(t *testing.T) {
	path := writeConfig(t, `
capability:
  base_url: http://localhost:7001
identity:
  base_url: http://localhost:7002
  token_cache:
    driver: memcached
store:
  driver: sqlite
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load accepted unknown drivers")
	}
	if !strings.Contains(err.Error(), "store.driver") {
		t.Errorf("error %q does not mention store.driver", err)
	}
	if !strings.Contains(err.Error(), "token_cache.driver") {
		t.Errorf("error %q does not mention token_cache.driver", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
capability:
  base_url: http://localhost:7001
identity:
  base_url: http://localhost:7002
`)

	t.Setenv("MSSQLDLG_SERVER_PORT", "7777")
	t.Setenv("MSSQLDLG_CAPABILITY_BASE_URL", "http://override:7001")
	t.Setenv("MSSQLDLG_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Server.Port != 7777 {
		t.Errorf("Port = %d, want env override 7777", cfg.Server.Port)
	}
	if cfg.Capability.BaseURL != "http://override:7001" {
		t.Errorf("Capability.BaseURL = %q, want env override", cfg.Capability.BaseURL)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.Observability.LogLevel)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load succeeded on a missing file")
	}
}
