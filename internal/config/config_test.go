package config

import (
	"os"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	vars := []string{
		"CLOUDFLARE_API_TOKEN", "DNS_SYNC_INTERVAL", "HEALTH_CHECK_INTERVAL",
		"ENABLE_HEALTH_SERVER", "HEALTH_PORT", "K8S_CONFIG_PATH", "MAX_RETRIES",
		"RETRY_DELAY", "LOG_LEVEL", "LOG_FORMAT",
	}
	for _, v := range vars {
		old, ok := os.LookupEnv(v)
		os.Unsetenv(v)
		t.Cleanup(func() {
			if ok {
				os.Setenv(v, old)
			}
		})
	}
}

func TestLoad_MissingTokenIsFatal(t *testing.T) {
	clearEnv(t)
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected error when CLOUDFLARE_API_TOKEN is unset")
	}
}

func TestLoad_DefaultsAppliedWhenEnvAbsent(t *testing.T) {
	clearEnv(t)
	os.Setenv("CLOUDFLARE_API_TOKEN", "test-token")

	cfg, err := Load("/nonexistent/config.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SyncInterval != defaultSyncInterval {
		t.Errorf("expected default sync interval, got %v", cfg.SyncInterval)
	}
	if cfg.HealthPort != defaultHealthPort {
		t.Errorf("expected default health port, got %d", cfg.HealthPort)
	}
	if !cfg.EnableHealthServer {
		t.Error("expected health server enabled by default")
	}
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	clearEnv(t)
	os.Setenv("CLOUDFLARE_API_TOKEN", "test-token")
	os.Setenv("DNS_SYNC_INTERVAL", "15")
	os.Setenv("HEALTH_PORT", "9090")
	os.Setenv("LOG_FORMAT", "CONSOLE")

	cfg, err := Load("/nonexistent/config.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SyncInterval != 15*time.Second {
		t.Errorf("expected 15s sync interval, got %v", cfg.SyncInterval)
	}
	if cfg.HealthPort != 9090 {
		t.Errorf("expected overridden health port, got %d", cfg.HealthPort)
	}
	if cfg.Log.Format != "console" {
		t.Errorf("expected lowercased log format, got %q", cfg.Log.Format)
	}
}

func TestLoad_UnparseableEnvFallsBackToDefault(t *testing.T) {
	clearEnv(t)
	os.Setenv("CLOUDFLARE_API_TOKEN", "test-token")
	os.Setenv("DNS_SYNC_INTERVAL", "not-a-number")

	cfg, err := Load("/nonexistent/config.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SyncInterval != defaultSyncInterval {
		t.Errorf("expected default sync interval on parse failure, got %v", cfg.SyncInterval)
	}
}
