package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultSyncInterval        = 60 * time.Second
	defaultHealthCheckInterval = 30 * time.Second
	defaultHealthPort          = 8080
	defaultMaxRetries          = 3
	defaultRetryDelay          = 5 * time.Second
	defaultStatePath           = "epictetus.db"
	defaultLogLevel            = "info"
	defaultLogFormat           = "json"
)

// Config is the resolved runtime configuration. The authoritative surface
// is the environment; an optional YAML file at ConfigPath supplements it
// with operator settings too fiddly for one env var.
type Config struct {
	SyncInterval        time.Duration
	HealthCheckInterval time.Duration
	EnableHealthServer  bool
	HealthPort          int
	K8sConfigPath       string
	MaxRetries          int
	RetryDelay          time.Duration
	StatePath           string

	Log Log
	DNS DNS

	// Reconcile carries settings this controller needs that don't have a
	// dedicated named env var.
	Reconcile Reconcile
}

type DNS struct {
	Token string
}

type Log struct {
	Level  string
	Format string
}

type Reconcile struct {
	// ProtectedHostnames are never mutated by the engine, even if absent
	// from the derived spec set. Loaded only from the optional YAML file.
	ProtectedHostnames []string `yaml:"protectedHostnames"`
	// MinInterval is the minimum gap enforced between the end of one pass
	// and the start of the next triggered by a coalesced signal. Zero
	// (default) disables the gap.
	MinInterval time.Duration `yaml:"minInterval"`
}

type fileConfig struct {
	Reconcile Reconcile `yaml:"reconcile"`
}

// Load resolves configuration from the optional file at configPath
// (missing is fine) overlaid by environment variables, which win.
func Load(configPath string) (*Config, error) {
	cfg := &Config{
		SyncInterval:        defaultSyncInterval,
		HealthCheckInterval: defaultHealthCheckInterval,
		EnableHealthServer:  true,
		HealthPort:          defaultHealthPort,
		MaxRetries:          defaultMaxRetries,
		RetryDelay:          defaultRetryDelay,
		StatePath:           defaultStatePath,
		Log: Log{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}

	var fc fileConfig
	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
		slog.Default().Warn("fail find config file, proceeding", "path", configPath)
	} else {
		f, err := os.Open(configPath)
		if err != nil {
			return nil, err
		}
		if err := yaml.NewDecoder(f).Decode(&fc); err != nil {
			f.Close()
			return nil, fmt.Errorf("decode config file %s: %w", configPath, err)
		}
		if err := f.Close(); err != nil {
			slog.Default().Warn("fail close config file", "path", configPath, "error", err)
		}
	}
	cfg.Reconcile = fc.Reconcile

	cfg.DNS.Token = os.Getenv("CLOUDFLARE_API_TOKEN")

	if v := os.Getenv("DNS_SYNC_INTERVAL"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
			cfg.SyncInterval = time.Duration(seconds) * time.Second
		} else {
			slog.Default().Warn("fail parse DNS_SYNC_INTERVAL, using default", "value", v)
		}
	}
	if v := os.Getenv("HEALTH_CHECK_INTERVAL"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
			cfg.HealthCheckInterval = time.Duration(seconds) * time.Second
		} else {
			slog.Default().Warn("fail parse HEALTH_CHECK_INTERVAL, using default", "value", v)
		}
	}
	if v := os.Getenv("ENABLE_HEALTH_SERVER"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.EnableHealthServer = enabled
		} else {
			slog.Default().Warn("fail parse ENABLE_HEALTH_SERVER, using default", "value", v)
		}
	}
	if v := os.Getenv("HEALTH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.HealthPort = port
		} else {
			slog.Default().Warn("fail parse HEALTH_PORT, using default", "value", v)
		}
	}
	cfg.K8sConfigPath = os.Getenv("K8S_CONFIG_PATH")
	if v := os.Getenv("MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.MaxRetries = n
		} else {
			slog.Default().Warn("fail parse MAX_RETRIES, using default", "value", v)
		}
	}
	if v := os.Getenv("RETRY_DELAY"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds >= 0 {
			cfg.RetryDelay = time.Duration(seconds) * time.Second
		} else {
			slog.Default().Warn("fail parse RETRY_DELAY, using default", "value", v)
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = strings.ToLower(v)
	}

	if cfg.DNS.Token == "" {
		return nil, errors.New("CLOUDFLARE_API_TOKEN is required")
	}

	return cfg, nil
}
