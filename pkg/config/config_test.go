package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agent-matrix/matrix-system/pkg/client"
	"github.com/agent-matrix/matrix-system/pkg/validation"
)

var envKeys = []string{
	"MATRIX_HUB_URL", "MATRIX_AI_URL", "MATRIX_GUARDIAN_URL",
	"MATRIX_HUB_TOKEN", "MATRIX_TOKEN", "API_TOKEN",
	"MATRIX_TIMEOUT", "MATRIX_MAX_RETRIES", "MATRIX_RATE_LIMIT",
	"MATRIX_LOG_LEVEL", "MATRIX_LOG_JSON",
	"STORAGE_ENABLED", "DATABASE_URL", "PROMETHEUS_URL", "KUBECONFIG",
}

// clearEnv empties every variable the config reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func TestNewConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg := NewConfig()

	if cfg.HubURL != DefaultHubURL {
		t.Errorf("Expected default hub URL, got %s", cfg.HubURL)
	}
	if cfg.GuardianURL != "http://localhost:8080" {
		t.Errorf("Expected default guardian URL, got %s", cfg.GuardianURL)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Expected timeout 30s, got %v", cfg.Timeout)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("Expected 3 retries, got %d", cfg.MaxRetries)
	}
	if cfg.Token != "" {
		t.Errorf("Expected no token, got %q", cfg.Token)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected log level info, got %s", cfg.LogLevel)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestConfigFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("MATRIX_HUB_URL", "http://hub:7300")
	t.Setenv("MATRIX_TIMEOUT", "45")
	t.Setenv("MATRIX_MAX_RETRIES", "5")
	t.Setenv("MATRIX_LOG_LEVEL", "DEBUG")
	t.Setenv("MATRIX_LOG_JSON", "true")
	t.Setenv("STORAGE_ENABLED", "1")

	cfg := NewConfig()

	if cfg.HubURL != "http://hub:7300" {
		t.Errorf("Expected hub URL from env, got %s", cfg.HubURL)
	}
	if cfg.Timeout != 45*time.Second {
		t.Errorf("Expected timeout 45s from env, got %v", cfg.Timeout)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("Expected 5 retries from env, got %d", cfg.MaxRetries)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected normalized log level debug, got %s", cfg.LogLevel)
	}
	if !cfg.LogJSON || !cfg.StorageEnabled {
		t.Errorf("Expected boolean flags from env, got json=%v storage=%v", cfg.LogJSON, cfg.StorageEnabled)
	}
}

func TestInvalidEnvFallsBackToDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("MATRIX_TIMEOUT", "soon")
	t.Setenv("MATRIX_MAX_RETRIES", "many")

	cfg := NewConfig()

	if cfg.Timeout != client.DefaultTimeout {
		t.Errorf("Expected default timeout, got %v", cfg.Timeout)
	}
	if cfg.MaxRetries != client.DefaultMaxRetries {
		t.Errorf("Expected default retries, got %d", cfg.MaxRetries)
	}
}

func TestTokenAliases(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"none", map[string]string{}, ""},
		{"api token only", map[string]string{"API_TOKEN": "legacy"}, "legacy"},
		{"matrix token beats api token", map[string]string{"MATRIX_TOKEN": "mid", "API_TOKEN": "legacy"}, "mid"},
		{"hub token wins", map[string]string{"MATRIX_HUB_TOKEN": "hub", "MATRIX_TOKEN": "mid", "API_TOKEN": "legacy"}, "hub"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			if got := NewConfig().Token; got != tt.want {
				t.Errorf("Expected token %q, got %q", tt.want, got)
			}
		})
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name        string
		setupConfig func(*Config)
		expectField string
	}{
		{name: "valid default config", setupConfig: func(c *Config) {}},
		{name: "timeout lower edge", setupConfig: func(c *Config) { c.Timeout = time.Second }},
		{name: "timeout upper edge", setupConfig: func(c *Config) { c.Timeout = 300 * time.Second }},
		{name: "retries upper edge", setupConfig: func(c *Config) { c.MaxRetries = 10 }},
		{name: "no retries", setupConfig: func(c *Config) { c.MaxRetries = 0 }},
		{name: "timeout too low", setupConfig: func(c *Config) { c.Timeout = 0 }, expectField: "timeout"},
		{name: "timeout too high", setupConfig: func(c *Config) { c.Timeout = 301 * time.Second }, expectField: "timeout"},
		{name: "negative retries", setupConfig: func(c *Config) { c.MaxRetries = -1 }, expectField: "max_retries"},
		{name: "too many retries", setupConfig: func(c *Config) { c.MaxRetries = 11 }, expectField: "max_retries"},
		{name: "bad hub url", setupConfig: func(c *Config) { c.HubURL = "hub" }, expectField: "hub_url"},
		{name: "bad log level", setupConfig: func(c *Config) { c.LogLevel = "verbose" }, expectField: "log_level"},
		{name: "bad output", setupConfig: func(c *Config) { c.OutputFormat = "yaml" }, expectField: "output"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.setupConfig(cfg)

			err := cfg.Validate()

			if tt.expectField == "" {
				if err != nil {
					t.Errorf("Expected no error but got: %v", err)
				}
				return
			}

			var verr *validation.Error
			if !errors.As(err, &verr) {
				t.Fatalf("Expected validation error, got %v", err)
			}
			if verr.Field != tt.expectField {
				t.Errorf("Expected error on %s, got %s (%v)", tt.expectField, verr.Field, err)
			}
		})
	}
}

func TestStorageRequiresDatabaseURL(t *testing.T) {
	cfg := Defaults()
	cfg.StorageEnabled = true
	cfg.DatabaseURL = ""

	if err := cfg.Validate(); err == nil {
		t.Error("Expected error when storage is enabled without a database URL")
	}
}

func TestLoadFileThenEnvironment(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "matrix.yaml")
	content := `hub_url: http://file-hub:7300
guardian_url: http://file-guardian:8080
timeout: 10s
max_retries: 2
log_level: warn
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MATRIX_GUARDIAN_URL", "http://env-guardian:8080")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HubURL != "http://file-hub:7300" {
		t.Errorf("Expected hub URL from file, got %s", cfg.HubURL)
	}
	if cfg.GuardianURL != "http://env-guardian:8080" {
		t.Errorf("Expected environment to override file, got %s", cfg.GuardianURL)
	}
	if cfg.Timeout != 10*time.Second || cfg.MaxRetries != 2 {
		t.Errorf("Expected timeout/retries from file, got %v/%d", cfg.Timeout, cfg.MaxRetries)
	}
	if cfg.AIURL != DefaultAIURL {
		t.Errorf("Expected untouched keys to keep defaults, got %s", cfg.AIURL)
	}
}

func TestLoadFileDurations(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantTimeout time.Duration
		wantWindow  time.Duration
	}{
		{name: "bare seconds", content: "timeout: 30\nprobe_window: 600\n", wantTimeout: 30 * time.Second, wantWindow: 10 * time.Minute},
		{name: "sub second", content: "timeout: 1500ms\n", wantTimeout: 1500 * time.Millisecond, wantWindow: 5 * time.Minute},
		{name: "fractional seconds", content: "timeout: 2.5\n", wantTimeout: 2500 * time.Millisecond, wantWindow: 5 * time.Minute},
		{name: "duration string", content: "timeout: 2m\nprobe_window: 15m\n", wantTimeout: 2 * time.Minute, wantWindow: 15 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			path := filepath.Join(t.TempDir(), "matrix.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatal(err)
			}

			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if cfg.Timeout != tt.wantTimeout {
				t.Errorf("Expected timeout %v, got %v", tt.wantTimeout, cfg.Timeout)
			}
			if cfg.ProbeWindow != tt.wantWindow {
				t.Errorf("Expected probe window %v, got %v", tt.wantWindow, cfg.ProbeWindow)
			}
		})
	}
}

func TestEnvTimeoutOverridesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "matrix.yaml")
	if err := os.WriteFile(path, []byte("timeout: 1500ms\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MATRIX_TIMEOUT", "20")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Timeout != 20*time.Second {
		t.Errorf("Expected timeout 20s from env, got %v", cfg.Timeout)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	clearEnv(t)

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("max_retries: 99\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected validation error for out of range retries")
	}
}

func TestServiceConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Token = "abc"
	cfg.MaxRetries = 4

	hub, err := cfg.ServiceConfig(client.ServiceHub)
	if err != nil {
		t.Fatal(err)
	}
	if hub.BaseURL != DefaultHubURL || hub.Token != "abc" || hub.MaxRetries != 4 || hub.Service != "hub" {
		t.Errorf("Unexpected hub client config: %+v", hub)
	}

	guardian, err := cfg.ServiceConfig(client.ServiceGuardian)
	if err != nil {
		t.Fatal(err)
	}
	if guardian.BaseURL != DefaultGuardianURL {
		t.Errorf("Expected guardian URL, got %s", guardian.BaseURL)
	}

	if _, err := cfg.ServiceConfig("oracle"); err == nil {
		t.Error("Expected error for unknown service")
	}
}

func TestMaskedToken(t *testing.T) {
	cfg := Defaults()
	if got := cfg.MaskedToken(); got != "(not set)" {
		t.Errorf("Expected (not set), got %s", got)
	}
	cfg.Token = "short"
	if got := cfg.MaskedToken(); got != "****" {
		t.Errorf("Expected ****, got %s", got)
	}
	cfg.Token = "abcd1234efgh5678"
	if got := cfg.MaskedToken(); got != "abcd****5678" {
		t.Errorf("Expected abcd****5678, got %s", got)
	}
}
