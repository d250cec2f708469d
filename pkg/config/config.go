package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/agent-matrix/matrix-system/pkg/client"
	"github.com/agent-matrix/matrix-system/pkg/validation"
)

// Default endpoints
const (
	DefaultHubURL      = "https://api.matrixhub.io"
	DefaultAIURL       = "https://huggingface.co/spaces/agent-matrix/matrix-ai"
	DefaultGuardianURL = "http://localhost:8080"
)

// tokenEnvVars are checked in order, the first non-empty one wins
var tokenEnvVars = []string{"MATRIX_HUB_TOKEN", "MATRIX_TOKEN", "API_TOKEN"}

// Config holds application configuration
type Config struct {
	// Endpoints
	HubURL      string `yaml:"hub_url" json:"hub_url" validate:"required,url"`
	AIURL       string `yaml:"ai_url" json:"ai_url" validate:"required,url"`
	GuardianURL string `yaml:"guardian_url" json:"guardian_url" validate:"required,url"`

	// Authentication
	Token string `yaml:"token" json:"-"`

	// HTTP
	Timeout    time.Duration `yaml:"timeout" json:"timeout" validate:"gte=1s,lte=300s"`
	MaxRetries int           `yaml:"max_retries" json:"max_retries" validate:"gte=0,lte=10"`
	RateLimit  float64       `yaml:"rate_limit" json:"rate_limit" validate:"gte=0"`

	// Logging
	LogLevel string `yaml:"log_level" json:"log_level" validate:"oneof=trace debug info warn warning error critical fatal panic"`
	LogJSON  bool   `yaml:"log_json" json:"log_json"`

	// Storage
	StorageEnabled bool   `yaml:"storage_enabled" json:"storage_enabled"`
	DatabaseURL    string `yaml:"database_url" json:"database_url"`

	// Probe sources
	PrometheusURL string        `yaml:"prometheus_url" json:"prometheus_url" validate:"omitempty,url"`
	ProbeWindow   time.Duration `yaml:"probe_window" json:"probe_window" validate:"gte=1m"`
	Kubeconfig    string        `yaml:"kubeconfig" json:"kubeconfig"`

	// Output
	OutputFormat string `yaml:"output" json:"output" validate:"oneof=text json"`
}

// Defaults returns the built-in configuration without consulting the
// environment.
func Defaults() *Config {
	return &Config{
		HubURL:         DefaultHubURL,
		AIURL:          DefaultAIURL,
		GuardianURL:    DefaultGuardianURL,
		Timeout:        client.DefaultTimeout,
		MaxRetries:     client.DefaultMaxRetries,
		LogLevel:       "info",
		StorageEnabled: false,
		DatabaseURL:    "host=localhost port=5432 user=matrix password=matrix dbname=matrix sslmode=disable",
		PrometheusURL:  "http://localhost:9090",
		ProbeWindow:    5 * time.Minute,
		OutputFormat:   "text",
	}
}

// NewConfig creates a configuration from defaults overridden by the
// environment.
func NewConfig() *Config {
	cfg := Defaults()
	cfg.applyEnv()
	return cfg
}

// Load builds the configuration in precedence order defaults, YAML file,
// environment, and validates it. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// durationKeys are YAML keys holding a time.Duration. Bare numbers are
// read as seconds, like MATRIX_TIMEOUT.
var durationKeys = map[string]bool{"timeout": true, "probe_window": true}

// UnmarshalYAML accepts "30", "30s" and "1500ms" for duration keys.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			if !durationKeys[key.Value] || value.Kind != yaml.ScalarNode {
				continue
			}
			if _, err := strconv.ParseFloat(value.Value, 64); err == nil {
				value.Value += "s"
				value.Tag = "!!str"
			}
		}
	}

	type plain Config
	return node.Decode((*plain)(c))
}

// LoadFile overlays the keys present in a YAML file onto c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.HubURL = getEnv("MATRIX_HUB_URL", c.HubURL)
	c.AIURL = getEnv("MATRIX_AI_URL", c.AIURL)
	c.GuardianURL = getEnv("MATRIX_GUARDIAN_URL", c.GuardianURL)
	for _, key := range tokenEnvVars {
		if value := os.Getenv(key); value != "" {
			c.Token = value
			break
		}
	}

	c.Timeout = getEnvSeconds("MATRIX_TIMEOUT", c.Timeout)
	c.MaxRetries = getEnvInt("MATRIX_MAX_RETRIES", c.MaxRetries)
	c.RateLimit = getEnvFloat("MATRIX_RATE_LIMIT", c.RateLimit)

	c.LogLevel = strings.ToLower(getEnv("MATRIX_LOG_LEVEL", c.LogLevel))
	c.LogJSON = getEnvBool("MATRIX_LOG_JSON", c.LogJSON)

	c.StorageEnabled = getEnvBool("STORAGE_ENABLED", c.StorageEnabled)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)

	c.PrometheusURL = getEnv("PROMETHEUS_URL", c.PrometheusURL)
	c.Kubeconfig = getEnv("KUBECONFIG", c.Kubeconfig)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt falls back to the default when the value does not parse.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvSeconds reads a whole number of seconds. An unset or malformed value
// keeps the default untouched.
func getEnvSeconds(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if err := validation.Struct("config", c); err != nil {
		return err
	}
	if c.StorageEnabled && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set when storage is enabled")
	}
	return nil
}

// ServiceConfig returns the client settings for one backend.
func (c *Config) ServiceConfig(name string) (client.Config, error) {
	var base string
	switch name {
	case client.ServiceHub:
		base = c.HubURL
	case client.ServiceAI:
		base = c.AIURL
	case client.ServiceGuardian:
		base = c.GuardianURL
	default:
		return client.Config{}, fmt.Errorf("unknown service %q", name)
	}

	cfg := client.DefaultConfig(base)
	cfg.Service = name
	cfg.Token = c.Token
	cfg.Timeout = c.Timeout
	cfg.MaxRetries = c.MaxRetries
	cfg.RateLimit = c.RateLimit
	return cfg, nil
}

// MaskedToken returns a representation of the token that is safe to print.
func (c *Config) MaskedToken() string {
	switch {
	case c.Token == "":
		return "(not set)"
	case len(c.Token) <= 8:
		return "****"
	default:
		return c.Token[:4] + "****" + c.Token[len(c.Token)-4:]
	}
}
