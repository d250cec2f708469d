package client

import (
	"time"

	"github.com/agent-matrix/matrix-system/pkg/validation"
)

// Default client settings
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultBackoffBase = 500 * time.Millisecond
	DefaultBackoffMax  = 10 * time.Second
	DefaultUserAgent   = "matrix-system/1.0.0"
)

// Config holds the settings of a client bound to one base URL
type Config struct {
	// Service names the remote service in logs, errors and metrics
	Service string `json:"service"`
	BaseURL string `json:"base_url" validate:"required,url"`
	// Token is sent as a bearer credential when set
	Token string `json:"-"`

	// Timeout bounds a single HTTP attempt
	Timeout time.Duration `json:"timeout" validate:"gt=0"`
	// MaxRetries is the total number of attempts per call; 0 behaves as 1
	MaxRetries  int           `json:"max_retries" validate:"gte=0"`
	BackoffBase time.Duration `json:"backoff_base" validate:"gte=0"`
	BackoffMax  time.Duration `json:"backoff_max" validate:"gte=0"`

	// RateLimit caps requests per second, 0 disables limiting
	RateLimit float64 `json:"rate_limit" validate:"gte=0"`
	UserAgent string  `json:"user_agent"`
}

// DefaultConfig returns a config for baseURL with default settings.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:     baseURL,
		Timeout:     DefaultTimeout,
		MaxRetries:  DefaultMaxRetries,
		BackoffBase: DefaultBackoffBase,
		BackoffMax:  DefaultBackoffMax,
		UserAgent:   DefaultUserAgent,
	}
}

// Validate checks the config before a client is built from it.
func (c Config) Validate() error {
	return validation.Struct("client config", c)
}

func (c Config) attempts() int {
	if c.MaxRetries < 1 {
		return 1
	}
	return c.MaxRetries
}
