package configs

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	// Application settings
	Verbose      bool   `mapstructure:"verbose"`
	LogLevel     string `mapstructure:"log_level"`
	OutputFormat string `mapstructure:"output_format"`
	ConfigDir    string `mapstructure:"config_dir"`

	// Playlist resolution configuration
	Resolver ResolverConfig `mapstructure:"resolver"`

	// Stream negotiation configuration
	Stream StreamConfig `mapstructure:"stream"`

	// Health monitoring thresholds
	Health HealthConfig `mapstructure:"health"`

	// Session lifecycle and retry configuration
	Session SessionConfig `mapstructure:"session"`

	// Metrics exposition configuration
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ResolverConfig contains playlist resolution settings
type ResolverConfig struct {
	UserAgent    string        `mapstructure:"user_agent"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

// StreamConfig contains stream negotiation settings
type StreamConfig struct {
	ConnectionTimeout time.Duration     `mapstructure:"connection_timeout"`
	ResponseTimeout   time.Duration     `mapstructure:"response_timeout"`
	BufferSize        int               `mapstructure:"buffer_size"`
	UserAgent         string            `mapstructure:"user_agent"`
	RequestICYMeta    bool              `mapstructure:"request_icy_meta"`
	Headers           map[string]string `mapstructure:"headers"`
}

// HealthConfig contains stream health thresholds
type HealthConfig struct {
	DegradedAfter time.Duration `mapstructure:"degraded_after"`
	StalledAfter  time.Duration `mapstructure:"stalled_after"`
	HealthyReset  time.Duration `mapstructure:"healthy_reset"`
	CheckInterval time.Duration `mapstructure:"check_interval"`
}

// SessionConfig contains session lifecycle and retry settings
type SessionConfig struct {
	MaxRetries      int           `mapstructure:"max_retries"`
	MinBackoff      time.Duration `mapstructure:"min_backoff"`
	MaxBackoff      time.Duration `mapstructure:"max_backoff"`
	ReadBufferSize  int           `mapstructure:"read_buffer_size"`
	EventBufferSize int           `mapstructure:"event_buffer_size"`
}

// MetricsConfig contains metrics exposition settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// LoadConfig loads configuration from viper
func LoadConfig() (*Config, error) {
	config := &Config{}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}

	return config, nil
}

// ValidateConfig validates the configuration
func ValidateConfig(config *Config) error {
	if config.Resolver.FetchTimeout <= 0 {
		return fmt.Errorf("resolver fetch timeout must be positive")
	}

	if config.Stream.ConnectionTimeout <= 0 {
		return fmt.Errorf("stream connection timeout must be positive")
	}

	if config.Session.MaxRetries < 0 {
		return fmt.Errorf("session max retries cannot be negative")
	}

	if config.Session.MinBackoff <= 0 || config.Session.MaxBackoff < config.Session.MinBackoff {
		return fmt.Errorf("session backoff window must be positive and non-decreasing")
	}

	if config.Health.StalledAfter <= config.Health.DegradedAfter {
		return fmt.Errorf("stalled threshold must exceed degraded threshold")
	}

	return nil
}
