package configs

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/RyanBlaney/stream-session/internal/monitor"
	"github.com/RyanBlaney/stream-session/internal/session"
	"github.com/RyanBlaney/stream-session/pkg/stream/icecast"
	"github.com/RyanBlaney/stream-session/pkg/stream/playlist"
)

// setDefaults sets default configuration values for all components
func setDefaults(v *viper.Viper) {
	// Resolver defaults
	if !v.IsSet("resolver.user_agent") {
		v.Set("resolver.user_agent", "StreamSession/1.0")
	}
	if !v.IsSet("resolver.fetch_timeout") {
		v.Set("resolver.fetch_timeout", 10*time.Second)
	}
	if !v.IsSet("resolver.probe_timeout") {
		v.Set("resolver.probe_timeout", 5*time.Second)
	}

	// Stream negotiation defaults
	if !v.IsSet("stream.connection_timeout") {
		v.Set("stream.connection_timeout", 10*time.Second)
	}
	if !v.IsSet("stream.response_timeout") {
		v.Set("stream.response_timeout", 10*time.Second)
	}
	if !v.IsSet("stream.buffer_size") {
		v.Set("stream.buffer_size", 8192)
	}
	if !v.IsSet("stream.user_agent") {
		v.Set("stream.user_agent", "StreamSession/1.0")
	}
	if !v.IsSet("stream.request_icy_meta") {
		v.Set("stream.request_icy_meta", true)
	}
	if !v.IsSet("stream.headers") {
		v.Set("stream.headers", map[string]string{})
	}

	// Health monitoring defaults
	if !v.IsSet("health.degraded_after") {
		v.Set("health.degraded_after", 5*time.Second)
	}
	if !v.IsSet("health.stalled_after") {
		v.Set("health.stalled_after", 20*time.Second)
	}
	if !v.IsSet("health.healthy_reset") {
		v.Set("health.healthy_reset", 30*time.Second)
	}
	if !v.IsSet("health.check_interval") {
		v.Set("health.check_interval", 1*time.Second)
	}

	// Session lifecycle defaults
	if !v.IsSet("session.max_retries") {
		v.Set("session.max_retries", 3)
	}
	if !v.IsSet("session.min_backoff") {
		v.Set("session.min_backoff", 5*time.Second)
	}
	if !v.IsSet("session.max_backoff") {
		v.Set("session.max_backoff", 20*time.Second)
	}
	if !v.IsSet("session.read_buffer_size") {
		v.Set("session.read_buffer_size", 8192)
	}
	if !v.IsSet("session.event_buffer_size") {
		v.Set("session.event_buffer_size", 16)
	}

	// Metrics defaults
	if !v.IsSet("metrics.enabled") {
		v.Set("metrics.enabled", false)
	}
	if !v.IsSet("metrics.listen") {
		v.Set("metrics.listen", "127.0.0.1:9090")
	}

	// Application defaults
	if !v.IsSet("verbose") {
		v.Set("verbose", false)
	}
	if !v.IsSet("log_level") {
		v.Set("log_level", "info")
	}
	if !v.IsSet("output_format") {
		v.Set("output_format", "table")
	}
}

// GetDefaultConfig returns a Config struct with all default values set
func GetDefaultConfig() *Config {
	home, _ := os.UserHomeDir()

	return &Config{
		Verbose:      false,
		LogLevel:     "info",
		OutputFormat: "table",
		ConfigDir:    filepath.Join(home, ".config", "stream-session"),

		Resolver: GetDefaultResolverConfig(),
		Stream:   GetDefaultStreamConfig(),
		Health:   GetDefaultHealthConfig(),
		Session:  GetDefaultSessionConfig(),
		Metrics:  GetDefaultMetricsConfig(),
	}
}

// GetDefaultResolverConfig returns default playlist resolution settings
func GetDefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		UserAgent:    "StreamSession/1.0",
		FetchTimeout: 10 * time.Second,
		ProbeTimeout: 5 * time.Second,
	}
}

// GetDefaultStreamConfig returns default stream negotiation settings
func GetDefaultStreamConfig() StreamConfig {
	return StreamConfig{
		ConnectionTimeout: 10 * time.Second,
		ResponseTimeout:   10 * time.Second,
		BufferSize:        8192,
		UserAgent:         "StreamSession/1.0",
		RequestICYMeta:    true,
		Headers:           make(map[string]string),
	}
}

// GetDefaultHealthConfig returns default health monitoring thresholds
func GetDefaultHealthConfig() HealthConfig {
	return HealthConfig{
		DegradedAfter: 5 * time.Second,
		StalledAfter:  20 * time.Second,
		HealthyReset:  30 * time.Second,
		CheckInterval: 1 * time.Second,
	}
}

// GetDefaultSessionConfig returns default session lifecycle settings
func GetDefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MaxRetries:      3,
		MinBackoff:      5 * time.Second,
		MaxBackoff:      20 * time.Second,
		ReadBufferSize:  8192,
		EventBufferSize: 16,
	}
}

// GetDefaultMetricsConfig returns default metrics exposition settings
func GetDefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled: false,
		Listen:  "127.0.0.1:9090",
	}
}

// ToResolverConfig converts the application config into the resolver's
// component configuration
func (c *Config) ToResolverConfig() *playlist.ResolverConfig {
	return &playlist.ResolverConfig{
		UserAgent:    c.Resolver.UserAgent,
		FetchTimeout: c.Resolver.FetchTimeout,
		ProbeTimeout: c.Resolver.ProbeTimeout,
	}
}

// ToIcecastConfig converts the application config into the negotiator's
// component configuration
func (c *Config) ToIcecastConfig() *icecast.Config {
	base := icecast.DefaultConfig()
	base.HTTP.UserAgent = c.Stream.UserAgent
	base.HTTP.ConnectionTimeout = c.Stream.ConnectionTimeout
	base.HTTP.ResponseTimeout = c.Stream.ResponseTimeout
	base.HTTP.RequestICYMeta = c.Stream.RequestICYMeta
	base.HTTP.CustomHeaders = c.Stream.Headers
	base.Audio.BufferSize = c.Stream.BufferSize
	return base
}

// ToSessionConfig converts the application config into the session manager's
// component configuration
func (c *Config) ToSessionConfig() *session.Config {
	return &session.Config{
		MaxRetries:          c.Session.MaxRetries,
		MinBackoff:          c.Session.MinBackoff,
		MaxBackoff:          c.Session.MaxBackoff,
		HealthCheckInterval: c.Health.CheckInterval,
		ReadBufferSize:      c.Session.ReadBufferSize,
		EventBufferSize:     c.Session.EventBufferSize,
		Health: &monitor.Config{
			DegradedAfter: c.Health.DegradedAfter,
			StalledAfter:  c.Health.StalledAfter,
			HealthyReset:  c.Health.HealthyReset,
		},
	}
}
