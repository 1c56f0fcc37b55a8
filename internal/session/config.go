package session

import (
	"time"

	"github.com/RyanBlaney/stream-session/internal/monitor"
)

// Config holds session manager tunables
type Config struct {
	// MaxRetries bounds consecutive recovery attempts before the session
	// gives up and stops
	MaxRetries int `json:"max_retries"`

	// MinBackoff and MaxBackoff bound the delay between recovery attempts.
	// Delays grow monotonically from MinBackoff toward MaxBackoff.
	MinBackoff time.Duration `json:"min_backoff"`
	MaxBackoff time.Duration `json:"max_backoff"`

	// HealthCheckInterval is how often the worker evaluates stream health
	// independently of the blocking read
	HealthCheckInterval time.Duration `json:"health_check_interval"`

	// ReadBufferSize is the audio read chunk size in bytes
	ReadBufferSize int `json:"read_buffer_size"`

	// EventBufferSize is the per-session event queue depth
	EventBufferSize int `json:"event_buffer_size"`

	Health *monitor.Config `json:"health"`
}

// DefaultConfig returns session defaults
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:          3,
		MinBackoff:          5 * time.Second,
		MaxBackoff:          20 * time.Second,
		HealthCheckInterval: 1 * time.Second,
		ReadBufferSize:      8192,
		EventBufferSize:     16,
		Health:              monitor.DefaultConfig(),
	}
}
