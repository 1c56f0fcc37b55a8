package icecast

import (
	"maps"
	"time"
)

// Config holds configuration for ICY stream negotiation and demuxing
type Config struct {
	HTTP  *HTTPConfig  `mapstructure:"http"`
	Audio *AudioConfig `mapstructure:"audio"`
}

// HTTPConfig holds HTTP-related configuration for the negotiator
type HTTPConfig struct {
	UserAgent         string            `mapstructure:"user_agent"`
	AcceptHeader      string            `mapstructure:"accept_header"`
	ConnectionTimeout time.Duration     `mapstructure:"connection_timeout"`
	ResponseTimeout   time.Duration     `mapstructure:"response_timeout"`
	CustomHeaders     map[string]string `mapstructure:"custom_headers"`
	RequestICYMeta    bool              `mapstructure:"request_icy_meta"`
}

// GetHTTPHeaders returns configured HTTP headers for stream requests
func (httpConfig *HTTPConfig) GetHTTPHeaders() map[string]string {
	headers := make(map[string]string)

	headers["User-Agent"] = httpConfig.UserAgent
	headers["Accept"] = httpConfig.AcceptHeader

	if httpConfig.RequestICYMeta {
		headers["Icy-MetaData"] = "1"
	}

	maps.Copy(headers, httpConfig.CustomHeaders)

	return headers
}

// AudioConfig holds read-path configuration
type AudioConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

// DefaultConfig returns the default negotiation configuration
func DefaultConfig() *Config {
	return &Config{
		HTTP: &HTTPConfig{
			UserAgent:         "StreamSession/1.0",
			AcceptHeader:      "*/*",
			ConnectionTimeout: 10 * time.Second,
			ResponseTimeout:   10 * time.Second,
			CustomHeaders:     map[string]string{},
			RequestICYMeta:    true,
		},
		Audio: &AudioConfig{
			BufferSize: 8192,
		},
	}
}
