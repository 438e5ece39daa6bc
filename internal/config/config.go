// Package config provides configuration types and loading for diagctl.
package config

import "time"

// Config is the root configuration struct.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Transport TransportConfig `json:"transport"`
	Console   ConsoleConfig   `json:"console"`
	Archive   ArchiveConfig   `json:"archive"`
}

// ServerConfig locates the backend.
type ServerConfig struct {
	// BaseURL is the REST root, e.g. http://localhost:8000/api/v1.
	BaseURL string `json:"baseUrl" envconfig:"BASE_URL"`
	// EventStreamURL is the websocket endpoint for the live event stream.
	EventStreamURL string `json:"eventStreamUrl" envconfig:"EVENT_STREAM_URL"`
}

// TransportConfig tunes the reconnecting event channel.
type TransportConfig struct {
	// ReconnectDelayMS is the linear backoff base: attempt n waits
	// n * ReconnectDelayMS milliseconds.
	ReconnectDelayMS     int `json:"reconnectDelayMs" envconfig:"RECONNECT_DELAY_MS"`
	MaxReconnectAttempts int `json:"maxReconnectAttempts" envconfig:"MAX_RECONNECT_ATTEMPTS"`
}

// ReconnectDelay returns the backoff base as a duration.
func (t TransportConfig) ReconnectDelay() time.Duration {
	return time.Duration(t.ReconnectDelayMS) * time.Millisecond
}

// ConsoleConfig tunes the interactive console.
type ConsoleConfig struct {
	DefaultAgentType string `json:"defaultAgentType" envconfig:"DEFAULT_AGENT_TYPE"`
	// RefreshMS drives the elapsed-time redraw cadence.
	RefreshMS int `json:"refreshMs" envconfig:"REFRESH_MS"`
}

// ArchiveConfig controls the optional local case archive.
type ArchiveConfig struct {
	Enabled bool `json:"enabled" envconfig:"ENABLED"`
	// Path of the sqlite file; empty means <config dir>/cases.db.
	Path string `json:"path" envconfig:"PATH"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL:        "http://localhost:8000/api/v1",
			EventStreamURL: "ws://localhost:8000/api/v1/agent/ws",
		},
		Transport: TransportConfig{
			ReconnectDelayMS:     3000,
			MaxReconnectAttempts: 5,
		},
		Console: ConsoleConfig{
			DefaultAgentType: "diagnosis",
			RefreshMS:        1000,
		},
		Archive: ArchiveConfig{},
	}
}
