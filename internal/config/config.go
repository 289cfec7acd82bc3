// Thermoshare - Collaborative Appliance Schedule Coordination
// Copyright 2026 Thermoshare Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thermoshare/thermoshare

// Package config loads server configuration with Koanf v2 using layered
// sources: built-in defaults, then an optional YAML file, then environment
// variables (highest priority).
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the thermoshare server.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	WebSocket WebSocketConfig `koanf:"websocket"`
	Security  SecurityConfig  `koanf:"security"`
	Client    ClientConfig    `koanf:"client"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// WebSocketConfig holds fan-out transport settings.
type WebSocketConfig struct {
	// SendBuffer is the per-session outbound queue depth. A session whose
	// queue is full is disconnected rather than allowed to stall others.
	SendBuffer int `koanf:"send_buffer"`

	// BusBuffer is the event bus output channel depth.
	BusBuffer int `koanf:"bus_buffer"`

	HandshakeTimeout time.Duration `koanf:"handshake_timeout"`
	PongWait         time.Duration `koanf:"pong_wait"`
	WriteWait        time.Duration `koanf:"write_wait"`
	MaxMessageBytes  int64         `koanf:"max_message_bytes"`
}

// SecurityConfig holds the request-surface guards. Authentication is out of
// scope; this covers only origin checking and rate limiting.
type SecurityConfig struct {
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// ClientConfig holds defaults for the reconciliation agents shipped in
// internal/client. The server does not read these; they are surfaced here so
// an embedding binary configures agents from the same file.
type ClientConfig struct {
	MaxReconnectAttempts int           `koanf:"max_reconnect_attempts"`
	ReconnectBaseDelay   time.Duration `koanf:"reconnect_base_delay"`
	RequestTimeout       time.Duration `koanf:"request_timeout"`
	PollInterval         time.Duration `koanf:"poll_interval"`
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range 1-65535", c.Server.Port)
	}
	if c.WebSocket.SendBuffer < 1 {
		return fmt.Errorf("websocket.send_buffer must be positive, got %d", c.WebSocket.SendBuffer)
	}
	if c.WebSocket.BusBuffer < 1 {
		return fmt.Errorf("websocket.bus_buffer must be positive, got %d", c.WebSocket.BusBuffer)
	}
	if c.Client.MaxReconnectAttempts < 0 {
		return fmt.Errorf("client.max_reconnect_attempts must not be negative, got %d", c.Client.MaxReconnectAttempts)
	}
	if c.Security.RateLimitReqs < 1 {
		return fmt.Errorf("security.rate_limit_reqs must be positive, got %d", c.Security.RateLimitReqs)
	}
	return nil
}
