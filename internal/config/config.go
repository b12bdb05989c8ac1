package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr" validate:"required"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout" validate:"gte=0"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gte=0"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// DatabasePath is the SQLite file holding registered users.
	DatabasePath string `mapstructure:"database_path" yaml:"database_path" validate:"required"`
	// MessagesPath is the JSON file the message log is rewritten into.
	MessagesPath string `mapstructure:"messages_path" yaml:"messages_path" validate:"required"`

	AdminUsername    string `mapstructure:"admin_username" yaml:"admin_username" validate:"required"`
	HistoryWindow    int    `mapstructure:"history_window" yaml:"history_window" validate:"gt=0"`
	MaxMessageLength int    `mapstructure:"max_message_length" yaml:"max_message_length" validate:"gte=0"`
	SearchLimit      int    `mapstructure:"search_limit" yaml:"search_limit" validate:"gt=0"`

	// ClientBuffer is the per-connection outbound queue; a connection that
	// lets it fill up is disconnected.
	ClientBuffer int `mapstructure:"client_buffer" yaml:"client_buffer" validate:"gte=2"`
	// RateLimitPerMinute caps inbound frames per connection, 0 disables.
	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute" validate:"gte=0"`

	// SessionSecret signs session tokens. Empty means a random secret per process.
	SessionSecret string        `mapstructure:"session_secret" yaml:"session_secret"`
	SessionTTL    time.Duration `mapstructure:"session_ttl" yaml:"session_ttl" validate:"gte=0"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:               ":3000",
		ReadHeaderTimeout:  5 * time.Second,
		ShutdownTimeout:    5 * time.Second,
		LogLevel:           "info",
		DatabasePath:       "users.db",
		MessagesPath:       "messages.json",
		AdminUsername:      "admin",
		HistoryWindow:      5,
		MaxMessageLength:   2000,
		SearchLimit:        50,
		ClientBuffer:       64,
		RateLimitPerMinute: 120,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.MessagesPath != "" {
		c.MessagesPath = other.MessagesPath
	}
	if other.AdminUsername != "" {
		c.AdminUsername = other.AdminUsername
	}
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
