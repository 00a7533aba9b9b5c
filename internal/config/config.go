package config

import "time"

// Store drivers.
const (
	StoreDriverSQLite = "sqlite"
	StoreDriverBadger = "badger"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	StoreDriver  string        `mapstructure:"store_driver" yaml:"store_driver"`
	DatabasePath string        `mapstructure:"database_path" yaml:"database_path"`
	BadgerDir    string        `mapstructure:"badger_dir" yaml:"badger_dir"`
	StoreTimeout time.Duration `mapstructure:"store_timeout" yaml:"store_timeout"`

	HistoryLimit    int      `mapstructure:"history_limit" yaml:"history_limit"`
	MaxMessageBytes int64    `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	SendQueueSize   int      `mapstructure:"send_queue_size" yaml:"send_queue_size"`
	RateLimit       int      `mapstructure:"rate_limit" yaml:"rate_limit"` // messages per minute per connection, 0 disables
	AllowedOrigins  []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":3001",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		StoreDriver:       StoreDriverSQLite,
		DatabasePath:      "chatrelay.db",
		BadgerDir:         "data/badger",
		StoreTimeout:      5 * time.Second,
		HistoryLimit:      50,
		MaxMessageBytes:   1 << 20,
		SendQueueSize:     64,
		RateLimit:         0,
		AllowedOrigins:    []string{"*"},
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
	if other.StoreDriver != "" {
		c.StoreDriver = other.StoreDriver
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.BadgerDir != "" {
		c.BadgerDir = other.BadgerDir
	}
	if other.StoreTimeout != 0 {
		c.StoreTimeout = other.StoreTimeout
	}
	if other.HistoryLimit != 0 {
		c.HistoryLimit = other.HistoryLimit
	}
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	if other.SendQueueSize != 0 {
		c.SendQueueSize = other.SendQueueSize
	}
	if other.RateLimit != 0 {
		c.RateLimit = other.RateLimit
	}
	if len(other.AllowedOrigins) > 0 {
		c.AllowedOrigins = other.AllowedOrigins
	}
}
