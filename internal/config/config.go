package config

import (
	"fmt"
	"time"
)

// StoreConfig selects and configures the persistent store.
type StoreConfig struct {
	Driver      string `mapstructure:"driver" yaml:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	PostgresURL string `mapstructure:"postgres_url" yaml:"postgres_url"`
}

// BusConfig configures the cross-instance mirror. An empty RedisAddr disables it.
type BusConfig struct {
	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr"`
	ChannelPrefix string `mapstructure:"channel_prefix" yaml:"channel_prefix"`
}

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	MaxMessageBytes   int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	RateLimit         int           `mapstructure:"rate_limit" yaml:"rate_limit"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	PersistTimeout    time.Duration `mapstructure:"persist_timeout" yaml:"persist_timeout"`
	PersistQueue      int           `mapstructure:"persist_queue" yaml:"persist_queue"`
	ColorMode         string        `mapstructure:"color_mode" yaml:"color_mode"`
	DefaultRoom       string        `mapstructure:"default_room" yaml:"default_room"`
	Store             StoreConfig   `mapstructure:"store" yaml:"store"`
	Bus               BusConfig     `mapstructure:"bus" yaml:"bus"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		MaxMessageBytes:   8 << 20,
		PersistTimeout:    5 * time.Second,
		PersistQueue:      256,
		ColorMode:         "random",
		DefaultRoom:       "Main Room",
		Store: StoreConfig{
			Driver:     DriverSQLite,
			SQLitePath: "coedit.db",
		},
		Bus: BusConfig{
			ChannelPrefix: "coedit:room:",
		},
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
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	if other.RateLimit != 0 {
		c.RateLimit = other.RateLimit
	}
	if other.IdleTimeout != 0 {
		c.IdleTimeout = other.IdleTimeout
	}
	if other.PersistTimeout != 0 {
		c.PersistTimeout = other.PersistTimeout
	}
	if other.PersistQueue != 0 {
		c.PersistQueue = other.PersistQueue
	}
	if other.ColorMode != "" {
		c.ColorMode = other.ColorMode
	}
	if other.DefaultRoom != "" {
		c.DefaultRoom = other.DefaultRoom
	}
	if other.Store.Driver != "" {
		c.Store.Driver = other.Store.Driver
	}
	if other.Store.SQLitePath != "" {
		c.Store.SQLitePath = other.Store.SQLitePath
	}
	if other.Store.PostgresURL != "" {
		c.Store.PostgresURL = other.Store.PostgresURL
	}
	if other.Bus.RedisAddr != "" {
		c.Bus.RedisAddr = other.Bus.RedisAddr
	}
	if other.Bus.ChannelPrefix != "" {
		c.Bus.ChannelPrefix = other.Bus.ChannelPrefix
	}
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for driver %q", c.Store.Driver)
		}
	case DriverPostgres:
		if c.Store.PostgresURL == "" {
			return fmt.Errorf("store.postgres_url is required for driver %q", c.Store.Driver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	switch c.ColorMode {
	case "random", "stable":
	default:
		return fmt.Errorf("unknown color_mode %q", c.ColorMode)
	}
	if c.MaxMessageBytes <= 0 {
		return fmt.Errorf("max_message_bytes must be positive")
	}
	return nil
}
