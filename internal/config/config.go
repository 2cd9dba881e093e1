// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for mpayctl. It supports a four-layer
// override chain (defaults -> config file -> environment -> CLI flags).
package config

import "time"

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Server  ServerConfig  `toml:"server" json:"server"`
	Session SessionConfig `toml:"session" json:"session"`
	Logging LoggingConfig `toml:"logging" json:"logging"`
}

// ServerConfig locates the mpay backend and shapes the HTTP client.
type ServerConfig struct {
	BaseURL   string `toml:"base_url" json:"base_url"`
	Timeout   string `toml:"timeout" json:"timeout"`
	UserAgent string `toml:"user_agent" json:"user_agent"`
}

// SessionConfig controls where the credential is persisted and how the
// token refresh behaves.
type SessionConfig struct {
	Store          string `toml:"store" json:"store"`
	TokenPath      string `toml:"token_path" json:"token_path"`
	DBPath         string `toml:"db_path" json:"db_path"`
	Watch          bool   `toml:"watch" json:"watch"`
	RefreshTimeout string `toml:"refresh_timeout" json:"refresh_timeout"`
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level" json:"log_level"`
	LogFormat string `toml:"log_format" json:"log_format"`
}

// Credential store backends.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Pointer fields distinguish "not specified" (nil)
// from "explicitly set".
type CLIOverrides struct {
	ConfigPath string  // --config flag (empty = use default)
	BaseURL    *string // --base-url flag
	TokenPath  *string // --token-path flag
	Store      *string // --store flag
}

// Resolved is the effective configuration after the override chain, with
// durations parsed and paths expanded.
type Resolved struct {
	Config

	// Path is the config file that was consulted. It may not exist.
	Path string

	Timeout        time.Duration
	RefreshTimeout time.Duration
}
