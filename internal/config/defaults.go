package config

// Default values for configuration options. These represent the "layer 0"
// of the four-layer override chain.
const (
	defaultBaseURL        = "http://localhost:8080"
	defaultTimeout        = "30s"
	defaultStore          = StoreFile
	defaultRefreshTimeout = "15s"
	defaultLogLevel       = "warn"
	defaultLogFormat      = "auto"
)

// DefaultConfig returns a Config populated with all default values.
// This is used both as the starting point for TOML decoding (so unset
// fields retain defaults) and as the fallback when no config file exists.
// Empty token_path and db_path resolve to files under DefaultDataDir.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL: defaultBaseURL,
			Timeout: defaultTimeout,
		},
		Session: SessionConfig{
			Store:          defaultStore,
			RefreshTimeout: defaultRefreshTimeout,
		},
		Logging: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
	}
}
