package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig    = "MPAYCTL_CONFIG"
	EnvBaseURL   = "MPAYCTL_BASE_URL"
	EnvTokenPath = "MPAYCTL_TOKEN_PATH"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // MPAYCTL_CONFIG: override config file path
	BaseURL    string // MPAYCTL_BASE_URL: backend base URL
	TokenPath  string // MPAYCTL_TOKEN_PATH: token file location
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; Resolve applies the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		BaseURL:    os.Getenv(EnvBaseURL),
		TokenPath:  os.Getenv(EnvTokenPath),
	}
}
