package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadEnvOverrides_AllSet(t *testing.T) {
	t.Setenv(EnvConfig, "/custom/config.toml")
	t.Setenv(EnvBaseURL, "https://pay.example.com")
	t.Setenv(EnvTokenPath, "/custom/token.json")

	overrides := ReadEnvOverrides()
	assert.Equal(t, "/custom/config.toml", overrides.ConfigPath)
	assert.Equal(t, "https://pay.example.com", overrides.BaseURL)
	assert.Equal(t, "/custom/token.json", overrides.TokenPath)
}

func TestReadEnvOverrides_NoneSet(t *testing.T) {
	t.Setenv(EnvConfig, "")
	t.Setenv(EnvBaseURL, "")
	t.Setenv(EnvTokenPath, "")

	assert.Equal(t, EnvOverrides{}, ReadEnvOverrides())
}

func TestEnvVarConstants(t *testing.T) {
	assert.Equal(t, "MPAYCTL_CONFIG", EnvConfig)
	assert.Equal(t, "MPAYCTL_BASE_URL", EnvBaseURL)
	assert.Equal(t, "MPAYCTL_TOKEN_PATH", EnvTokenPath)
}
