package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal and come with "did you mean?"
// suggestions.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve loads configuration and applies the four-layer override chain:
// defaults -> config file -> environment variables -> CLI flags.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Resolved, error) {
	// 1. Resolve config path: CLI > env > default
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	// 2. Load config file (returns defaults if no file exists)
	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	// 3. Apply env overrides
	if env.BaseURL != "" {
		cfg.Server.BaseURL = env.BaseURL
	}

	if env.TokenPath != "" {
		cfg.Session.TokenPath = env.TokenPath
	}

	// 4. Apply CLI overrides (pointer fields: nil = not specified)
	if cli.BaseURL != nil {
		cfg.Server.BaseURL = *cli.BaseURL
	}

	if cli.TokenPath != nil {
		cfg.Session.TokenPath = *cli.TokenPath
	}

	if cli.Store != nil {
		cfg.Session.Store = *cli.Store
	}

	// 5. Fill derived paths
	cfg.Server.BaseURL = strings.TrimRight(cfg.Server.BaseURL, "/")

	if cfg.Session.TokenPath == "" {
		cfg.Session.TokenPath = DefaultTokenPath()
	}

	if cfg.Session.DBPath == "" {
		cfg.Session.DBPath = DefaultDBPath()
	}

	cfg.Session.TokenPath = expandTilde(cfg.Session.TokenPath)
	cfg.Session.DBPath = expandTilde(cfg.Session.DBPath)

	// 6. Validate the final result; env and flags bypassed Load's checks.
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	if err := ValidateResolved(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	r := &Resolved{Config: *cfg, Path: cfgPath}

	// Both parse cleanly: Validate checked them.
	r.Timeout, _ = time.ParseDuration(cfg.Server.Timeout)
	r.RefreshTimeout, _ = time.ParseDuration(cfg.Session.RefreshTimeout)

	return r, nil
}
