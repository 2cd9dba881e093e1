package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"time"
)

// Validation range constants.
const (
	minTimeout        = 1 * time.Second
	maxTimeout        = 10 * time.Minute
	minRefreshTimeout = 1 * time.Second
)

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateSession(&cfg.Session)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	return errors.Join(errs...)
}

// ValidateResolved checks constraints that only make sense after the
// override chain has been applied and paths have been filled in.
func ValidateResolved(cfg *Config) error {
	var errs []error

	switch cfg.Session.Store {
	case StoreFile:
		errs = append(errs, validateAbsPath("session.token_path", cfg.Session.TokenPath)...)
	case StoreSQLite:
		errs = append(errs, validateAbsPath("session.db_path", cfg.Session.DBPath)...)
	}

	if cfg.Session.Watch && cfg.Session.Store != StoreFile {
		errs = append(errs, fmt.Errorf("session.watch: only supported with store = %q, got %q",
			StoreFile, cfg.Session.Store))
	}

	return errors.Join(errs...)
}

func validateAbsPath(field, path string) []error {
	if path == "" {
		return []error{fmt.Errorf("%s: could not determine a default location; set it explicitly", field)}
	}

	if !filepath.IsAbs(path) {
		return []error{fmt.Errorf("%s: must be absolute after expansion, got %q", field, path)}
	}

	return nil
}

func validateServer(s *ServerConfig) []error {
	var errs []error

	errs = append(errs, validateBaseURL(s.BaseURL)...)
	errs = append(errs, validateDurationRange("server.timeout", s.Timeout, minTimeout, maxTimeout)...)

	return errs
}

func validateBaseURL(raw string) []error {
	if raw == "" {
		return []error{errors.New("server.base_url: must not be empty")}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return []error{fmt.Errorf("server.base_url: %w", err)}
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return []error{fmt.Errorf("server.base_url: scheme must be http or https, got %q", raw)}
	}

	if u.Host == "" {
		return []error{fmt.Errorf("server.base_url: missing host in %q", raw)}
	}

	if u.RawQuery != "" || u.Fragment != "" {
		return []error{fmt.Errorf("server.base_url: must not carry a query or fragment, got %q", raw)}
	}

	return nil
}

var validStores = map[string]bool{
	StoreFile:   true,
	StoreSQLite: true,
	StoreMemory: true,
}

func validateSession(s *SessionConfig) []error {
	var errs []error

	if !validStores[s.Store] {
		errs = append(errs, fmt.Errorf("session.store: must be one of file, sqlite, memory; got %q", s.Store))
	}

	errs = append(errs, validateDurationRange("session.refresh_timeout", s.RefreshTimeout, minRefreshTimeout, maxTimeout)...)

	return errs
}

func validateDurationRange(field, value string, minimum, maximum time.Duration) []error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}

	if d < minimum || d > maximum {
		return []error{fmt.Errorf("%s: must be between %s and %s, got %s", field, minimum, maximum, d)}
	}

	return nil
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	errs = append(errs, validateLogLevel(l.LogLevel)...)
	errs = append(errs, validateLogFormat(l.LogFormat)...)

	return errs
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validateLogLevel(level string) []error {
	if !validLogLevels[level] {
		return []error{fmt.Errorf("logging.log_level: must be one of debug, info, warn, error; got %q", level)}
	}

	return nil
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

func validateLogFormat(format string) []error {
	if !validLogFormats[format] {
		return []error{fmt.Errorf("logging.log_format: must be one of auto, text, json; got %q", format)}
	}

	return nil
}
