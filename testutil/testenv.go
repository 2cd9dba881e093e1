// Package testutil provides shared environment helpers for the end-to-end
// tests, which drive the built binary rather than the packages.
package testutil

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// LoadDotEnv reads KEY=VALUE pairs from a .env file at the given path.
// Missing file is not an error (CI sets env vars directly).
// Existing env vars take precedence over .env values.
func LoadDotEnv(envPath string) {
	f, err := os.Open(envPath)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), "\"'")

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

// FindModuleRoot walks up from the current directory to find go.mod.
// Returns the fallback if the root is not found.
func FindModuleRoot(fallback string) string {
	dir, err := os.Getwd()
	if err != nil {
		return fallback
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return fallback
		}

		dir = parent
	}
}

// IsolatedEnv returns a copy of the process environment with HOME and the
// XDG directories pointed under root and every MPAYCTL_ variable removed,
// so a spawned binary never touches the real user's config or tokens.
func IsolatedEnv(root string) []string {
	env := make([]string, 0, len(os.Environ())+4)

	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")

		switch {
		case strings.HasPrefix(key, "MPAYCTL_"):
			continue
		case key == "HOME", key == "XDG_CONFIG_HOME", key == "XDG_DATA_HOME", key == "XDG_CACHE_HOME":
			continue
		}

		env = append(env, kv)
	}

	return append(env,
		"HOME="+root,
		"XDG_CONFIG_HOME="+filepath.Join(root, ".config"),
		"XDG_DATA_HOME="+filepath.Join(root, ".local", "share"),
		"XDG_CACHE_HOME="+filepath.Join(root, ".cache"),
	)
}
