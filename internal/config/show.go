package config

import (
	"fmt"
	"io"
)

// RenderEffective writes the resolved configuration as a human-readable
// annotated summary to w. This powers the "config show" command.
func RenderEffective(r *Resolved, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration (file: %s)\n\n", r.Path)

	ew.printf("[server]\n")
	ew.printf("  base_url        = %q\n", r.Server.BaseURL)
	ew.printf("  timeout         = %q\n", r.Server.Timeout)

	if r.Server.UserAgent != "" {
		ew.printf("  user_agent      = %q\n", r.Server.UserAgent)
	}

	ew.printf("\n[session]\n")
	ew.printf("  store           = %q\n", r.Session.Store)

	switch r.Session.Store {
	case StoreFile:
		ew.printf("  token_path      = %q\n", r.Session.TokenPath)
		ew.printf("  watch           = %t\n", r.Session.Watch)
	case StoreSQLite:
		ew.printf("  db_path         = %q\n", r.Session.DBPath)
	}

	ew.printf("  refresh_timeout = %q\n", r.Session.RefreshTimeout)

	ew.printf("\n[logging]\n")
	ew.printf("  log_level       = %q\n", r.Logging.LogLevel)
	ew.printf("  log_format      = %q\n", r.Logging.LogFormat)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops, so callers can chain
// printf calls without checking each one individually.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
