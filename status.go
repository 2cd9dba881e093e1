package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nonfou/mpayctl/internal/config"
	"github.com/nonfou/mpayctl/internal/credstore"
	"github.com/nonfou/mpayctl/internal/session"
)

// Token state constants for status reporting.
const (
	tokenStateMissing = "missing"
	tokenStateExpired = "expired"
	tokenStateValid   = "valid"
	tokenStateUnknown = "unknown expiry"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the saved session without contacting the backend",
		Long: `Display the backend, credential store, and saved token state.

Reads only local state. Use 'mpayctl whoami' to check the session against
the backend.`,
		RunE: runStatus,
	}
}

// statusOutput is the JSON schema for `status --json`.
type statusOutput struct {
	BaseURL      string     `json:"base_url"`
	Store        string     `json:"store"`
	StorePath    string     `json:"store_path,omitempty"`
	TokenState   string     `json:"token_state"`
	Subject      string     `json:"subject,omitempty"`
	Expiry       *time.Time `json:"expiry,omitempty"`
	RefreshToken bool       `json:"refresh_token"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	cs, err := NewConsoleSession(cmd.Context(), cc)
	if err != nil {
		return err
	}
	defer cs.Close()

	out := buildStatus(cc.Cfg, cs.Ctrl.Store().Get(), time.Now())

	if cc.Flags.JSON {
		return printJSON(cc.Out, out)
	}

	printStatusText(cc.Out, out)

	return nil
}

func buildStatus(cfg *config.Resolved, cred credstore.Credential, now time.Time) statusOutput {
	out := statusOutput{
		BaseURL:      cfg.Server.BaseURL,
		Store:        cfg.Session.Store,
		TokenState:   tokenState(cred, now),
		RefreshToken: cred.HasRefreshToken(),
	}

	switch cfg.Session.Store {
	case config.StoreFile:
		out.StorePath = cfg.Session.TokenPath
	case config.StoreSQLite:
		out.StorePath = cfg.Session.DBPath
	}

	if !cred.Authenticated() {
		return out
	}

	if claims, err := session.ParseAccessToken(cred.AccessToken); err == nil {
		out.Subject = claims.Subject
	}

	if !cred.Expiry.IsZero() {
		exp := cred.Expiry
		out.Expiry = &exp
	}

	return out
}

func tokenState(cred credstore.Credential, now time.Time) string {
	switch {
	case !cred.Authenticated():
		return tokenStateMissing
	case cred.Expiry.IsZero():
		return tokenStateUnknown
	case cred.Expired(now):
		return tokenStateExpired
	default:
		return tokenStateValid
	}
}

func printStatusText(w io.Writer, s statusOutput) {
	fmt.Fprintf(w, "Backend: %s\n", s.BaseURL)

	if s.StorePath != "" {
		fmt.Fprintf(w, "Store:   %s (%s)\n", s.Store, s.StorePath)
	} else {
		fmt.Fprintf(w, "Store:   %s\n", s.Store)
	}

	fmt.Fprintf(w, "Token:   %s\n", s.TokenState)

	if s.TokenState == tokenStateMissing {
		fmt.Fprintln(w, "Run 'mpayctl login' to sign in.")
		return
	}

	if s.Subject != "" {
		fmt.Fprintf(w, "Subject: %s\n", s.Subject)
	}

	if s.Expiry != nil {
		fmt.Fprintf(w, "Expires: %s\n", formatTime(s.Expiry.Local()))
	}

	if s.RefreshToken {
		fmt.Fprintln(w, "Refresh: available")
	} else {
		fmt.Fprintln(w, "Refresh: none")
	}
}
