package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nonfou/mpayctl/internal/session"
)

var errNotLoggedIn = errors.New("not logged in, run 'mpayctl login' first")

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with username and password",
		Long: `Sign in to the backend and save the session tokens.

The password is read from the terminal without echo. When stdin is not a
terminal the username (if not given with --username) and the password are
read from successive input lines.`,
		RunE: runLogin,
	}

	cmd.Flags().StringP("username", "u", "", "account username")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and remove saved tokens",
		RunE:  runLogout,
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Display the signed-in user",
		RunE:  runWhoami,
	}
}

func runLogin(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx, stop := shutdownContext(cmd.Context(), cc.Logger)
	defer stop()

	p := newPrompter(cmd.InOrStdin(), cc.Err)

	username, err := cmd.Flags().GetString("username")
	if err != nil {
		return err
	}

	if username == "" {
		if username, err = p.line("Username: "); err != nil {
			return fmt.Errorf("reading username: %w", err)
		}
	}

	password, err := p.password()
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}

	cs, err := NewConsoleSession(ctx, cc)
	if err != nil {
		return err
	}
	defer cs.Close()

	cc.Logger.Info("login started", slog.String("base_url", cc.Cfg.Server.BaseURL))

	profile, err := cs.Ctrl.Login(ctx, username, password)
	if err != nil {
		return err
	}

	cc.Logger.Info("login successful", slog.String("username", profile.Username))
	cc.Statusf("Logged in as %s (%s).\n", profile.Username, roleLabel(profile))

	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	cs, err := NewConsoleSession(ctx, cc)
	if err != nil {
		return err
	}
	defer cs.Close()

	if !cs.Ctrl.Store().IsAuthenticated() {
		cc.Statusf("Not logged in.\n")
		return nil
	}

	cs.Ctrl.Logout(ctx)

	cc.Logger.Info("logout successful")
	cc.Statusf("Logged out.\n")

	return nil
}

// whoamiOutput is the JSON schema for `whoami --json`.
type whoamiOutput struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Role     int    `json:"role"`
	RoleName string `json:"role_name,omitempty"`
	Admin    bool   `json:"admin"`
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx, stop := shutdownContext(cmd.Context(), cc.Logger)
	defer stop()

	cs, err := NewConsoleSession(ctx, cc)
	if err != nil {
		return err
	}
	defer cs.Close()

	if !cs.Ctrl.Store().IsAuthenticated() {
		return errNotLoggedIn
	}

	profile, err := cs.Ctrl.FetchCurrentUser(ctx)
	if err != nil {
		if errors.Is(err, session.ErrSessionInvalid) {
			return fmt.Errorf("session is no longer valid, run 'mpayctl login' again: %w", err)
		}

		return fmt.Errorf("fetching user profile: %w", err)
	}

	if cc.Flags.JSON {
		return printWhoamiJSON(cc.Out, profile)
	}

	printWhoamiText(cc.Out, profile)

	return nil
}

func printWhoamiJSON(w io.Writer, u session.UserProfile) error {
	return printJSON(w, whoamiOutput{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
		RoleName: u.RoleName,
		Admin:    u.IsAdmin(),
	})
}

func printWhoamiText(w io.Writer, u session.UserProfile) {
	fmt.Fprintf(w, "User:  %s (id %d)\n", u.Username, u.ID)

	if u.Email != "" {
		fmt.Fprintf(w, "Email: %s\n", u.Email)
	}

	fmt.Fprintf(w, "Role:  %s\n", roleLabel(u))
}

// roleLabel prefers the backend's role name and falls back to the number.
func roleLabel(u session.UserProfile) string {
	if u.RoleName != "" {
		return u.RoleName
	}

	return fmt.Sprintf("role %d", u.Role)
}
