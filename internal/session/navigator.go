package session

import (
	"context"
	"log/slog"
)

// Navigator receives the "go to login" side effect when the session ends
// irrecoverably. intended is the path the failed request was for, so the
// front end can return there after logging in again.
type Navigator interface {
	RedirectToLogin(ctx context.Context, intended string)
}

// Diagnostics receives permission-denied signals. They never change
// session state.
type Diagnostics interface {
	PermissionDenied(ctx context.Context, method, path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, intended string)

// RedirectToLogin implements Navigator.
func (f NavigatorFunc) RedirectToLogin(ctx context.Context, intended string) {
	f(ctx, intended)
}

type nopNavigator struct{}

func (nopNavigator) RedirectToLogin(context.Context, string) {}

// logDiagnostics is the default Diagnostics: a warning in the log.
type logDiagnostics struct {
	logger *slog.Logger
}

func (d logDiagnostics) PermissionDenied(ctx context.Context, method, path string) {
	d.logger.WarnContext(ctx, "permission denied",
		slog.String("method", method),
		slog.String("path", path),
	)
}
