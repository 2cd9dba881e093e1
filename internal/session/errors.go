package session

import (
	"errors"

	"github.com/nonfou/mpayctl/internal/api"
)

// Session failure taxonomy. Transport-level classifications are re-exported
// from api so callers only need this package for errors.Is checks.
var (
	ErrNoRefreshToken     = errors.New("session: no refresh token")
	ErrRefreshFailed      = errors.New("session: token refresh failed")
	ErrInvalidCredentials = errors.New("session: invalid username or password")
	ErrSessionInvalid     = errors.New("session: session is no longer valid")
	ErrNotLoggedIn        = errors.New("session: not logged in")

	ErrNetwork          = api.ErrNetwork
	ErrPermissionDenied = api.ErrForbidden
	ErrNotFound         = api.ErrNotFound
)
