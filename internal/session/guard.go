package session

import "fmt"

// RouteMeta is the access requirement a page or command declares.
type RouteMeta struct {
	RequiresAuth  bool
	RequiresAdmin bool
}

// Authorize checks meta against the current session. It returns
// ErrSessionInvalid (wrapping ErrNotLoggedIn) when a credential is needed
// but absent, ErrSessionInvalid when an admin check is needed but no
// profile is loaded, and ErrPermissionDenied when the user is not an
// administrator.
func (c *Controller) Authorize(meta RouteMeta) error {
	if !meta.RequiresAuth && !meta.RequiresAdmin {
		return nil
	}

	if !c.store.IsAuthenticated() {
		return fmt.Errorf("%w: %w", ErrSessionInvalid, ErrNotLoggedIn)
	}

	if !meta.RequiresAdmin {
		return nil
	}

	profile, ok := c.Profile()
	if !ok {
		return fmt.Errorf("%w: profile not loaded", ErrSessionInvalid)
	}

	if !profile.IsAdmin() {
		return fmt.Errorf("%w: %s is not an administrator", ErrPermissionDenied, profile.Username)
	}

	return nil
}
