// Package session implements the authenticated request pipeline of the
// console: the token refresher, the request pipeline that drives
// refresh-then-replay on 401, and the controller that owns login, logout
// and the current user profile.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/nonfou/mpayctl/internal/api"
	"github.com/nonfou/mpayctl/internal/credstore"
)

// State is the controller's session state.
type State int

const (
	LoggedOut State = iota
	Authenticating
	LoggedIn
)

func (s State) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case LoggedIn:
		return "logged-in"
	default:
		return "logged-out"
	}
}

// RoleAdmin is the role value the backend uses for administrators.
const RoleAdmin = 1

// logoutNotifyTimeout bounds the best-effort backend logout call.
const logoutNotifyTimeout = 5 * time.Second

// UserProfile is the authenticated user as reported by the backend.
type UserProfile struct {
	ID       int64
	Username string
	Email    string
	Role     int
	RoleName string
}

// IsAdmin reports whether the user has the admin role.
func (u UserProfile) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Config carries the controller's collaborators. Client and Store are
// required; everything else has a default.
type Config struct {
	Client         *api.Client
	Store          *credstore.Store
	Navigator      Navigator
	Diagnostics    Diagnostics
	Logger         *slog.Logger
	Metrics        *Metrics
	RefreshTimeout time.Duration
}

// Controller orchestrates login, logout and profile bootstrap. It is an
// explicitly owned instance; independent controllers share nothing.
type Controller struct {
	client    *api.Client
	store     *credstore.Store
	refresher *Refresher
	pipeline  *Pipeline
	logger    *slog.Logger

	mu      sync.Mutex
	state   State
	profile *UserProfile

	nowFunc func() time.Time
}

// New builds a controller together with its refresher and pipeline.
func New(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	c := &Controller{
		client:  cfg.Client,
		store:   cfg.Store,
		logger:  logger,
		nowFunc: time.Now,
	}

	c.refresher = NewRefresher(cfg.Client, cfg.Store, logger, metrics, cfg.RefreshTimeout)
	c.pipeline = NewPipeline(cfg.Client, cfg.Store, c.refresher, c, cfg.Navigator, cfg.Diagnostics, logger, metrics)

	return c
}

// Pipeline returns the authenticated request pipeline.
func (c *Controller) Pipeline() *Pipeline {
	return c.pipeline
}

// Refresher returns the token refresher.
func (c *Controller) Refresher() *Refresher {
	return c.refresher
}

// Store returns the credential store.
func (c *Controller) Store() *credstore.Store {
	return c.store
}

// State returns the current session state. A credential cleared behind
// the controller's back (refresh failure, another process logging out)
// demotes LoggedIn to LoggedOut.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dropStaleProfileLocked()

	return c.state
}

// Profile returns the loaded user profile, if any.
func (c *Controller) Profile() (UserProfile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dropStaleProfileLocked()

	if c.profile == nil {
		return UserProfile{}, false
	}

	return *c.profile, true
}

// IsAdmin reports whether the loaded profile is an administrator.
func (c *Controller) IsAdmin() bool {
	p, ok := c.Profile()
	return ok && p.IsAdmin()
}

func (c *Controller) dropStaleProfileLocked() {
	if c.state == LoggedIn && !c.store.IsAuthenticated() {
		c.state = LoggedOut
		c.profile = nil
	}
}

// Login authenticates with username and password, stores the issued
// credential and loads the profile. Wrong credentials fail with
// ErrInvalidCredentials, transport failures with ErrNetwork. On any
// failure no credential is left behind by this call.
func (c *Controller) Login(ctx context.Context, username, password string) (UserProfile, error) {
	username = norm.NFC.String(strings.TrimSpace(username))
	if username == "" || password == "" {
		return UserProfile{}, fmt.Errorf("%w: username and password are required", ErrInvalidCredentials)
	}

	prev := c.setState(Authenticating)

	c.logger.Info("logging in", slog.String("username", username))

	var tr api.TokenResponse

	err := c.client.PostJSON(ctx, api.PathLogin, api.LoginRequest{Username: username, Password: password}, &tr)

	var cred credstore.Credential
	if err == nil {
		cred, err = credentialFromResponse(tr, "", c.nowFunc())
	}

	if err != nil {
		c.setState(prev)
		return UserProfile{}, classifyLoginError(err)
	}

	// Persistence failures are logged by the store; the session works for
	// this process either way.
	_ = c.store.Set(ctx, cred)

	profile, err := c.FetchCurrentUser(ctx)
	if err != nil {
		c.EndSession(ctx)
		return UserProfile{}, err
	}

	c.logger.Info("login successful",
		slog.String("username", profile.Username),
		slog.Int("role", profile.Role),
	)

	return profile, nil
}

func classifyLoginError(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("session: login canceled: %w", err)
	case errors.Is(err, api.ErrNetwork):
		return fmt.Errorf("session: login: %w", err)
	case errors.Is(err, api.ErrUnauthorized),
		errors.Is(err, api.ErrBadRequest),
		errors.Is(err, api.ErrForbidden),
		errors.Is(err, api.ErrRejected):
		return fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	default:
		return fmt.Errorf("session: login: %w", err)
	}
}

// FetchCurrentUser loads the profile of the authenticated user through the
// pipeline. Without a credential it fails with ErrSessionInvalid. When the
// backend rejects the session the controller logs out and the error wraps
// ErrSessionInvalid. Transport failures and cancellation leave the session
// alone.
func (c *Controller) FetchCurrentUser(ctx context.Context) (UserProfile, error) {
	if !c.store.IsAuthenticated() {
		return UserProfile{}, fmt.Errorf("%w: %w", ErrSessionInvalid, ErrNotLoggedIn)
	}

	var u api.CurrentUser

	if err := c.pipeline.GetJSON(ctx, api.PathMe, &u); err != nil {
		if ctx.Err() != nil || errors.Is(err, api.ErrNetwork) {
			return UserProfile{}, fmt.Errorf("session: fetching current user: %w", err)
		}

		c.logger.Info("backend rejected session, logging out",
			slog.String("error", err.Error()),
		)
		c.EndSession(ctx)

		return UserProfile{}, fmt.Errorf("%w: %w", ErrSessionInvalid, err)
	}

	profile := UserProfile{
		ID:       u.UserID(),
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
		RoleName: u.RoleName,
	}

	c.mu.Lock()
	c.profile = &profile
	c.state = LoggedIn
	c.mu.Unlock()

	return profile, nil
}

// Logout ends the session. If a credential is present the backend is told
// first on a best-effort basis. Idempotent; never fails.
func (c *Controller) Logout(ctx context.Context) {
	if cred := c.store.Get(); cred.Authenticated() {
		c.notifyLogout(ctx, cred)
	}

	c.EndSession(ctx)
	c.logger.Info("logged out")
}

// notifyLogout tells the backend we are leaving. It bypasses the pipeline:
// a 401 here must not trigger a refresh.
func (c *Controller) notifyLogout(ctx context.Context, cred credstore.Credential) {
	ctx, cancel := context.WithTimeout(ctx, logoutNotifyTimeout)
	defer cancel()

	req, err := c.client.NewRequest(ctx, http.MethodPost, api.PathLogout, nil)
	if err != nil {
		return
	}

	cred.Token().SetAuthHeader(req)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("backend logout failed, ignoring", slog.String("error", err.Error()))
		return
	}

	resp.Body.Close()
}

// EndSession clears the credential and the profile locally. It implements
// SessionEnder for the pipeline. The clear is not bound to ctx's
// cancellation.
func (c *Controller) EndSession(ctx context.Context) {
	_ = c.store.Clear(context.WithoutCancel(ctx))

	c.mu.Lock()
	c.profile = nil
	c.state = LoggedOut
	c.mu.Unlock()
}

// Initialize restores the session at startup. Failures are logged and
// swallowed: a stale token at boot is the same as never having logged in.
func (c *Controller) Initialize(ctx context.Context) {
	profile, err := c.initialize(ctx)
	switch {
	case err == nil:
		c.logger.Debug("session restored", slog.String("username", profile.Username))
	case errors.Is(err, ErrNotLoggedIn):
		c.logger.Debug("no persisted session")
	default:
		c.logger.Info("could not restore session, continuing logged out",
			slog.String("error", err.Error()),
		)
	}
}

// initialize is Initialize with the outcome kept. No persisted access
// token yields ErrNotLoggedIn without any network call.
func (c *Controller) initialize(ctx context.Context) (UserProfile, error) {
	if !c.store.IsAuthenticated() {
		return UserProfile{}, ErrNotLoggedIn
	}

	c.setState(Authenticating)

	profile, err := c.FetchCurrentUser(ctx)
	if err != nil {
		c.setState(LoggedOut)
		return UserProfile{}, err
	}

	return profile, nil
}

// setState sets the state and returns the previous one.
func (c *Controller) setState(s State) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.state
	c.state = s

	return prev
}
