// Package testbackend runs an in-process fake of the mpay backend's auth
// and admin endpoints for tests and local development. It issues real
// HS256 JWT access tokens, rotates refresh tokens on every refresh, and
// records every request it sees so tests can assert on exactly what the
// client sent.
package testbackend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nonfou/mpayctl/internal/api"
)

// Envelope codes the fake backend uses alongside the HTTP status.
const (
	CodeOK           = 0
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeBadRequest   = 400
)

// PathOrders and PathEcho are extra authenticated endpoints for pipeline
// tests. Echo returns the request body as the envelope data.
const (
	PathOrders = "/api/orders"
	PathEcho   = "/api/echo"
)

const defaultAccessTTL = 15 * time.Minute

// User is an account known to the fake backend.
type User struct {
	ID       int64
	Username string
	Password string
	Email    string
	Role     int
	RoleName string
	State    int
}

type grant struct {
	username string
	expires  time.Time
}

type failure struct {
	status int
	code   int
}

// Server is the fake backend. Zero value is not usable; call New.
type Server struct {
	srv *httptest.Server
	key []byte

	mu           sync.Mutex
	users        map[string]User
	access       map[string]grant
	refresh      map[string]string
	rotate       bool
	accessTTL    time.Duration
	refreshDelay time.Duration
	hits         map[string]int
	lastAuth     map[string]string
	failNext     map[string]failure
	now          func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithAccessTTL sets the lifetime of issued access tokens.
func WithAccessTTL(d time.Duration) Option {
	return func(s *Server) { s.accessTTL = d }
}

// WithoutRotation makes refresh keep the presented refresh token valid
// and hand it back unchanged.
func WithoutRotation() Option {
	return func(s *Server) { s.rotate = false }
}

// WithRefreshDelay delays every refresh response, which widens the window
// in which concurrent callers must coalesce.
func WithRefreshDelay(d time.Duration) Option {
	return func(s *Server) { s.refreshDelay = d }
}

// New starts a fake backend and stops it when the test ends.
func New(t testing.TB, opts ...Option) *Server {
	t.Helper()

	s := NewServer(opts...)
	s.srv = httptest.NewServer(s.Handler())
	t.Cleanup(s.srv.Close)

	return s
}

// NewServer builds a fake backend without starting a listener. Serve its
// Handler yourself; URL, Client and Close are only valid on servers
// created with New.
func NewServer(opts ...Option) *Server {
	s := &Server{
		key:       []byte("testbackend-signing-key"),
		users:     make(map[string]User),
		access:    make(map[string]grant),
		refresh:   make(map[string]string),
		rotate:    true,
		accessTTL: defaultAccessTTL,
		hits:      make(map[string]int),
		lastAuth:  make(map[string]string),
		failNext:  make(map[string]failure),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Handler returns the backend's HTTP routes.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/refresh", s.handleRefresh)

		r.Group(func(r chi.Router) {
			r.Use(s.requireBearer)

			r.Post("/auth/logout", s.handleLogout)
			r.Get("/auth/me", s.handleMe)
			r.Get("/orders", s.handleOrders)
			r.Post("/echo", s.handleEcho)
			r.With(s.requireAdmin).Get("/users", s.handleUsers)
		})
	})

	return r
}

// URL is the base URL to point an api.Client at.
func (s *Server) URL() string {
	return s.srv.URL
}

// Client returns the underlying server's HTTP client.
func (s *Server) Client() *http.Client {
	return s.srv.Client()
}

// Close stops the server early, e.g. to provoke transport errors.
func (s *Server) Close() {
	s.srv.Close()
}

// AddUser registers an account.
func (s *Server) AddUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[u.Username] = u
}

// Issue mints a token pair for username as if it had logged in.
func (s *Server) Issue(username string) api.TokenResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.issueLocked(username)
}

// ExpireAccessTokens makes every access token issued so far answer 401.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()

	past := s.now().Add(-time.Second)
	for tok, g := range s.access {
		g.expires = past
		s.access[tok] = g
	}
}

// RevokeRefreshTokens makes every outstanding refresh token unusable.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.refresh)
}

// FailNext makes the next request to method+path answer with status and
// an envelope carrying code, before any other handling.
func (s *Server) FailNext(method, path string, status, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failNext[method+" "+path] = failure{status: status, code: code}
}

// Hits returns how many requests method+path has received.
func (s *Server) Hits(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.hits[method+" "+path]
}

// LastAuthorization returns the Authorization header of the most recent
// request to method+path.
func (s *Server) LastAuthorization(method, path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastAuth[method+" "+path]
}

// record counts requests and serves injected failures.
func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path

		s.mu.Lock()
		s.hits[key]++
		s.lastAuth[key] = r.Header.Get("Authorization")
		f, failing := s.failNext[key]
		delete(s.failNext, key)
		s.mu.Unlock()

		if failing {
			writeEnvelope(w, f.status, f.code, http.StatusText(f.status), nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type ctxKeyUser struct{}

func withUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, ctxKeyUser{}, u)
}

func userFrom(ctx context.Context) User {
	u, _ := ctx.Value(ctxKeyUser{}).(User)
	return u
}

func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const prefix = "Bearer "

		h := r.Header.Get("Authorization")
		if !strings.HasPrefix(h, prefix) {
			writeEnvelope(w, http.StatusUnauthorized, CodeUnauthorized, "missing token", nil)
			return
		}

		tok := strings.TrimPrefix(h, prefix)

		s.mu.Lock()
		g, ok := s.access[tok]
		u, known := s.users[g.username]
		now := s.now()
		s.mu.Unlock()

		if !ok || !known || !now.Before(g.expires) {
			writeEnvelope(w, http.StatusUnauthorized, CodeUnauthorized, "token expired", nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), u)))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userFrom(r.Context()).Role != 1 {
			writeEnvelope(w, http.StatusForbidden, CodeForbidden, "forbidden", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeEnvelope(w, http.StatusBadRequest, CodeBadRequest, "malformed body", nil)
		return
	}

	s.mu.Lock()
	u, ok := s.users[in.Username]
	if !ok || u.Password != in.Password {
		s.mu.Unlock()
		writeEnvelope(w, http.StatusUnauthorized, CodeUnauthorized, "invalid username or password", nil)

		return
	}

	tr := s.issueLocked(u.Username)
	s.mu.Unlock()

	writeEnvelope(w, http.StatusOK, CodeOK, "ok", tr)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var in api.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.RefreshToken == "" {
		writeEnvelope(w, http.StatusBadRequest, CodeBadRequest, "refreshToken is required", nil)
		return
	}

	if s.refreshDelay > 0 {
		time.Sleep(s.refreshDelay)
	}

	s.mu.Lock()
	username, ok := s.refresh[in.RefreshToken]
	if !ok {
		s.mu.Unlock()
		writeEnvelope(w, http.StatusUnauthorized, CodeUnauthorized, "invalid refresh token", nil)

		return
	}

	var tr api.TokenResponse
	if s.rotate {
		delete(s.refresh, in.RefreshToken)
		tr = s.issueLocked(username)
	} else {
		tr = s.issueAccessLocked(username)
		tr.RefreshToken = in.RefreshToken
	}
	s.mu.Unlock()

	writeEnvelope(w, http.StatusOK, CodeOK, "ok", tr)
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	writeEnvelope(w, http.StatusOK, CodeOK, "ok", nil)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())

	writeEnvelope(w, http.StatusOK, CodeOK, "ok", api.CurrentUser{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
		RoleName: u.RoleName,
	})
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())

	writeEnvelope(w, http.StatusOK, CodeOK, "ok", map[string]any{
		"owner":  u.Username,
		"orders": []string{},
	})
}

func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, CodeBadRequest, "unreadable body", nil)
		return
	}

	if len(body) == 0 {
		writeEnvelope(w, http.StatusOK, CodeOK, "ok", nil)
		return
	}

	writeEnvelope(w, http.StatusOK, CodeOK, "ok", json.RawMessage(body))
}

func (s *Server) handleUsers(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	items := make([]api.User, 0, len(s.users))
	for _, u := range s.users {
		items = append(items, api.User{
			ID:       u.ID,
			Username: u.Username,
			Email:    u.Email,
			Role:     u.Role,
			RoleName: u.RoleName,
			State:    u.State,
		})
	}
	s.mu.Unlock()

	writeEnvelope(w, http.StatusOK, CodeOK, "ok", api.Page[api.User]{
		Page:     1,
		PageSize: int64(len(items)),
		Total:    int64(len(items)),
		Items:    items,
	})
}

func (s *Server) issueLocked(username string) api.TokenResponse {
	tr := s.issueAccessLocked(username)
	tr.RefreshToken = uuid.NewString()
	s.refresh[tr.RefreshToken] = username

	return tr
}

func (s *Server) issueAccessLocked(username string) api.TokenResponse {
	now := s.now()
	exp := now.Add(s.accessTTL)

	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		panic("testbackend: signing token: " + err.Error())
	}

	s.access[signed] = grant{username: username, expires: exp}

	return api.TokenResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.accessTTL / time.Second),
	}
}

func writeEnvelope(w http.ResponseWriter, status, code int, msg string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":    code,
		"message": msg,
		"data":    data,
	})
}
