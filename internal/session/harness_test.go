package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nonfou/mpayctl/internal/api"
	"github.com/nonfou/mpayctl/internal/credstore"
	"github.com/nonfou/mpayctl/internal/testbackend"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingNavigator struct {
	mu       sync.Mutex
	intended []string
}

func (n *recordingNavigator) RedirectToLogin(_ context.Context, intended string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.intended = append(n.intended, intended)
}

func (n *recordingNavigator) calls() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]string(nil), n.intended...)
}

type recordingDiagnostics struct {
	mu    sync.Mutex
	paths []string
}

func (d *recordingDiagnostics) PermissionDenied(_ context.Context, method, path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.paths = append(d.paths, method+" "+path)
}

func (d *recordingDiagnostics) calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]string(nil), d.paths...)
}

// harness wires a controller to a fake backend with an in-memory store.
type harness struct {
	backend   *testbackend.Server
	persister *credstore.MemoryPersister
	store     *credstore.Store
	metrics   *Metrics
	nav       *recordingNavigator
	diag      *recordingDiagnostics
	ctrl      *Controller
}

var (
	alice = testbackend.User{ID: 7, Username: "alice", Password: "s3cret", Email: "alice@example.com", Role: 1, RoleName: "admin"}
	bob   = testbackend.User{ID: 8, Username: "bob", Password: "hunter2", Email: "bob@example.com", Role: 2, RoleName: "merchant"}
)

func newHarness(t *testing.T, opts ...testbackend.Option) *harness {
	t.Helper()

	backend := testbackend.New(t, opts...)
	backend.AddUser(alice)
	backend.AddUser(bob)

	return newHarnessWith(t, backend, credstore.Credential{})
}

func newHarnessWith(t *testing.T, backend *testbackend.Server, persisted credstore.Credential) *harness {
	t.Helper()

	h := &harness{
		backend:   backend,
		persister: credstore.NewMemoryPersister(persisted),
		metrics:   NewMetrics(nil),
		nav:       &recordingNavigator{},
		diag:      &recordingDiagnostics{},
	}

	h.store = credstore.Open(context.Background(), h.persister, discardLogger())
	h.ctrl = New(Config{
		Client:      api.NewClient(backend.URL(), backend.Client(), discardLogger(), ""),
		Store:       h.store,
		Navigator:   h.nav,
		Diagnostics: h.diag,
		Logger:      discardLogger(),
		Metrics:     h.metrics,
	})

	return h
}

// seed stores a freshly issued credential for username without going
// through login.
func (h *harness) seed(t *testing.T, username string) credstore.Credential {
	t.Helper()

	tr := h.backend.Issue(username)
	cred := credstore.Credential{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
	}

	require.NoError(t, h.store.Set(context.Background(), cred))

	return cred
}

func bearer(token string) string {
	return "Bearer " + token
}
