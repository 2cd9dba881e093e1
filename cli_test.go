package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nonfou/mpayctl/internal/testbackend"
)

var (
	cliAlice = testbackend.User{ID: 7, Username: "alice", Password: "s3cret", Email: "alice@example.com", Role: 1, RoleName: "admin"}
	cliBob   = testbackend.User{ID: 8, Username: "bob", Password: "hunter2", Email: "bob@example.com", Role: 2, RoleName: "merchant"}
)

// cliEnv is an isolated home, config and token location plus a fake
// backend with alice (admin) and bob.
type cliEnv struct {
	backend   *testbackend.Server
	home      string
	tokenPath string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, ".local", "share"))
	t.Setenv("MPAYCTL_CONFIG", "")
	t.Setenv("MPAYCTL_TOKEN_PATH", "")

	backend := testbackend.New(t)
	backend.AddUser(cliAlice)
	backend.AddUser(cliBob)

	t.Setenv("MPAYCTL_BASE_URL", backend.URL())

	return &cliEnv{
		backend:   backend,
		home:      home,
		tokenPath: filepath.Join(home, ".local", "share", "mpayctl", "token.json"),
	}
}

// run executes the root command with args and stdin, returning what it
// wrote to stdout and stderr.
func (e *cliEnv) run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	cmd := newRootCmd()

	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())

	return out.String(), errOut.String(), err
}

// login signs username in through the CLI.
func (e *cliEnv) login(t *testing.T, username, password string) {
	t.Helper()

	_, _, err := e.run(t, password+"\n", "login", "-u", username)
	require.NoError(t, err)
}
