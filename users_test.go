package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nonfou/mpayctl/internal/api"
	"github.com/nonfou/mpayctl/internal/session"
)

func TestUsers_AdminTable(t *testing.T) {
	env := newCLIEnv(t)
	env.login(t, "alice", "s3cret")

	out, errOut, err := env.run(t, "", "users")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "alice")
	assert.Contains(t, lines[2], "bob", "rows sorted by id")
	assert.Contains(t, errOut, "2 of 2 accounts")
}

func TestUsers_JSON(t *testing.T) {
	env := newCLIEnv(t)
	env.login(t, "alice", "s3cret")

	out, _, err := env.run(t, "", "--json", "users")
	require.NoError(t, err)

	var got usersOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, int64(2), got.Total)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "alice", got.Items[0].Username)
}

func TestUsers_NonAdminIsRefusedLocally(t *testing.T) {
	env := newCLIEnv(t)
	env.login(t, "bob", "hunter2")

	_, _, err := env.run(t, "", "users")
	require.ErrorIs(t, err, session.ErrPermissionDenied)

	assert.Equal(t, 0, env.backend.Hits(http.MethodGet, api.PathUsers), "guard refuses before the request")
	assert.FileExists(t, env.tokenPath)
}

func TestUsers_NotLoggedIn(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.run(t, "", "users")
	require.ErrorIs(t, err, errNotLoggedIn)
}

func TestUsers_InvalidPaging(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.run(t, "", "users", "--page", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be positive")
}

func TestLabelOr(t *testing.T) {
	assert.Equal(t, "active", labelOr("active", 1))
	assert.Equal(t, "1", labelOr("", 1))
}
