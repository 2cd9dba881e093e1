package credstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}

func TestFilePersister_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokens", "session.json")

	first := Open(ctx, NewFilePersister(path), discardLogger())
	expiry := time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, first.Set(ctx, Credential{AccessToken: "a", RefreshToken: "r", Expiry: expiry}))

	// A fresh store over the same file simulates a process restart.
	second := Open(ctx, NewFilePersister(path), discardLogger())
	got := second.Get()
	assert.Equal(t, "a", got.AccessToken)
	assert.Equal(t, "r", got.RefreshToken)
	assert.True(t, got.Expiry.Equal(expiry))
}

func TestFilePersister_ClearRemovesFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	s := Open(ctx, NewFilePersister(path), discardLogger())

	require.NoError(t, s.Set(ctx, Credential{AccessToken: "a"}))
	require.NoError(t, s.Clear(ctx))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFilePersister_SaveZeroRemovesFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	p := NewFilePersister(path)

	require.NoError(t, p.Save(ctx, Credential{AccessToken: "a"}))
	require.NoError(t, p.Save(ctx, Credential{}))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
