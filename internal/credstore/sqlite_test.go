package credstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSQLite(t *testing.T, path string) *SQLitePersister {
	t.Helper()

	p, err := OpenSQLite(context.Background(), path, discardLogger())
	require.NoError(t, err)

	t.Cleanup(func() { _ = p.Close() })

	return p
}

func TestSQLitePersister_EmptyDatabase(t *testing.T) {
	p := openTestSQLite(t, filepath.Join(t.TempDir(), "session.db"))

	c, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, c.IsZero())
}

func TestSQLitePersister_RoundTrip(t *testing.T) {
	ctx := context.Background()
	p := openTestSQLite(t, filepath.Join(t.TempDir(), "session.db"))

	expiry := time.Date(2099, 3, 4, 5, 6, 7, 0, time.UTC)
	require.NoError(t, p.Save(ctx, Credential{
		AccessToken:  "a",
		RefreshToken: "r",
		TokenType:    "Bearer",
		Expiry:       expiry,
	}))

	c, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", c.AccessToken)
	assert.Equal(t, "r", c.RefreshToken)
	assert.Equal(t, "Bearer", c.TokenType)
	assert.True(t, c.Expiry.Equal(expiry))
}

func TestSQLitePersister_SaveReplacesPreviousRows(t *testing.T) {
	ctx := context.Background()
	p := openTestSQLite(t, filepath.Join(t.TempDir(), "session.db"))

	require.NoError(t, p.Save(ctx, Credential{AccessToken: "a", RefreshToken: "r"}))
	require.NoError(t, p.Save(ctx, Credential{AccessToken: "b"}))

	c, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", c.AccessToken)
	assert.Empty(t, c.RefreshToken)
}

func TestSQLitePersister_Clear(t *testing.T) {
	ctx := context.Background()
	p := openTestSQLite(t, filepath.Join(t.TempDir(), "session.db"))

	require.NoError(t, p.Save(ctx, Credential{AccessToken: "a", RefreshToken: "r"}))
	require.NoError(t, p.Clear(ctx))

	c, err := p.Load(ctx)
	require.NoError(t, err)
	assert.True(t, c.IsZero())
}

func TestSQLitePersister_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.db")

	first, err := OpenSQLite(ctx, path, discardLogger())
	require.NoError(t, err)
	require.NoError(t, first.Save(ctx, Credential{AccessToken: "a", RefreshToken: "r"}))
	require.NoError(t, first.Close())

	// Migrations must be idempotent on reopen.
	second := openTestSQLite(t, path)
	s := Open(ctx, second, discardLogger())
	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, "r", s.Get().RefreshToken)
}
