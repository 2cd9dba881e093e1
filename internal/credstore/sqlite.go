package credstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	// Pure-Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"

	"github.com/nonfou/mpayctl/internal/tokenfile"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Keys of the credentials table.
const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token" //nolint:gosec // G101: key name, not a credential
	keyTokenType    = "token_type"
	keyExpiry       = "expiry"
)

const (
	sqlSelectCredentials = `SELECT key, value FROM credentials`

	sqlUpsertCredential = `INSERT INTO credentials (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
		 value = excluded.value,
		 updated_at = excluded.updated_at`

	sqlDeleteCredentials = `DELETE FROM credentials`
)

// SQLitePersister stores the credential as rows of a key/value table.
type SQLitePersister struct {
	db      *sql.DB
	logger  *slog.Logger
	nowFunc func() time.Time
}

// OpenSQLite opens (creating if needed) the database at dbPath and applies
// pending migrations.
func OpenSQLite(ctx context.Context, dbPath string, logger *slog.Logger) (*SQLitePersister, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), tokenfile.DirPerms); err != nil {
		return nil, fmt.Errorf("credstore: creating database directory: %w", err)
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=busy_timeout(5000)",
		dbPath,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("credstore: opening database %s: %w", dbPath, err)
	}

	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLitePersister{db: db, logger: logger, nowFunc: time.Now}, nil
}

// runMigrations applies all pending schema migrations with the goose
// Provider API.
func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("credstore: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("credstore: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("credstore: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Debug("applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}

// Close releases the database handle.
func (p *SQLitePersister) Close() error {
	return p.db.Close()
}

// Load implements Persister.
func (p *SQLitePersister) Load(ctx context.Context) (Credential, error) {
	rows, err := p.db.QueryContext(ctx, sqlSelectCredentials)
	if err != nil {
		return Credential{}, fmt.Errorf("credstore: loading credential: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string, 4)

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Credential{}, fmt.Errorf("credstore: scanning credential row: %w", err)
		}

		values[k] = v
	}

	if err := rows.Err(); err != nil {
		return Credential{}, fmt.Errorf("credstore: iterating credential rows: %w", err)
	}

	c := Credential{
		AccessToken:  values[keyAccessToken],
		RefreshToken: values[keyRefreshToken],
		TokenType:    values[keyTokenType],
	}

	if raw := values[keyExpiry]; raw != "" {
		expiry, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return Credential{}, fmt.Errorf("credstore: parsing expiry %q: %w", raw, err)
		}

		c.Expiry = expiry
	}

	return c, nil
}

// Save implements Persister. All keys are replaced in one transaction.
func (p *SQLitePersister) Save(ctx context.Context, c Credential) (err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("credstore: beginning transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, sqlDeleteCredentials); err != nil {
		return fmt.Errorf("credstore: clearing credential rows: %w", err)
	}

	now := p.nowFunc().Unix()

	var expiry string
	if !c.Expiry.IsZero() {
		expiry = c.Expiry.UTC().Format(time.RFC3339Nano)
	}

	pairs := [][2]string{
		{keyAccessToken, c.AccessToken},
		{keyRefreshToken, c.RefreshToken},
		{keyTokenType, c.TokenType},
		{keyExpiry, expiry},
	}

	for _, kv := range pairs {
		if kv[1] == "" {
			continue
		}

		if _, err = tx.ExecContext(ctx, sqlUpsertCredential, kv[0], kv[1], now); err != nil {
			return fmt.Errorf("credstore: writing %s: %w", kv[0], err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("credstore: committing credential: %w", err)
	}

	return nil
}

// Clear implements Persister.
func (p *SQLitePersister) Clear(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, sqlDeleteCredentials); err != nil {
		return fmt.Errorf("credstore: clearing credential: %w", err)
	}

	return nil
}
