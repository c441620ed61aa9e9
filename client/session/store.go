package session

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"io/fs"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/trezcool/escuela/core"
	"github.com/trezcool/escuela/core/auth"
)

const (
	keyToken = "auth.token"
	keyUser  = "auth.user"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store persists the session pair.
// Load reports ok=false when no complete pair is stored.
type Store interface {
	Load(ctx context.Context) (token string, usr auth.Identity, ok bool, err error)
	Save(ctx context.Context, token string, usr auth.Identity) error
	Clear(ctx context.Context) error
}

// SQLiteStore keeps the session pair in a key/value table of a local SQLite file.
type SQLiteStore struct {
	db *sqlx.DB
}

// OpenSQLiteStore opens (creating if needed) the SQLite file at path and applies its migrations.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening session db")
	}
	// a single connection serialises writers on the file
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return errors.Wrap(err, "reading session migrations")
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return errors.Wrap(err, "creating migration provider")
	}
	if _, err := provider.Up(ctx); err != nil {
		return errors.Wrap(err, "migrating session db")
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context) (string, auth.Identity, bool, error) {
	var rows []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}
	q := `SELECT key, value FROM kv WHERE key IN (?, ?)`
	if err := s.db.SelectContext(ctx, &rows, q, keyToken, keyUser); err != nil {
		return "", auth.Identity{}, false, errors.Wrap(err, "loading session")
	}

	var (
		token, rawUser string
		usr            auth.Identity
	)
	for _, row := range rows {
		switch row.Key {
		case keyToken:
			token = row.Value
		case keyUser:
			rawUser = row.Value
		}
	}
	if token == "" && rawUser == "" {
		return "", auth.Identity{}, false, nil
	}

	// a half-written or unreadable pair is no session at all
	if token == "" || rawUser == "" || json.Unmarshal([]byte(rawUser), &usr) != nil {
		if err := s.Clear(ctx); err != nil {
			return "", auth.Identity{}, false, err
		}
		return "", auth.Identity{}, false, nil
	}
	return token, usr, true, nil
}

// Save replaces the stored pair in a single transaction.
func (s *SQLiteStore) Save(ctx context.Context, token string, usr auth.Identity) error {
	rawUser, err := json.Marshal(usr)
	if err != nil {
		return errors.Wrap(err, "encoding session user")
	}

	q := `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	err = core.WithTx(ctx, s.db, func(tx core.DBExecutor) error {
		if _, err := tx.ExecContext(ctx, q, keyToken, token); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, q, keyUser, string(rawUser))
		return err
	})
	return errors.Wrap(err, "saving session")
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key IN (?, ?)`, keyToken, keyUser)
	return errors.Wrap(err, "clearing session")
}

var _ Store = (*SQLiteStore)(nil)
