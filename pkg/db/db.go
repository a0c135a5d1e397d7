// Package db provides the SQLite storage shared by sync history and the
// ecosystem cache.
package db

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// DefaultDBPath returns the default path of the docsync database holding
// sync history and the ecosystem cache. DOCSYNC_BASE_PATH overrides the
// ~/.docsync directory.
func DefaultDBPath() (string, error) {
	if basePath := os.Getenv("DOCSYNC_BASE_PATH"); basePath != "" {
		return filepath.Join(basePath, "docsync.db"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, ".docsync", "docsync.db"), nil
}

// pragmas are applied to every connection docsync opens. A sync and a
// concurrent `history` command may share the file, hence WAL and the busy
// timeout.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=ON",
}

// Open opens or creates the SQLite database at dbPath. An empty path
// selects DefaultDBPath.
func Open(ctx context.Context, dbPath string) (*sqlx.DB, error) {
	if dbPath == "" {
		defaultPath, err := DefaultDBPath()
		if err != nil {
			return nil, err
		}
		dbPath = defaultPath
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create database directory")
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %s", dbPath)
	}
	// pragmas are per connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "failed to execute %s", pragma)
		}
	}

	mode, err := JournalMode(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	if mode != "wal" {
		db.Close()
		return nil, errors.Errorf("database %s does not support WAL mode (journal mode %s)", dbPath, mode)
	}

	return db, nil
}

// OpenMigrated opens the database at dbPath and applies any pending
// migrations.
func OpenMigrated(ctx context.Context, dbPath string, migrations []Migration) (*sqlx.DB, error) {
	db, err := Open(ctx, dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := Migrate(ctx, db, migrations); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to run migrations")
	}
	return db, nil
}

// JournalMode returns the lower-cased journal mode of db.
func JournalMode(ctx context.Context, db *sqlx.DB) (string, error) {
	var mode string
	if err := db.GetContext(ctx, &mode, "PRAGMA journal_mode"); err != nil {
		return "", errors.Wrap(err, "failed to query journal mode")
	}
	return strings.ToLower(mode), nil
}
