package db

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/jingkaihe/docsync/pkg/logger"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// Migration is a schema change identified by a YYYYMMDDHHmmss version.
// Its statements run in a single transaction.
type Migration struct {
	Version     int64
	Description string
	Statements  []string
}

const versionsTable = `
	CREATE TABLE IF NOT EXISTS docsync_schema (
		version INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at DATETIME NOT NULL
	)`

// Migrate applies the migrations not yet recorded in db, oldest version
// first, and returns the versions it applied.
func Migrate(ctx context.Context, db *sqlx.DB, migrations []Migration) ([]int64, error) {
	if _, err := db.ExecContext(ctx, versionsTable); err != nil {
		return nil, errors.Wrap(err, "failed to create docsync_schema table")
	}

	applied, err := AppliedVersions(ctx, db)
	if err != nil {
		return nil, err
	}

	pending := slices.Clone(migrations)
	slices.SortFunc(pending, func(a, b Migration) int {
		return cmp.Compare(a.Version, b.Version)
	})

	var done []int64
	for _, m := range pending {
		if slices.Contains(applied, m.Version) {
			continue
		}
		if err := apply(ctx, db, m); err != nil {
			return done, errors.Wrapf(err, "failed to apply migration %d (%s)", m.Version, m.Description)
		}
		logger.G(ctx).WithField("version", m.Version).Debug("applied migration")
		done = append(done, m.Version)
	}
	return done, nil
}

// AppliedVersions returns the recorded migration versions in ascending
// order.
func AppliedVersions(ctx context.Context, db *sqlx.DB) ([]int64, error) {
	var versions []int64
	if err := db.SelectContext(ctx, &versions, "SELECT version FROM docsync_schema ORDER BY version"); err != nil {
		return nil, errors.Wrap(err, "failed to read applied migrations")
	}
	return versions, nil
}

func apply(ctx context.Context, db *sqlx.DB, m Migration) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	for _, stmt := range m.Statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO docsync_schema (version, description, applied_at) VALUES (?, ?, ?)",
		m.Version, m.Description, time.Now().UTC()); err != nil {
		return errors.Wrap(err, "failed to record migration")
	}
	return tx.Commit()
}
