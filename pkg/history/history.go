// Package history records sync runs and their per-directory outcome in
// the docsync SQLite database.
package history

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("sync run not found")

// Run is one recorded sync.
type Run struct {
	ID         string      `json:"id"`
	Root       string      `json:"root"`
	DryRun     bool        `json:"dry_run"`
	Threshold  float64     `json:"promotion_threshold"`
	Promoted   []string    `json:"promoted_skills"`
	Updated    int         `json:"updated"`
	Unchanged  int         `json:"unchanged"`
	Failed     int         `json:"failed"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Dirs       []Directory `json:"directories,omitempty"`
}

// Directory is the outcome of one directory within a run.
type Directory struct {
	Rel          string   `json:"rel"`
	AgentFile    string   `json:"agent_file,omitempty"`
	Status       string   `json:"status"`
	Technologies []string `json:"technologies"`
	Skills       []string `json:"skills"`
}

// Store persists sync runs.
type Store struct {
	db *sqlx.DB
}

// NewStore creates a store over a migrated database.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Record saves run and its directories in one transaction. An empty ID
// is replaced with a new UUID.
func (s *Store) Record(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO sync_runs (
			id, root, dry_run, promotion_threshold, promoted_skills,
			updated_count, unchanged_count, failed_count, started_at, finished_at
		) VALUES (
			:id, :root, :dry_run, :promotion_threshold, :promoted_skills,
			:updated_count, :unchanged_count, :failed_count, :started_at, :finished_at
		)
	`, fromRun(run))
	if err != nil {
		return errors.Wrap(err, "failed to insert sync run")
	}

	for _, dir := range run.Dirs {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO sync_directories (run_id, rel_path, agent_file, status, technologies, skills)
			VALUES (:run_id, :rel_path, :agent_file, :status, :technologies, :skills)
		`, fromDirectory(run.ID, dir))
		if err != nil {
			return errors.Wrapf(err, "failed to insert directory %s", dir.Rel)
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit sync run")
}

// List returns the most recent runs first, without directories. An empty
// root lists runs of every project; a non-positive limit lists all.
func (s *Store) List(ctx context.Context, root string, limit int) ([]Run, error) {
	query := "SELECT * FROM sync_runs"
	var args []any
	if root != "" {
		query += " WHERE root = ?"
		args = append(args, root)
	}
	query += " ORDER BY started_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows []dbRun
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to list sync runs")
	}

	runs := make([]Run, len(rows))
	for i, row := range rows {
		runs[i] = row.toRun()
	}
	return runs, nil
}

// Get returns a run with its directories. id may be a unique prefix.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	var rows []dbRun
	if err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM sync_runs WHERE id LIKE ? || '%' LIMIT 2", id); err != nil {
		return nil, errors.Wrap(err, "failed to get sync run")
	}
	switch len(rows) {
	case 0:
		return nil, errors.Wrapf(ErrNotFound, "run %s", id)
	case 2:
		return nil, errors.Errorf("run id prefix %s is ambiguous", id)
	}

	run := rows[0].toRun()

	var dirs []dbDirectory
	if err := s.db.SelectContext(ctx, &dirs,
		"SELECT * FROM sync_directories WHERE run_id = ? ORDER BY rel_path", run.ID); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(err, "failed to get sync directories")
	}
	run.Dirs = make([]Directory, len(dirs))
	for i, d := range dirs {
		run.Dirs[i] = d.toDirectory()
	}
	return &run, nil
}

// Prune deletes all but the keep most recent runs of root.
func (s *Store) Prune(ctx context.Context, root string, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM sync_runs
		WHERE root = ? AND id NOT IN (
			SELECT id FROM sync_runs WHERE root = ? ORDER BY started_at DESC LIMIT ?
		)
	`, root, root, keep)
	if err != nil {
		return 0, errors.Wrap(err, "failed to prune sync runs")
	}
	return res.RowsAffected()
}
