package migrations

import "github.com/jingkaihe/docsync/pkg/db"

// createSyncHistory stores one row per sync run and one row per directory
// of the run.
var createSyncHistory = db.Migration{
	Version:     20261019090000,
	Description: "create sync_runs and sync_directories",
	Statements: []string{
		`CREATE TABLE IF NOT EXISTS sync_runs (
			id TEXT PRIMARY KEY,
			root TEXT NOT NULL,
			dry_run INTEGER NOT NULL DEFAULT 0,
			promotion_threshold REAL NOT NULL,
			promoted_skills TEXT NOT NULL,
			updated_count INTEGER NOT NULL DEFAULT 0,
			unchanged_count INTEGER NOT NULL DEFAULT 0,
			failed_count INTEGER NOT NULL DEFAULT 0,
			started_at DATETIME NOT NULL,
			finished_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sync_directories (
			run_id TEXT NOT NULL REFERENCES sync_runs(id) ON DELETE CASCADE,
			rel_path TEXT NOT NULL,
			agent_file TEXT,
			status TEXT NOT NULL,
			technologies TEXT NOT NULL,
			skills TEXT NOT NULL,
			PRIMARY KEY (run_id, rel_path)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_runs_root_started
			ON sync_runs(root, started_at DESC)`,
	},
}
