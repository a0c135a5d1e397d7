package migrations

import "github.com/jingkaihe/docsync/pkg/db"

// createEcosystemCache keys cached skills.sh results by query and limit.
var createEcosystemCache = db.Migration{
	Version:     20261019090001,
	Description: "create ecosystem_cache",
	Statements: []string{
		`CREATE TABLE IF NOT EXISTS ecosystem_cache (
			query TEXT NOT NULL,
			result_limit INTEGER NOT NULL,
			results TEXT NOT NULL,
			fetched_at DATETIME NOT NULL,
			PRIMARY KEY (query, result_limit)
		)`,
	},
}
