// Package migrations holds the schema of the docsync database.
package migrations

import "github.com/jingkaihe/docsync/pkg/db"

// All returns every migration of the docsync database. Append new ones
// with a later version.
func All() []db.Migration {
	return []db.Migration{
		createSyncHistory,
		createEcosystemCache,
	}
}
