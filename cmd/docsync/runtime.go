package main

import (
	"context"
	"time"

	"github.com/jingkaihe/docsync/pkg/config"
	"github.com/jingkaihe/docsync/pkg/db"
	"github.com/jingkaihe/docsync/pkg/db/migrations"
	"github.com/jingkaihe/docsync/pkg/history"
	"github.com/jingkaihe/docsync/pkg/logger"
	"github.com/jingkaihe/docsync/pkg/pipeline"
	"github.com/jingkaihe/docsync/pkg/skills"
	"github.com/jmoiron/sqlx"
)

const ecosystemRetryDelay = 500 * time.Millisecond

// runtime holds the pipeline of a command together with the database it
// records into.
type runtime struct {
	pipeline *pipeline.Pipeline
	db       *sqlx.DB
}

// newRuntime builds the pipeline of cfg. The database is opened only when
// history or the ecosystem cache need it, and failing to open it only
// disables both.
func newRuntime(ctx context.Context, cfg config.Config) (*runtime, error) {
	rt := &runtime{}

	if cfg.History.Enabled || (cfg.Ecosystem.Enabled && cfg.Ecosystem.Cache) {
		database, err := db.OpenMigrated(ctx, cfg.History.DBPath, migrations.All())
		if err != nil {
			logger.G(ctx).WithError(err).Warn("database unavailable, history and ecosystem cache disabled")
		} else {
			rt.db = database
		}
	}

	var opts []pipeline.Option
	if cfg.History.Enabled && rt.db != nil {
		opts = append(opts, pipeline.WithHistory(history.NewStore(rt.db)))
	}
	if cfg.Ecosystem.Enabled {
		opts = append(opts, pipeline.WithSearcher(newSearcher(cfg.Ecosystem, rt.db)))
	}

	p, err := pipeline.New(cfg, opts...)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.pipeline = p
	return rt, nil
}

// newSearcher returns the registry searcher of cfg, cached in database
// when caching is enabled.
func newSearcher(cfg config.EcosystemConfig, database *sqlx.DB) skills.Searcher {
	var attempts uint
	if cfg.Attempts > 0 {
		attempts = uint(cfg.Attempts)
	}

	opts := []skills.SearcherOption{
		skills.WithRetry(attempts, ecosystemRetryDelay),
	}
	if len(cfg.Command) > 0 {
		opts = append(opts, skills.WithCommand(cfg.Command...))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, skills.WithTimeout(cfg.Timeout))
	}

	searcher := skills.NewCommandSearcher(opts...)
	if !cfg.Cache || database == nil {
		return searcher
	}
	return skills.NewCachedSearcher(searcher, database, cfg.CacheTTL)
}

// Close closes the database, if any.
func (rt *runtime) Close() {
	if rt.db != nil {
		rt.db.Close()
	}
}

// openHistory opens the history store for the history commands.
func openHistory(ctx context.Context, cfg config.Config) (*history.Store, func(), error) {
	database, err := db.OpenMigrated(ctx, cfg.History.DBPath, migrations.All())
	if err != nil {
		return nil, nil, err
	}
	return history.NewStore(database), func() { database.Close() }, nil
}

// withoutStorage disables the database backed features of cfg for
// commands that never record or query the registry.
func withoutStorage(cfg config.Config) config.Config {
	cfg.History.Enabled = false
	cfg.Ecosystem.Enabled = false
	return cfg
}
