package skills

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jingkaihe/docsync/pkg/logger"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// DefaultCacheTTL is how long cached ecosystem results stay fresh.
const DefaultCacheTTL = 24 * time.Hour

type cacheRow struct {
	Results   string    `db:"results"`
	FetchedAt time.Time `db:"fetched_at"`
}

// CachedSearcher serves ecosystem results from SQLite while they are
// fresh and falls through to the wrapped searcher otherwise. Failed
// searches are never cached.
type CachedSearcher struct {
	inner Searcher
	db    *sqlx.DB
	ttl   time.Duration
	now   func() time.Time
}

// NewCachedSearcher wraps inner with a cache stored in db. The
// ecosystem_cache table must already exist.
func NewCachedSearcher(inner Searcher, db *sqlx.DB, ttl time.Duration) *CachedSearcher {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedSearcher{inner: inner, db: db, ttl: ttl, now: time.Now}
}

// Search returns cached results when fresh, otherwise queries the
// wrapped searcher and stores its answer.
func (c *CachedSearcher) Search(ctx context.Context, query string, limit int) ([]Skill, error) {
	log := logger.G(ctx).WithField("query", query)

	if cached, ok := c.lookup(ctx, query, limit); ok {
		log.Debug("ecosystem cache hit")
		return cached, nil
	}

	found, err := c.inner.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	if err := c.store(ctx, query, limit, found); err != nil {
		log.WithError(err).Warn("failed to cache ecosystem results")
	}
	return found, nil
}

func (c *CachedSearcher) lookup(ctx context.Context, query string, limit int) ([]Skill, bool) {
	var row cacheRow
	err := c.db.GetContext(ctx, &row,
		"SELECT results, fetched_at FROM ecosystem_cache WHERE query = ? AND result_limit = ?",
		query, limit)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.G(ctx).WithError(err).Debug("failed to read ecosystem cache")
		}
		return nil, false
	}

	if c.now().Sub(row.FetchedAt) > c.ttl {
		return nil, false
	}

	var found []Skill
	if err := json.Unmarshal([]byte(row.Results), &found); err != nil {
		return nil, false
	}
	return found, true
}

func (c *CachedSearcher) store(ctx context.Context, query string, limit int, found []Skill) error {
	data, err := json.Marshal(found)
	if err != nil {
		return errors.Wrap(err, "failed to encode ecosystem results")
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO ecosystem_cache (query, result_limit, results, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(query, result_limit) DO UPDATE SET
			results = excluded.results,
			fetched_at = excluded.fetched_at
	`, query, limit, string(data), c.now().UTC())
	return errors.Wrap(err, "failed to store ecosystem results")
}

// Purge removes every cached entry older than the TTL.
func (c *CachedSearcher) Purge(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		"DELETE FROM ecosystem_cache WHERE fetched_at < ?", c.now().Add(-c.ttl).UTC())
	if err != nil {
		return 0, errors.Wrap(err, "failed to purge ecosystem cache")
	}
	return res.RowsAffected()
}
