// ABOUTME: Postgres connection pool setup and schema bootstrap
// ABOUTME: Builds a pgxpool from config and creates the tables on startup
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"goodnews/config"
)

// NewPool builds a connection pool from the database config and verifies
// connectivity with a ping before returning it.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	connCtx, cancel := context.WithTimeout(ctx, cfg.ConnTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(connCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.InfoContext(ctx, "connected to database pool", "max_conns", poolConfig.MaxConns)

	return pool, nil
}

// schema is applied on startup. Every statement is idempotent so repeated
// starts and multiple instances are safe.
const schema = `
CREATE TABLE IF NOT EXISTS articles (
	id                 TEXT PRIMARY KEY,
	unique_id          TEXT NOT NULL,
	title              TEXT NOT NULL,
	summary            TEXT NOT NULL,
	category           TEXT NOT NULL,
	link               TEXT NOT NULL,
	source             TEXT NOT NULL DEFAULT '',
	published_original TIMESTAMPTZ NOT NULL,
	batch_id           TEXT NOT NULL,
	published_at       TIMESTAMPTZ NOT NULL,
	expires_at         TIMESTAMPTZ NOT NULL,
	is_active          BOOLEAN NOT NULL DEFAULT TRUE,
	views              INTEGER NOT NULL DEFAULT 0,
	saves              INTEGER NOT NULL DEFAULT 0,
	shares             INTEGER NOT NULL DEFAULT 0,
	shares_by_platform JSONB NOT NULL DEFAULT '{}'::jsonb,
	trending_score     INTEGER NOT NULL DEFAULT 0,
	last_viewed_at     TIMESTAMPTZ,
	last_shared_at     TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_articles_category_published
	ON articles (category, published_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_articles_trending
	ON articles (trending_score DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_articles_expires
	ON articles (expires_at);
CREATE INDEX IF NOT EXISTS idx_articles_batch
	ON articles (batch_id);

CREATE TABLE IF NOT EXISTS user_bookmarks (
	user_id     TEXT PRIMARY KEY,
	article_ids TEXT[] NOT NULL DEFAULT '{}',
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS batch_metadata (
	batch_id      TEXT PRIMARY KEY,
	article_count INTEGER NOT NULL,
	processed_at  TIMESTAMPTZ NOT NULL,
	instance_id   TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS latest_batch (
	singleton       INTEGER PRIMARY KEY CHECK (singleton = 1),
	batch_id        TEXT NOT NULL,
	article_count   INTEGER NOT NULL,
	processed_at    TIMESTAMPTZ NOT NULL,
	instance_id     TEXT NOT NULL DEFAULT '',
	articles        JSONB NOT NULL DEFAULT '[]'::jsonb,
	category_counts JSONB NOT NULL DEFAULT '{}'::jsonb
);

CREATE TABLE IF NOT EXISTS daily_counters (
	day   TEXT PRIMARY KEY,
	count INTEGER NOT NULL DEFAULT 0
);
`

// EnsureSchema creates the tables and indexes if they do not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
