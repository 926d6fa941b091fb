// Package db provides a PostgreSQL-backed volatile store for deployments that
// already run Postgres and do not want a separate Redis.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// New creates a new database connection pool.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the database connection pool.
func (db *DB) Close() {
	db.pool.Close()
}

// Pool returns the underlying connection pool for advanced operations.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// EnsureSchema creates the store tables if they do not exist yet.
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}

// Store returns the volatile store view of the database.
func (db *DB) Store() *Store {
	return &Store{pool: db.pool, now: time.Now}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS kv_entries (
		key        TEXT PRIMARY KEY,
		value      BYTEA NOT NULL,
		expires_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS kv_entries_expires_at_idx ON kv_entries (expires_at)`,
	`CREATE TABLE IF NOT EXISTS list_heads (
		key        TEXT PRIMARY KEY,
		expires_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS list_heads_expires_at_idx ON list_heads (expires_at)`,
	`CREATE TABLE IF NOT EXISTS list_items (
		key   TEXT NOT NULL REFERENCES list_heads (key) ON DELETE CASCADE,
		seq   BIGINT GENERATED ALWAYS AS IDENTITY,
		value BYTEA NOT NULL,
		PRIMARY KEY (key, seq)
	)`,
}
