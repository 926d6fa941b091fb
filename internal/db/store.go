package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/go-aureum/internal/store"
)

// Store implements store.Store on two tables: kv_entries for plain values
// and list_heads/list_items for lists. Rows carry an expires_at column that
// every read filters on; PurgeExpired reclaims the space.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// Get retrieves a live value by key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	query := `
		SELECT value
		FROM kv_entries
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2)
	`
	var value []byte
	err := s.pool.QueryRow(ctx, query, key, s.now()).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, unavailable("querying value", err)
	}
	return value, nil
}

// Set inserts or replaces a value.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	query := `
		INSERT INTO kv_entries (key, value, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			expires_at = EXCLUDED.expires_at
	`
	_, err := s.pool.Exec(ctx, query, key, value, expiryAt(s.now(), ttl))
	if err != nil {
		return unavailable("upserting value", err)
	}
	return nil
}

// Delete removes keys of either kind.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM kv_entries WHERE key = ANY($1)`, keys); err != nil {
			return unavailable("deleting values", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM list_heads WHERE key = ANY($1)`, keys); err != nil {
			return unavailable("deleting lists", err)
		}
		return nil
	})
}

// Push prepends value to a list, creating it when needed.
func (s *Store) Push(ctx context.Context, key string, value []byte) (int64, error) {
	now := s.now()
	var length int64
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := dropExpired(ctx, tx, key, now); err != nil {
			return err
		}

		var plain bool
		err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM kv_entries WHERE key = $1)`, key).Scan(&plain)
		if err != nil {
			return unavailable("checking key kind", err)
		}
		if plain {
			return store.ErrWrongType
		}

		if _, err := tx.Exec(ctx, `INSERT INTO list_heads (key) VALUES ($1) ON CONFLICT (key) DO NOTHING`, key); err != nil {
			return unavailable("creating list", err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO list_items (key, value) VALUES ($1, $2)`, key, value); err != nil {
			return unavailable("inserting list item", err)
		}
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM list_items WHERE key = $1`, key).Scan(&length); err != nil {
			return unavailable("counting list items", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return length, nil
}

// Range returns items between two inclusive indexes, newest first.
func (s *Store) Range(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	out := [][]byte{}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		n, err := liveLength(ctx, tx, key, s.now())
		if err != nil {
			return err
		}
		lo, hi, ok := store.Window(start, stop, n)
		if !ok {
			return nil
		}

		query := `
			SELECT value
			FROM list_items
			WHERE key = $1
			ORDER BY seq DESC
			OFFSET $2 LIMIT $3
		`
		rows, err := tx.Query(ctx, query, key, lo, hi-lo)
		if err != nil {
			return unavailable("querying list items", err)
		}
		defer rows.Close()

		for rows.Next() {
			var value []byte
			if err := rows.Scan(&value); err != nil {
				return unavailable("scanning list item", err)
			}
			out = append(out, value)
		}
		if err := rows.Err(); err != nil {
			return unavailable("reading list items", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Trim keeps only the items between two inclusive indexes.
func (s *Store) Trim(ctx context.Context, key string, start, stop int64) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		n, err := liveLength(ctx, tx, key, s.now())
		if err != nil || n == 0 {
			return err
		}
		lo, hi, ok := store.Window(start, stop, n)
		if !ok {
			if _, err := tx.Exec(ctx, `DELETE FROM list_heads WHERE key = $1`, key); err != nil {
				return unavailable("deleting list", err)
			}
			return nil
		}

		query := `
			DELETE FROM list_items
			WHERE key = $1 AND seq NOT IN (
				SELECT seq FROM list_items
				WHERE key = $1
				ORDER BY seq DESC
				OFFSET $2 LIMIT $3
			)
		`
		if _, err := tx.Exec(ctx, query, key, lo, hi-lo); err != nil {
			return unavailable("trimming list", err)
		}
		return nil
	})
}

// Expire sets a new ttl on a live key. A ttl <= 0 deletes the key.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return s.Delete(ctx, key)
	}
	now := s.now()
	expiresAt := now.Add(ttl)
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		live := `key = $1 AND (expires_at IS NULL OR expires_at > $3)`
		if _, err := tx.Exec(ctx, `UPDATE kv_entries SET expires_at = $2 WHERE `+live, key, expiresAt, now); err != nil {
			return unavailable("updating value expiry", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE list_heads SET expires_at = $2 WHERE `+live, key, expiresAt, now); err != nil {
			return unavailable("updating list expiry", err)
		}
		return nil
	})
}

// Exists reports whether key holds a live value or list.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	query := `
		SELECT
			EXISTS (SELECT 1 FROM kv_entries WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2))
			OR EXISTS (SELECT 1 FROM list_heads WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2))
	`
	var ok bool
	if err := s.pool.QueryRow(ctx, query, key, s.now()).Scan(&ok); err != nil {
		return false, unavailable("checking key", err)
	}
	return ok, nil
}

// Ping checks that the database answers within two seconds.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.pool.Ping(ctx); err != nil {
		return unavailable("pinging database", err)
	}
	return nil
}

// PurgeExpired removes all expired values and lists.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	now := s.now()
	values, err := s.pool.Exec(ctx, `DELETE FROM kv_entries WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, unavailable("deleting expired values", err)
	}
	lists, err := s.pool.Exec(ctx, `DELETE FROM list_heads WHERE expires_at <= $1`, now)
	if err != nil {
		return values.RowsAffected(), unavailable("deleting expired lists", err)
	}
	return values.RowsAffected() + lists.RowsAffected(), nil
}

// dropExpired clears a stale key so a write starts from nothing.
func dropExpired(ctx context.Context, tx pgx.Tx, key string, now time.Time) error {
	if _, err := tx.Exec(ctx, `DELETE FROM kv_entries WHERE key = $1 AND expires_at <= $2`, key, now); err != nil {
		return unavailable("deleting expired value", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM list_heads WHERE key = $1 AND expires_at <= $2`, key, now); err != nil {
		return unavailable("deleting expired list", err)
	}
	return nil
}

// liveLength counts the items of a live list; expired or missing lists are empty.
func liveLength(ctx context.Context, tx pgx.Tx, key string, now time.Time) (int64, error) {
	query := `
		SELECT COUNT(i.seq)
		FROM list_heads h
		JOIN list_items i ON i.key = h.key
		WHERE h.key = $1 AND (h.expires_at IS NULL OR h.expires_at > $2)
	`
	var n int64
	if err := tx.QueryRow(ctx, query, key, now).Scan(&n); err != nil {
		return 0, unavailable("counting list items", err)
	}
	return n, nil
}

// expiryAt converts a ttl into the expires_at column value. Nil means never.
func expiryAt(now time.Time, ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	t := now.Add(ttl)
	return &t
}

// unavailable marks a database failure as a broken backend.
func unavailable(action string, err error) error {
	if errors.Is(err, store.ErrUnavailable) || errors.Is(err, store.ErrWrongType) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", action, store.ErrUnavailable, err)
}

var (
	_ store.Store   = (*Store)(nil)
	_ store.Sweeper = (*Store)(nil)
)
