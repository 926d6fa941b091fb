// Package store defines the volatile key/value and list storage used for
// sessions and listening activity, plus its in-process and Redis backends.
//
// Every backend reports two kinds of failure: ErrNotFound when a key holds no
// data, and ErrUnavailable when the backend itself is broken or unreachable.
// Callers on consumer-facing paths treat both as "no data" and carry on.
package store

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors.
var (
	// ErrNotFound is returned by Get when the key does not exist or has expired.
	ErrNotFound = errors.New("store: key not found")

	// ErrUnavailable is returned when the backend cannot be reached or failed.
	ErrUnavailable = errors.New("store: backend unavailable")

	// ErrWrongType is returned when a list operation targets a plain value or
	// vice versa.
	ErrWrongType = errors.New("store: operation against a key holding the wrong kind of value")
)

// Store is a TTL-capable key/value and ordered-list store.
//
// Lists follow Redis semantics: Push prepends, Range and Trim take inclusive
// indexes where negative values count from the tail (-1 is the last element).
// A missing list behaves like an empty one.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key. A ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// Push prepends value to the list at key and returns the new length.
	Push(ctx context.Context, key string, value []byte) (int64, error)
	Range(ctx context.Context, key string, start, stop int64) ([][]byte, error)
	Trim(ctx context.Context, key string, start, stop int64) error
	// Expire sets a ttl on an existing key. Missing keys are ignored.
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Ping(ctx context.Context) error
}

// Sweeper is implemented by backends that need expired entries removed
// periodically instead of relying on the server to do it.
type Sweeper interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Outcome maps an operation error to a short label used in logs and metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "miss"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

// Window converts Redis-style inclusive indexes into a half-open
// [lo, hi) slice window for a list of length n. ok is false when the window
// is empty.
func Window(start, stop, n int64) (lo, hi int64, ok bool) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop || start >= n {
		return 0, 0, false
	}
	return start, stop + 1, true
}
