package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Redis is a Store backed by a Redis server.
type Redis struct {
	rdb *goredis.Client
}

// NewRedis wraps an existing client.
func NewRedis(rdb *goredis.Client) *Redis {
	return &Redis{rdb: rdb}
}

// OpenRedis builds a client from a redis:// URL. It does not dial: a server
// that is down at startup is reported by Ping and by every later operation.
func OpenRedis(url string) (*Redis, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	opts.DialTimeout = 2 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second
	return &Redis{rdb: goredis.NewClient(opts)}, nil
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, classify("get", err)
	}
	return val, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return classify("set", r.rdb.Set(ctx, key, value, ttl).Err())
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return classify("del", r.rdb.Del(ctx, keys...).Err())
}

func (r *Redis) Push(ctx context.Context, key string, value []byte) (int64, error) {
	n, err := r.rdb.LPush(ctx, key, value).Result()
	if err != nil {
		return 0, classify("lpush", err)
	}
	return n, nil
}

func (r *Redis) Range(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	vals, err := r.rdb.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, classify("lrange", err)
	}
	out := make([][]byte, len(vals))
	for i, v := range vals {
		out[i] = []byte(v)
	}
	return out, nil
}

func (r *Redis) Trim(ctx context.Context, key string, start, stop int64) error {
	return classify("ltrim", r.rdb.LTrim(ctx, key, start, stop).Err())
}

func (r *Redis) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return classify("expire", r.rdb.Expire(ctx, key, ttl).Err())
}

func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, classify("exists", err)
	}
	return n > 0, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return classify("ping", r.rdb.Ping(ctx).Err())
}

// classify translates go-redis errors into the package sentinels.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, goredis.Nil):
		return ErrNotFound
	case strings.HasPrefix(err.Error(), "WRONGTYPE"):
		return fmt.Errorf("redis %s: %w", op, ErrWrongType)
	default:
		return fmt.Errorf("redis %s: %w: %w", op, ErrUnavailable, err)
	}
}

var _ Store = (*Redis)(nil)
