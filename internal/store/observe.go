package store

import (
	"context"
	"time"
)

// Observer is notified after every store operation.
type Observer func(op string, err error)

// observed decorates a Store with an Observer.
type observed struct {
	next Store
	fn   Observer
}

// Observe wraps s so that fn sees the outcome of each operation.
// Sweeper support of the wrapped store is preserved.
func Observe(s Store, fn Observer) Store {
	if fn == nil {
		return s
	}
	o := &observed{next: s, fn: fn}
	if sw, ok := s.(Sweeper); ok {
		return &observedSweeper{observed: o, sweeper: sw}
	}
	return o
}

func (o *observed) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := o.next.Get(ctx, key)
	o.fn("get", err)
	return v, err
}

func (o *observed) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := o.next.Set(ctx, key, value, ttl)
	o.fn("set", err)
	return err
}

func (o *observed) Delete(ctx context.Context, keys ...string) error {
	err := o.next.Delete(ctx, keys...)
	o.fn("delete", err)
	return err
}

func (o *observed) Push(ctx context.Context, key string, value []byte) (int64, error) {
	n, err := o.next.Push(ctx, key, value)
	o.fn("push", err)
	return n, err
}

func (o *observed) Range(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	v, err := o.next.Range(ctx, key, start, stop)
	o.fn("range", err)
	return v, err
}

func (o *observed) Trim(ctx context.Context, key string, start, stop int64) error {
	err := o.next.Trim(ctx, key, start, stop)
	o.fn("trim", err)
	return err
}

func (o *observed) Expire(ctx context.Context, key string, ttl time.Duration) error {
	err := o.next.Expire(ctx, key, ttl)
	o.fn("expire", err)
	return err
}

func (o *observed) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := o.next.Exists(ctx, key)
	o.fn("exists", err)
	return ok, err
}

func (o *observed) Ping(ctx context.Context) error {
	err := o.next.Ping(ctx)
	o.fn("ping", err)
	return err
}

type observedSweeper struct {
	*observed
	sweeper Sweeper
}

func (o *observedSweeper) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := o.sweeper.PurgeExpired(ctx)
	o.fn("purge", err)
	return n, err
}
