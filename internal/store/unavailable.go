package store

import (
	"context"
	"time"
)

// Unavailable is a Store whose backend is never reachable. It backs the
// "none" store configuration and lets tests exercise degraded paths.
type Unavailable struct{}

func (Unavailable) Get(context.Context, string) ([]byte, error) { return nil, ErrUnavailable }

func (Unavailable) Set(context.Context, string, []byte, time.Duration) error { return ErrUnavailable }

func (Unavailable) Delete(context.Context, ...string) error { return ErrUnavailable }

func (Unavailable) Push(context.Context, string, []byte) (int64, error) { return 0, ErrUnavailable }

func (Unavailable) Range(context.Context, string, int64, int64) ([][]byte, error) {
	return nil, ErrUnavailable
}

func (Unavailable) Trim(context.Context, string, int64, int64) error { return ErrUnavailable }

func (Unavailable) Expire(context.Context, string, time.Duration) error { return ErrUnavailable }

func (Unavailable) Exists(context.Context, string) (bool, error) { return false, ErrUnavailable }

func (Unavailable) Ping(context.Context) error { return ErrUnavailable }

var _ Store = Unavailable{}
