package store

import (
	"context"
	"sync"
	"time"
)

// entry holds either a plain value or a list, plus its expiry.
type entry struct {
	value     []byte
	list      [][]byte
	isList    bool
	expiresAt time.Time // zero means no expiry
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Memory is an in-process Store for development and tests.
// Expired keys are dropped lazily on access and by PurgeExpired.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*entry
	now     func() time.Time
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithClock overrides the time source used for TTL checks.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemory creates an empty in-memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// lookup returns the live entry for key. Callers must hold mu.
func (m *Memory) lookup(key string) (*entry, bool) {
	e, ok := m.entries[key]
	if !ok || e.expired(m.now()) {
		return nil, false
	}
	return e, true
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.lookup(key)
	if !ok {
		return nil, ErrNotFound
	}
	if e.isList {
		return nil, ErrWrongType
	}
	return append([]byte(nil), e.value...), nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := &entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Push(_ context.Context, key string, value []byte) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key)
	if !ok {
		e = &entry{isList: true}
		m.entries[key] = e
	}
	if !e.isList {
		return 0, ErrWrongType
	}

	item := append([]byte(nil), value...)
	e.list = append([][]byte{item}, e.list...)
	return int64(len(e.list)), nil
}

func (m *Memory) Range(_ context.Context, key string, start, stop int64) ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.lookup(key)
	if !ok {
		return [][]byte{}, nil
	}
	if !e.isList {
		return nil, ErrWrongType
	}

	lo, hi, ok := Window(start, stop, int64(len(e.list)))
	if !ok {
		return [][]byte{}, nil
	}
	out := make([][]byte, 0, hi-lo)
	for _, item := range e.list[lo:hi] {
		out = append(out, append([]byte(nil), item...))
	}
	return out, nil
}

func (m *Memory) Trim(_ context.Context, key string, start, stop int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key)
	if !ok {
		return nil
	}
	if !e.isList {
		return ErrWrongType
	}

	lo, hi, ok := Window(start, stop, int64(len(e.list)))
	if !ok {
		delete(m.entries, key)
		return nil
	}
	e.list = append([][]byte(nil), e.list[lo:hi]...)
	return nil
}

func (m *Memory) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key)
	if !ok {
		return nil
	}
	if ttl <= 0 {
		delete(m.entries, key)
		return nil
	}
	e.expiresAt = m.now().Add(ttl)
	return nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.lookup(key)
	return ok, nil
}

func (m *Memory) Ping(context.Context) error {
	return nil
}

// PurgeExpired removes every expired key and returns how many were dropped.
func (m *Memory) PurgeExpired(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var n int64
	for k, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

// Len returns the number of live keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	n := 0
	for _, e := range m.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

var (
	_ Store   = (*Memory)(nil)
	_ Sweeper = (*Memory)(nil)
)
