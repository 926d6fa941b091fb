package db

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/go-aureum/internal/store"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// openTestStore connects to DATABASE_URL and returns a store with a manual
// clock plus a key prefix unique to the test. Skips when no database is set.
func openTestStore(t *testing.T) (*Store, *testClock, func(string) string) {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	database, err := New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(database.Close)
	require.NoError(t, database.EnsureSchema(ctx))

	prefix := "test:" + uuid.NewString() + ":"
	t.Cleanup(func() {
		_, _ = database.Pool().Exec(context.Background(), `DELETE FROM kv_entries WHERE key LIKE $1`, prefix+"%")
		_, _ = database.Pool().Exec(context.Background(), `DELETE FROM list_heads WHERE key LIKE $1`, prefix+"%")
	})

	clock := &testClock{now: time.Now().UTC()}
	s := database.Store()
	s.now = clock.Now
	return s, clock, func(k string) string { return prefix + k }
}

func TestPostgresStore_GetSetTTL(t *testing.T) {
	s, clock, key := openTestStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, key("missing"))
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Set(ctx, key("session:1"), []byte("v1"), time.Hour))
	require.NoError(t, s.Set(ctx, key("session:1"), []byte("v2"), time.Hour))
	got, err := s.Get(ctx, key("session:1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	ok, err := s.Exists(ctx, key("session:1"))
	require.NoError(t, err)
	assert.True(t, ok)

	clock.Advance(61 * time.Minute)
	_, err = s.Get(ctx, key("session:1"))
	assert.ErrorIs(t, err, store.ErrNotFound)

	purged, err := s.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, purged, int64(1))
}

func TestPostgresStore_ListPushRangeTrim(t *testing.T) {
	s, _, key := openTestStore(t)
	ctx := context.Background()
	list := key("activity:u1")

	empty, err := s.Range(ctx, list, 0, -1)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for i := 1; i <= 5; i++ {
		n, err := s.Push(ctx, list, []byte(fmt.Sprintf("e%d", i)))
		require.NoError(t, err)
		assert.Equal(t, int64(i), n)
	}

	all, err := s.Range(ctx, list, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("e5"), []byte("e4"), []byte("e3"), []byte("e2"), []byte("e1")}, all)

	tail, err := s.Range(ctx, list, -2, -1)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("e2"), []byte("e1")}, tail)

	require.NoError(t, s.Trim(ctx, list, 0, 2))
	kept, err := s.Range(ctx, list, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("e5"), []byte("e4"), []byte("e3")}, kept)

	require.NoError(t, s.Set(ctx, key("plain"), []byte("x"), 0))
	_, err = s.Push(ctx, key("plain"), []byte("y"))
	assert.ErrorIs(t, err, store.ErrWrongType)
}

func TestPostgresStore_PushTrimNeverExceedsCapacity(t *testing.T) {
	const capacity = 50
	s, _, key := openTestStore(t)
	ctx := context.Background()
	list := key("activity:u1")

	for i := 0; i < 2*capacity; i++ {
		_, err := s.Push(ctx, list, []byte(fmt.Sprintf("e%d", i)))
		require.NoError(t, err)
		require.NoError(t, s.Trim(ctx, list, 0, capacity-1))
	}

	items, err := s.Range(ctx, list, 0, -1)
	require.NoError(t, err)
	require.Len(t, items, capacity)
	assert.Equal(t, []byte(fmt.Sprintf("e%d", 2*capacity-1)), items[0])
	assert.Equal(t, []byte(fmt.Sprintf("e%d", capacity)), items[capacity-1])
}

func TestPostgresStore_ExpireRefreshesList(t *testing.T) {
	s, clock, key := openTestStore(t)
	ctx := context.Background()
	list := key("events:s1")

	_, err := s.Push(ctx, list, []byte("a"))
	require.NoError(t, err)
	require.NoError(t, s.Expire(ctx, list, time.Hour))

	clock.Advance(50 * time.Minute)
	require.NoError(t, s.Expire(ctx, list, time.Hour))
	clock.Advance(50 * time.Minute)

	items, err := s.Range(ctx, list, 0, -1)
	require.NoError(t, err)
	assert.Len(t, items, 1, "refreshed ttl should keep the list alive")

	clock.Advance(2 * time.Hour)
	items, err = s.Range(ctx, list, 0, -1)
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, s.Delete(ctx, list))
	ok, err := s.Exists(ctx, list)
	require.NoError(t, err)
	assert.False(t, ok)
}
