package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/justestif/go-aureum/internal/store"
)

// DefaultCacheTTL is how long provider answers are reused.
const DefaultCacheTTL = 10 * time.Minute

// Cached implements Catalog with volatile-store persistence.
// It checks the store first, then falls back to the wrapped provider for
// misses, saving non-empty answers. Store failures only cost a cache miss.
type Cached struct {
	next  Catalog
	store store.Store
	ttl   time.Duration
	log   zerolog.Logger
}

// NewCached wraps next with a store-backed response cache.
func NewCached(next Catalog, st store.Store, ttl time.Duration, log zerolog.Logger) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{next: next, store: st, ttl: ttl, log: log}
}

func (c *Cached) Search(ctx context.Context, query string, limit int) ([]Track, error) {
	key := cacheKey("search", strings.ToLower(strings.TrimSpace(query)), strconv.Itoa(limit))
	var tracks []Track
	if c.load(ctx, key, &tracks) {
		return tracks, nil
	}

	tracks, err := c.next.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if len(tracks) > 0 {
		c.save(ctx, key, tracks)
	}
	return tracks, nil
}

func (c *Cached) ContinuationPlaylist(ctx context.Context, seedTrackID string, radio bool) ([]Track, error) {
	key := cacheKey("continuation", seedTrackID, strconv.FormatBool(radio))
	var tracks []Track
	if c.load(ctx, key, &tracks) {
		return tracks, nil
	}

	tracks, err := c.next.ContinuationPlaylist(ctx, seedTrackID, radio)
	if err != nil {
		return nil, err
	}
	if len(tracks) > 0 {
		c.save(ctx, key, tracks)
	}
	return tracks, nil
}

func (c *Cached) RegionalCharts(ctx context.Context, regionCode string) (Charts, error) {
	key := cacheKey("charts", strings.ToUpper(regionCode))
	var charts Charts
	if c.load(ctx, key, &charts) {
		return charts, nil
	}

	charts, err := c.next.RegionalCharts(ctx, regionCode)
	if err != nil {
		return Charts{}, err
	}
	if len(charts.Tracks) > 0 {
		c.save(ctx, key, charts)
	}
	return charts, nil
}

func (c *Cached) load(ctx context.Context, key string, dst any) bool {
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.log.Debug().Err(err).Str("key", key).Msg("catalog cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.log.Debug().Err(err).Str("key", key).Msg("discarding undecodable catalog cache entry")
		return false
	}
	return true
}

func (c *Cached) save(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
		c.log.Debug().Err(err).Str("key", key).Msg("catalog cache write failed")
	}
}

// cacheKey hashes the call arguments so arbitrary query text stays a safe key.
func cacheKey(method string, args ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(args, "\x00")))
	return "catalog:" + method + ":" + hex.EncodeToString(sum[:12])
}

var _ Catalog = (*Cached)(nil)
