// Package manifest builds offline cache manifests: a small must-cache set
// for eager prefetch and a larger likely-next set for opportunistic prefetch.
package manifest

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/justestif/go-aureum/internal/activity"
	"github.com/justestif/go-aureum/internal/catalog"
	"github.com/justestif/go-aureum/internal/intent"
	"github.com/justestif/go-aureum/internal/metrics"
	"github.com/justestif/go-aureum/internal/recommend"
)

const (
	MustCacheSize  = 5
	LikelyNextSize = 15
	// MinPersonal is the number of played tracks below which must-cache is
	// padded with popular tracks.
	MinPersonal = 3

	NormalTTL  = 24 * time.Hour
	FailureTTL = time.Hour

	trendingQuery = "trending"
)

// PopularBuckets is the fixed genre sample used for anonymous users and for
// padding.
var PopularBuckets = []string{"popular music", "top hits", "bollywood hits"}

// DayPartBuckets are the genre searches used for likely-next when there is
// nothing to continue from.
var DayPartBuckets = map[intent.DayPart][]string{
	intent.Morning:   {"morning acoustic", "feel good pop", "lofi focus"},
	intent.Afternoon: {"upbeat pop", "indie hits", "workout mix"},
	intent.Evening:   {"evening chill", "romantic hits", "retro classics"},
	intent.Night:     {"night lofi", "slow ballads", "sleep ambient"},
}

// Manifest is a prefetch plan.
type Manifest struct {
	MustCache   []catalog.Track `json:"must_cache"`
	LikelyNext  []catalog.Track `json:"likely_next"`
	ExpiresAt   time.Time       `json:"expires_at"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// ActivityReader reads a user's recent activity, newest first.
type ActivityReader interface {
	Recent(ctx context.Context, userID string, n int) ([]activity.Entry, error)
}

// Recommender produces continuation candidates.
type Recommender interface {
	Recommend(ctx context.Context, req recommend.Request) recommend.Result
}

// Generator builds manifests.
type Generator struct {
	catalog  catalog.Catalog
	activity ActivityReader
	engine   Recommender
	log      zerolog.Logger
	now      func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(g *Generator) { g.log = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// New creates a Generator. act and engine may be nil, in which case every
// manifest takes the generic path.
func New(cat catalog.Catalog, act ActivityReader, engine Recommender, opts ...Option) *Generator {
	g := &Generator{
		catalog:  cat,
		activity: act,
		engine:   engine,
		log:      zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate builds the manifest for userID, or a generic one when userID is
// empty. It never fails; when nothing could be produced both lists are
// empty and the manifest expires after FailureTTL.
func (g *Generator) Generate(ctx context.Context, userID string) Manifest {
	now := g.now()
	history := g.history(ctx, userID)

	var must, next []catalog.Track
	var eg errgroup.Group
	eg.Go(func() error {
		var path string
		must, path = g.guard("must_cache", func() ([]catalog.Track, string) {
			return g.mustCache(ctx, userID, history)
		})
		metrics.ManifestPaths.WithLabelValues("must_cache", path).Inc()
		return nil
	})
	eg.Go(func() error {
		var path string
		next, path = g.guard("likely_next", func() ([]catalog.Track, string) {
			return g.likelyNext(ctx, userID, history, now)
		})
		metrics.ManifestPaths.WithLabelValues("likely_next", path).Inc()
		return nil
	})
	_ = eg.Wait()

	next = without(next, must)
	if len(next) > LikelyNextSize {
		next = next[:LikelyNextSize]
	}

	ttl := NormalTTL
	if len(must) == 0 && len(next) == 0 {
		ttl = FailureTTL
	}

	return Manifest{
		MustCache:   nonNil(must),
		LikelyNext:  nonNil(next),
		ExpiresAt:   now.Add(ttl).UTC(),
		GeneratedAt: now.UTC(),
	}
}

// guard runs one half, turning a panic into an empty result.
func (g *Generator) guard(half string, fn func() ([]catalog.Track, string)) (tracks []catalog.Track, path string) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error().Str("half", half).Err(fmt.Errorf("panic: %v", r)).Msg("manifest generation failed")
			tracks, path = nil, "error"
		}
	}()
	return fn()
}

func (g *Generator) history(ctx context.Context, userID string) []activity.Entry {
	if userID == "" || g.activity == nil {
		return nil
	}
	entries, err := g.activity.Recent(ctx, userID, 0)
	if err != nil {
		g.log.Debug().Err(err).Str("user_id", userID).Msg("activity unavailable, using generic manifest")
		return nil
	}
	return entries
}

func (g *Generator) mustCache(ctx context.Context, userID string, history []activity.Entry) ([]catalog.Track, string) {
	if userID == "" {
		return g.popular(ctx), "popular"
	}

	personal := TopPlayed(history, MustCacheSize)
	if len(personal) >= MinPersonal {
		return personal, "personal"
	}

	padded := slices.Concat(personal, without(g.popular(ctx), personal))
	if len(padded) > MustCacheSize {
		padded = padded[:MustCacheSize]
	}
	return padded, "padded"
}

func (g *Generator) popular(ctx context.Context) []catalog.Track {
	tracks := g.searchBuckets(ctx, PopularBuckets, MustCacheSize)
	if len(tracks) > MustCacheSize {
		tracks = tracks[:MustCacheSize]
	}
	return tracks
}

func (g *Generator) likelyNext(ctx context.Context, userID string, history []activity.Entry, now time.Time) ([]catalog.Track, string) {
	if seed := lastPlayed(history); seed != "" && g.engine != nil {
		res := g.engine.Recommend(ctx, recommend.Request{CurrentTrackID: seed, UserID: userID, Limit: LikelyNextSize + MustCacheSize})
		if res.Context.Source == recommend.SourceRadio && len(res.Tracks) > 0 {
			tracks := make([]catalog.Track, len(res.Tracks))
			for i, t := range res.Tracks {
				tracks[i] = t.Track
			}
			return tracks, "continuation"
		}
	}

	if tracks := g.searchBuckets(ctx, DayPartBuckets[intent.DayPartAt(now)], LikelyNextSize); len(tracks) > 0 {
		return tracks, "daypart"
	}

	tracks, err := g.catalog.Search(ctx, trendingQuery, LikelyNextSize+MustCacheSize)
	if err != nil {
		g.log.Debug().Err(err).Msg("trending search failed")
		return nil, "none"
	}
	return dedupe(tracks), "trending"
}

// searchBuckets runs the queries concurrently and interleaves the answers
// round-robin so every bucket is represented near the top.
func (g *Generator) searchBuckets(ctx context.Context, queries []string, limit int) []catalog.Track {
	results := catalog.SearchAll(ctx, g.catalog, queries, limit)

	var lists [][]catalog.Track
	for _, r := range results {
		if r.Error != nil {
			g.log.Debug().Err(r.Error).Str("query", r.Query).Msg("bucket search failed")
			continue
		}
		lists = append(lists, r.Tracks)
	}

	var merged []catalog.Track
	for i := 0; ; i++ {
		added := false
		for _, l := range lists {
			if i < len(l) {
				merged = append(merged, l[i])
				added = true
			}
		}
		if !added {
			break
		}
	}
	return dedupe(merged)
}

// TopPlayed counts play events per track and returns up to k tracks by
// descending count. Ties go to the most recently played track. Metadata
// comes from the newest entry that recorded it.
func TopPlayed(history []activity.Entry, k int) []catalog.Track {
	type tally struct {
		track catalog.Track
		count int
	}
	byID := make(map[string]*tally)
	var tallies []*tally
	for _, e := range history {
		if e.EventType != activity.EventPlay || e.TrackID == "" {
			continue
		}
		t, ok := byID[e.TrackID]
		if !ok {
			t = &tally{track: catalog.Track{ID: e.TrackID}}
			byID[e.TrackID] = t
			tallies = append(tallies, t)
		}
		t.count++
		if t.track.Artists == "" {
			t.track.Artists = e.Artist
		}
		if t.track.Title == "" {
			t.track.Title = e.Title
		}
		if t.track.Thumbnail == "" {
			t.track.Thumbnail = e.Thumbnail
		}
	}

	// tallies is already in most-recent-first order, so a stable sort on
	// count keeps recency as the tie-break.
	slices.SortStableFunc(tallies, func(a, b *tally) int {
		return cmp.Compare(b.count, a.count)
	})

	out := make([]catalog.Track, 0, min(k, len(tallies)))
	for _, t := range tallies {
		if len(out) == k {
			break
		}
		out = append(out, t.track)
	}
	return out
}

func lastPlayed(history []activity.Entry) string {
	for _, e := range history {
		if e.EventType == activity.EventPlay && e.TrackID != "" {
			return e.TrackID
		}
	}
	return ""
}

func dedupe(tracks []catalog.Track) []catalog.Track {
	seen := make(map[string]bool, len(tracks))
	out := make([]catalog.Track, 0, len(tracks))
	for _, t := range tracks {
		if t.ID == "" || seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		out = append(out, t)
	}
	return out
}

// without returns tracks minus any id present in exclude.
func without(tracks, exclude []catalog.Track) []catalog.Track {
	skip := make(map[string]bool, len(exclude))
	for _, t := range exclude {
		skip[t.ID] = true
	}
	out := make([]catalog.Track, 0, len(tracks))
	for _, t := range tracks {
		if !skip[t.ID] {
			out = append(out, t)
		}
	}
	return out
}

func nonNil(tracks []catalog.Track) []catalog.Track {
	if tracks == nil {
		return []catalog.Track{}
	}
	return tracks
}
