// Package recommend generates, scores and orders track recommendations.
//
// Candidates come from a priority chain of catalog calls: radio seeded by the
// current track, continuation from the user's most recent play, regional
// charts, and finally a generic keyword search. The first tier with tracks
// wins. A failing tier falls through to the next; a request never fails.
package recommend

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/justestif/go-aureum/internal/activity"
	"github.com/justestif/go-aureum/internal/catalog"
	"github.com/justestif/go-aureum/internal/intent"
	"github.com/justestif/go-aureum/internal/metrics"
)

// Source names the tier that supplied the candidates.
type Source string

const (
	SourceRadio   Source = "radio"
	SourceHistory Source = "history"
	SourceCharts  Source = "charts"
	SourceSearch  Source = "search-fallback"
	SourceError   Source = "error"
)

const (
	DefaultLimit  = 20
	MaxLimit      = 100
	HistoryWindow = 10
	DefaultRegion = "IN"
)

// Fallback search queries, by the tier the request would have used.
const (
	querySimilar  = "similar music"
	queryPopular  = "popular"
	queryTrending = "trending music"
)

// Track is a scored candidate.
type Track struct {
	catalog.Track
	Score  float64 `json:"score"`
	Label  string  `json:"label,omitempty"`
	Source Source  `json:"source"`
}

// Context is echoed back with every result.
type Context struct {
	CurrentArtist string         `json:"current_artist,omitempty"`
	HasHistory    bool           `json:"has_history"`
	HasCurrent    bool           `json:"has_current"`
	Intent        intent.Intent  `json:"intent"`
	Source        Source         `json:"source"`
	DayPart       intent.DayPart `json:"day_part,omitempty"`
	Mood          intent.Mood    `json:"mood,omitempty"`
}

// Request is one recommendation request. All fields are optional.
type Request struct {
	CurrentTrackID string
	// CurrentArtist overrides the artist derived from the seed or history.
	CurrentArtist string
	UserID        string
	SessionID     string
	Limit         int
}

// Result is a ranked recommendation list.
type Result struct {
	Tracks      []Track   `json:"tracks"`
	Context     Context   `json:"context"`
	GeneratedAt time.Time `json:"generated_at"`
}

// ActivityReader reads a user's recent activity, newest first.
type ActivityReader interface {
	Recent(ctx context.Context, userID string, n int) ([]activity.Entry, error)
}

// Engine produces recommendations.
type Engine struct {
	catalog    catalog.Catalog
	activity   ActivityReader
	classifier intent.Classifier
	region     string
	log        zerolog.Logger
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClassifier sets the intent policy. The default is intent.NeutralPolicy.
func WithClassifier(c intent.Classifier) Option {
	return func(e *Engine) {
		if c != nil {
			e.classifier = c
		}
	}
}

// WithRegion sets the charts region code.
func WithRegion(code string) Option {
	return func(e *Engine) {
		if code != "" {
			e.region = code
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an Engine. act may be nil when no activity store is wired.
func New(cat catalog.Catalog, act ActivityReader, opts ...Option) *Engine {
	e := &Engine{
		catalog:    cat,
		activity:   act,
		classifier: intent.NeutralPolicy{},
		region:     DefaultRegion,
		log:        zerolog.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Recommend returns up to req.Limit scored tracks. It never fails: when every
// tier is exhausted the result is empty with source "error".
func (e *Engine) Recommend(ctx context.Context, req Request) (res Result) {
	now := e.now()
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Msg("recommendation failed")
			res = failed(now)
		}
		metrics.CandidateSources.WithLabelValues(string(res.Context.Source)).Inc()
	}()

	limit := clampLimit(req.Limit)
	history := e.history(ctx, req.UserID)
	in := e.classifier.Classify(ctx, req.UserID, req.SessionID)

	cands, source, seedArtist := e.candidates(ctx, req, history, limit)
	if source == SourceError {
		res = failed(now)
		res.Context.HasHistory = len(history) > 0
		res.Context.HasCurrent = req.CurrentTrackID != ""
		return res
	}

	artist := currentArtist(req, seedArtist, cands, source, history)
	if len(cands) > limit {
		cands = cands[:limit]
	}

	tracks := rank(cands, source)
	boost(tracks, in, artist)
	order(tracks)

	return Result{
		Tracks: tracks,
		Context: Context{
			CurrentArtist: artist,
			HasHistory:    len(history) > 0,
			HasCurrent:    req.CurrentTrackID != "",
			Intent:        in,
			Source:        source,
			DayPart:       intent.DayPartAt(now),
			Mood:          intent.MoodOf(history),
		},
		GeneratedAt: now.UTC(),
	}
}

func failed(now time.Time) Result {
	return Result{
		Tracks:      []Track{},
		Context:     Context{Intent: intent.Neutral, Source: SourceError},
		GeneratedAt: now.UTC(),
	}
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLimit
	case n > MaxLimit:
		return MaxLimit
	default:
		return n
	}
}

// history loads the recent activity window. Failures read as no history.
func (e *Engine) history(ctx context.Context, userID string) []activity.Entry {
	if userID == "" || e.activity == nil {
		return nil
	}
	entries, err := e.activity.Recent(ctx, userID, HistoryWindow)
	if err != nil {
		e.log.Debug().Err(err).Str("user_id", userID).Msg("activity unavailable")
		return nil
	}
	return entries
}

// lastPlayed returns the most recent played track, or the most recent entry
// of any kind when nothing was played.
func lastPlayed(history []activity.Entry) string {
	for _, h := range history {
		if h.EventType == activity.EventPlay {
			return h.TrackID
		}
	}
	if len(history) > 0 {
		return history[0].TrackID
	}
	return ""
}

// candidates walks the tier chain and returns the first answer that is
// non-empty once duplicates and the seed are removed. seedArtist is the
// artist the radio tier reported for the seed itself, if any.
func (e *Engine) candidates(ctx context.Context, req Request, history []activity.Entry, limit int) ([]catalog.Track, Source, string) {
	fallbackQuery := queryTrending
	var seedArtist string
	seed := req.CurrentTrackID

	if seed != "" {
		fallbackQuery = querySimilar
		if tracks := e.try(ctx, SourceRadio, seed, func() ([]catalog.Track, error) {
			radio, err := e.catalog.ContinuationPlaylist(ctx, seed, true)
			for _, t := range radio {
				if t.ID == seed && t.Artists != "" {
					seedArtist = t.Artists
					break
				}
			}
			return radio, err
		}); len(tracks) > 0 {
			return tracks, SourceRadio, seedArtist
		}
	}

	if last := lastPlayed(history); last != "" {
		if seed == "" {
			fallbackQuery = queryPopular
		}
		if tracks := e.try(ctx, SourceHistory, seed, func() ([]catalog.Track, error) {
			return e.catalog.ContinuationPlaylist(ctx, last, true)
		}); len(tracks) > 0 {
			return tracks, SourceHistory, ""
		}
	}

	if tracks := e.try(ctx, SourceCharts, seed, func() ([]catalog.Track, error) {
		charts, err := e.catalog.RegionalCharts(ctx, e.region)
		return charts.Tracks, err
	}); len(tracks) > 0 {
		return tracks, SourceCharts, ""
	}

	if tracks := e.try(ctx, SourceSearch, seed, func() ([]catalog.Track, error) {
		return e.catalog.Search(ctx, fallbackQuery, limit)
	}); len(tracks) > 0 {
		return tracks, SourceSearch, ""
	}

	return nil, SourceError, ""
}

// try runs one tier and drops duplicates and the seed from its answer,
// turning panics into a logged miss.
func (e *Engine) try(ctx context.Context, source Source, seedID string, fn func() ([]catalog.Track, error)) (tracks []catalog.Track) {
	if ctx.Err() != nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn().Str("tier", string(source)).Err(fmt.Errorf("panic: %v", r)).Msg("candidate tier panicked")
			tracks = nil
		}
	}()

	tracks, err := fn()
	if err != nil {
		e.log.Debug().Str("tier", string(source)).Err(err).Msg("candidate tier failed")
		return nil
	}
	return dedupe(tracks, seedID)
}

// currentArtist picks the artist that artist-loop boosts match against: the
// request override, then the seed's own entry or the first radio track, then
// the most recent activity entry naming an artist.
func currentArtist(req Request, seedArtist string, cands []catalog.Track, source Source, history []activity.Entry) string {
	if req.CurrentArtist != "" {
		return req.CurrentArtist
	}
	if source == SourceRadio {
		if seedArtist != "" {
			return seedArtist
		}
		if len(cands) > 0 {
			return cands[0].Artists
		}
	}
	for _, h := range history {
		if h.Artist != "" {
			return h.Artist
		}
	}
	return ""
}
