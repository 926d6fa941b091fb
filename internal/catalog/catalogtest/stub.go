// Package catalogtest provides a programmable Catalog for tests.
package catalogtest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/justestif/go-aureum/internal/catalog"
)

// Stub implements catalog.Catalog from fixed tables. Unknown inputs answer
// catalog.ErrEmpty. Configure it before use; it is safe for concurrent calls
// afterwards.
type Stub struct {
	// SearchResults maps a query to its tracks.
	SearchResults map[string][]catalog.Track
	// SearchErr, when set, fails every search.
	SearchErr error
	// Continuations maps a seed track id to its continuation.
	Continuations map[string][]catalog.Track
	// ContinuationErr, when set, fails every continuation.
	ContinuationErr error
	// Charts maps a region code to its chart tracks.
	Charts map[string][]catalog.Track
	// ChartsErr, when set, fails every charts call.
	ChartsErr error
	// PanicOn names a method ("search", "continuation", "charts") that panics.
	PanicOn string

	SearchCalls       atomic.Int32
	ContinuationCalls atomic.Int32
	ChartsCalls       atomic.Int32

	mu      sync.Mutex
	queries []string
	seeds   []string
	regions []string
}

// New returns an empty Stub.
func New() *Stub {
	return &Stub{
		SearchResults: make(map[string][]catalog.Track),
		Continuations: make(map[string][]catalog.Track),
		Charts:        make(map[string][]catalog.Track),
	}
}

func (s *Stub) Search(ctx context.Context, query string, limit int) ([]catalog.Track, error) {
	s.SearchCalls.Add(1)
	s.record(&s.queries, query)
	if s.PanicOn == "search" {
		panic("catalogtest: search")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.SearchErr != nil {
		return nil, s.SearchErr
	}
	tracks, ok := s.SearchResults[query]
	if !ok || len(tracks) == 0 {
		return nil, catalog.ErrEmpty
	}
	if limit > 0 && len(tracks) > limit {
		tracks = tracks[:limit]
	}
	return append([]catalog.Track(nil), tracks...), nil
}

func (s *Stub) ContinuationPlaylist(ctx context.Context, seedTrackID string, _ bool) ([]catalog.Track, error) {
	s.ContinuationCalls.Add(1)
	s.record(&s.seeds, seedTrackID)
	if s.PanicOn == "continuation" {
		panic("catalogtest: continuation")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.ContinuationErr != nil {
		return nil, s.ContinuationErr
	}
	tracks, ok := s.Continuations[seedTrackID]
	if !ok || len(tracks) == 0 {
		return nil, catalog.ErrEmpty
	}
	return append([]catalog.Track(nil), tracks...), nil
}

func (s *Stub) RegionalCharts(ctx context.Context, regionCode string) (catalog.Charts, error) {
	s.ChartsCalls.Add(1)
	s.record(&s.regions, regionCode)
	if s.PanicOn == "charts" {
		panic("catalogtest: charts")
	}
	if err := ctx.Err(); err != nil {
		return catalog.Charts{}, err
	}
	if s.ChartsErr != nil {
		return catalog.Charts{}, s.ChartsErr
	}
	tracks, ok := s.Charts[regionCode]
	if !ok || len(tracks) == 0 {
		return catalog.Charts{}, catalog.ErrEmpty
	}
	return catalog.Charts{Region: regionCode, Tracks: append([]catalog.Track(nil), tracks...)}, nil
}

// Queries returns every search query seen, in call order.
func (s *Stub) Queries() []string { return s.snapshot(s.queries) }

// Seeds returns every continuation seed seen, in call order.
func (s *Stub) Seeds() []string { return s.snapshot(s.seeds) }

// Regions returns every charts region seen, in call order.
func (s *Stub) Regions() []string { return s.snapshot(s.regions) }

func (s *Stub) record(dst *[]string, v string) {
	s.mu.Lock()
	*dst = append(*dst, v)
	s.mu.Unlock()
}

func (s *Stub) snapshot(src []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), src...)
}

// Tracks builds n tracks with ids prefix-1..prefix-n by the given artist.
func Tracks(prefix, artist string, n int) []catalog.Track {
	out := make([]catalog.Track, n)
	for i := range out {
		out[i] = catalog.Track{
			ID:              fmt.Sprintf("%s-%d", prefix, i+1),
			Title:           fmt.Sprintf("%s song %d", prefix, i+1),
			Artists:         artist,
			Duration:        "3:30",
			DurationSeconds: 210,
		}
	}
	return out
}

var _ catalog.Catalog = (*Stub)(nil)
