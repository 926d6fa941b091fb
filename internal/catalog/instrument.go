package catalog

import (
	"context"
	"time"

	"github.com/justestif/go-aureum/internal/metrics"
)

// Instrumented records call counts and latency for a provider.
type Instrumented struct {
	next     Catalog
	provider string
}

// NewInstrumented wraps next, labelling its metrics with provider.
func NewInstrumented(next Catalog, provider string) *Instrumented {
	return &Instrumented{next: next, provider: provider}
}

func (i *Instrumented) Search(ctx context.Context, query string, limit int) ([]Track, error) {
	start := time.Now()
	tracks, err := i.next.Search(ctx, query, limit)
	metrics.ObserveCatalog(i.provider, "search", start, err)
	return tracks, err
}

func (i *Instrumented) ContinuationPlaylist(ctx context.Context, seedTrackID string, radio bool) ([]Track, error) {
	start := time.Now()
	tracks, err := i.next.ContinuationPlaylist(ctx, seedTrackID, radio)
	metrics.ObserveCatalog(i.provider, "continuation", start, err)
	return tracks, err
}

func (i *Instrumented) RegionalCharts(ctx context.Context, regionCode string) (Charts, error) {
	start := time.Now()
	charts, err := i.next.RegionalCharts(ctx, regionCode)
	metrics.ObserveCatalog(i.provider, "charts", start, err)
	return charts, err
}

var _ Catalog = (*Instrumented)(nil)
