package catalog

import (
	"context"
	"fmt"
	"sync"
)

// DefaultConcurrency is the number of searches SearchAll runs at once.
const DefaultConcurrency = 4

// SearchResult holds the answer to one query of a batch.
type SearchResult struct {
	Query  string
	Tracks []Track
	Error  error // Non-nil if the search failed
}

type searchAllOptions struct {
	concurrency int
}

// SearchOption configures SearchAll.
type SearchOption func(*searchAllOptions)

// WithConcurrency sets the number of concurrent searches.
func WithConcurrency(n int) SearchOption {
	return func(o *searchAllOptions) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// SearchAll runs one search per query concurrently.
// Results are returned in the same order as queries.
// Individual search errors are captured in SearchResult.Error rather than
// failing the batch.
func SearchAll(ctx context.Context, c Catalog, queries []string, limit int, opts ...SearchOption) []SearchResult {
	if len(queries) == 0 {
		return []SearchResult{}
	}

	o := searchAllOptions{concurrency: DefaultConcurrency}
	for _, opt := range opts {
		opt(&o)
	}

	results := make([]SearchResult, len(queries))

	type workItem struct {
		index int
		query string
	}
	workCh := make(chan workItem, len(queries))
	for i, q := range queries {
		workCh <- workItem{index: i, query: q}
	}
	close(workCh)

	workers := min(o.concurrency, len(queries))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for work := range workCh {
				if err := ctx.Err(); err != nil {
					results[work.index] = SearchResult{Query: work.query, Error: err}
					continue
				}

				tracks, err := searchOne(ctx, c, work.query, limit)
				results[work.index] = SearchResult{Query: work.query, Tracks: tracks, Error: err}
			}
		}()
	}

	wg.Wait()
	return results
}

// searchOne reports a panicking provider as a failed search so one bad query
// cannot take down the batch.
func searchOne(ctx context.Context, c Catalog, query string, limit int) (tracks []Track, err error) {
	defer func() {
		if r := recover(); r != nil {
			tracks, err = nil, fmt.Errorf("%w: search %q panicked: %v", ErrUnavailable, query, r)
		}
	}()
	return c.Search(ctx, query, limit)
}
