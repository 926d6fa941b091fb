package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/justestif/go-aureum/internal/metrics"
)

// BreakerSettings tunes the circuit breaker around a provider.
type BreakerSettings struct {
	Name string
	// MaxRequests is how many probes are let through while half-open.
	MaxRequests uint32
	// Interval resets the failure counts while closed.
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
}

// DefaultBreakerSettings returns settings suited to a remote HTTP provider.
func DefaultBreakerSettings(name string) BreakerSettings {
	return BreakerSettings{
		Name:                name,
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// Breaker short-circuits calls to a failing provider so request paths fall
// through to the next candidate source without waiting on timeouts.
type Breaker struct {
	next Catalog
	cb   *gobreaker.CircuitBreaker[any]
}

// NewBreaker wraps next with a circuit breaker.
func NewBreaker(next Catalog, st BreakerSettings, log zerolog.Logger) *Breaker {
	metrics.BreakerState.WithLabelValues(st.Name).Set(stateValue(gobreaker.StateClosed))

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        st.Name,
		MaxRequests: st.MaxRequests,
		Interval:    st.Interval,
		Timeout:     st.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= st.ConsecutiveFailures
		},
		// An empty answer or a caller giving up says nothing about provider health.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrEmpty) ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("catalog breaker state change")
			metrics.BreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})

	return &Breaker{next: next, cb: cb}
}

// State returns the current breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

func (b *Breaker) Search(ctx context.Context, query string, limit int) ([]Track, error) {
	res, err := b.execute(func() (any, error) {
		return b.next.Search(ctx, query, limit)
	})
	if err != nil {
		return nil, err
	}
	tracks, _ := res.([]Track)
	return tracks, nil
}

func (b *Breaker) ContinuationPlaylist(ctx context.Context, seedTrackID string, radio bool) ([]Track, error) {
	res, err := b.execute(func() (any, error) {
		return b.next.ContinuationPlaylist(ctx, seedTrackID, radio)
	})
	if err != nil {
		return nil, err
	}
	tracks, _ := res.([]Track)
	return tracks, nil
}

func (b *Breaker) RegionalCharts(ctx context.Context, regionCode string) (Charts, error) {
	res, err := b.execute(func() (any, error) {
		return b.next.RegionalCharts(ctx, regionCode)
	})
	if err != nil {
		return Charts{}, err
	}
	charts, _ := res.(Charts)
	return charts, nil
}

func (b *Breaker) execute(fn func() (any, error)) (any, error) {
	res, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return res, err
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

var _ Catalog = (*Breaker)(nil)
