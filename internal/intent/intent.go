// Package intent derives a coarse listening intent from recent activity.
package intent

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/justestif/go-aureum/internal/activity"
)

// Intent is a coarse behavioral tag that steers recommendation boosts.
type Intent string

const (
	Neutral    Intent = "neutral"
	ArtistLoop Intent = "artist-loop"
	Explore    Intent = "explore"
)

// Classifier resolves the intent for a user or session.
type Classifier interface {
	Classify(ctx context.Context, userID, sessionID string) Intent
}

// NeutralPolicy always answers Neutral.
type NeutralPolicy struct{}

func (NeutralPolicy) Classify(context.Context, string, string) Intent { return Neutral }

// ActivitySource reads a user's recent activity, newest first.
type ActivitySource interface {
	Recent(ctx context.Context, userID string, n int) ([]activity.Entry, error)
}

// Thresholds used by Behavioral.
const (
	DefaultWindow         = 20
	SkipVelocityExplore   = 0.5
	DominantShareLoop     = 0.6
	MinPlaysForArtistLoop = 3
)

// Behavioral classifies from skip velocity and artist repetition in the
// user's recent activity. Without a user or readable activity it answers
// Neutral.
type Behavioral struct {
	source ActivitySource
	window int
	log    zerolog.Logger
}

// NewBehavioral creates a Behavioral classifier reading the last window
// entries from source.
func NewBehavioral(source ActivitySource, window int, log zerolog.Logger) *Behavioral {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Behavioral{source: source, window: window, log: log}
}

func (b *Behavioral) Classify(ctx context.Context, userID, _ string) Intent {
	if userID == "" {
		return Neutral
	}
	entries, err := b.source.Recent(ctx, userID, b.window)
	if err != nil {
		b.log.Debug().Err(err).Str("user_id", userID).Msg("activity unreadable, using neutral intent")
		return Neutral
	}
	return FromSignals(Measure(entries))
}

// Signals summarises an activity window.
// DominantShare is the dominant artist's share of ArtistPlays, the plays
// that name an artist.
type Signals struct {
	Plays          int
	Skips          int
	SkipVelocity   float64
	DominantArtist string
	DominantShare  float64
	ArtistPlays    int
}

// Measure computes Signals over entries.
func Measure(entries []activity.Entry) Signals {
	var s Signals
	counts := make(map[string]int)
	names := make(map[string]string)

	for _, e := range entries {
		switch e.EventType {
		case activity.EventPlay:
			s.Plays++
			if e.Artist == "" {
				continue
			}
			key := strings.ToLower(strings.TrimSpace(e.Artist))
			counts[key]++
			if _, ok := names[key]; !ok {
				names[key] = e.Artist
			}
			s.ArtistPlays++
		case activity.EventSkip:
			s.Skips++
		}
	}

	if total := s.Plays + s.Skips; total > 0 {
		s.SkipVelocity = float64(s.Skips) / float64(total)
	}

	best, bestKey := 0, ""
	for key, n := range counts {
		// Ties resolve to the lexically smaller key so the result is stable.
		if n > best || (n == best && key < bestKey) {
			best, bestKey = n, key
		}
	}
	s.DominantArtist = names[bestKey]
	if s.ArtistPlays > 0 {
		s.DominantShare = float64(best) / float64(s.ArtistPlays)
	}
	return s
}

// FromSignals applies the behavioral rules. Skipping outranks repetition.
func FromSignals(s Signals) Intent {
	switch {
	case s.Plays+s.Skips > 0 && s.SkipVelocity >= SkipVelocityExplore:
		return Explore
	case s.ArtistPlays >= MinPlaysForArtistLoop && s.DominantShare >= DominantShareLoop:
		return ArtistLoop
	default:
		return Neutral
	}
}
