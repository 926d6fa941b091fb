package recommend

import (
	"cmp"
	"slices"
	"strings"

	"github.com/justestif/go-aureum/internal/catalog"
	"github.com/justestif/go-aureum/internal/intent"
)

// Labels assigned by rank before boosts.
const (
	LabelTopPick     = "Top Pick"
	LabelTrending    = "Trending"
	LabelRecommended = "Recommended"
)

// Score steps and boosts.
const (
	RankDecay       = 0.05
	ArtistLoopBoost = 0.3
	ExploreBoost    = 0.2
	trendingMaxRank = 2
)

// BaseScore is 1 - 0.05*rank, floored at zero.
func BaseScore(rank int) float64 {
	return max(0, 1.0-RankDecay*float64(rank))
}

// LabelFor names a rank.
func LabelFor(rank int) string {
	switch {
	case rank == 0:
		return LabelTopPick
	case rank <= trendingMaxRank:
		return LabelTrending
	default:
		return LabelRecommended
	}
}

// rank assigns base scores and labels in candidate order.
func rank(tracks []catalog.Track, source Source) []Track {
	out := make([]Track, len(tracks))
	for i, t := range tracks {
		out[i] = Track{
			Track:  t,
			Score:  BaseScore(i),
			Label:  LabelFor(i),
			Source: source,
		}
	}
	return out
}

// boost applies the additive intent boosts in place.
func boost(tracks []Track, in intent.Intent, currentArtist string) {
	switch in {
	case intent.ArtistLoop:
		needle := strings.ToLower(strings.TrimSpace(currentArtist))
		if needle == "" {
			return
		}
		for i := range tracks {
			if strings.Contains(strings.ToLower(tracks[i].Artists), needle) {
				tracks[i].Score += ArtistLoopBoost
			}
		}
	case intent.Explore:
		seen := make(map[string]bool)
		for i := range tracks {
			a := tracks[i].Artists
			if a == "" || seen[a] {
				continue
			}
			seen[a] = true
			tracks[i].Score += ExploreBoost
		}
	}
}

// order sorts by descending score, keeping candidate order on ties.
func order(tracks []Track) {
	slices.SortStableFunc(tracks, func(a, b Track) int {
		return cmp.Compare(b.Score, a.Score)
	})
}

// dedupe drops repeated ids, empty ids and the seed, keeping first occurrences.
func dedupe(tracks []catalog.Track, seedID string) []catalog.Track {
	seen := make(map[string]bool, len(tracks))
	out := make([]catalog.Track, 0, len(tracks))
	for _, t := range tracks {
		if t.ID == "" || t.ID == seedID || seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		out = append(out, t)
	}
	return out
}
