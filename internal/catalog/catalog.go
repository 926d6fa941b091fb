// Package catalog defines the upstream music catalog contract (search,
// continuation radio, regional charts) and the decorators that make a
// provider safe to call from request paths.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Sentinel errors. Providers wrap these so callers can fall through to the
// next candidate source with errors.Is.
var (
	// ErrUnavailable means the provider could not be reached, failed, or is
	// short-circuited by the breaker.
	ErrUnavailable = errors.New("catalog: provider unavailable")

	// ErrEmpty means the provider answered but had nothing to offer.
	ErrEmpty = errors.New("catalog: no results")
)

// Track is a playable catalog entry.
type Track struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Artists         string `json:"artists"`
	Album           string `json:"album,omitempty"`
	Thumbnail       string `json:"thumbnail,omitempty"`
	Duration        string `json:"duration,omitempty"`
	DurationSeconds int    `json:"duration_seconds"`
}

// Charts is the top-tracks listing for one region.
type Charts struct {
	Region string  `json:"region"`
	Tracks []Track `json:"tracks"`
}

// Catalog is the upstream music provider.
type Catalog interface {
	// Search returns up to limit tracks matching query.
	Search(ctx context.Context, query string, limit int) ([]Track, error)

	// ContinuationPlaylist returns tracks that follow the seed. With radio set
	// the provider may reach further from the seed than a plain queue would.
	ContinuationPlaylist(ctx context.Context, seedTrackID string, radio bool) ([]Track, error)

	// RegionalCharts returns the top tracks for an ISO 3166-1 alpha-2 region.
	RegionalCharts(ctx context.Context, regionCode string) (Charts, error)
}

// Thumbnail is an image candidate as reported by a provider, smallest first.
type Thumbnail struct {
	URL    string
	Width  int
	Height int
}

// BestThumbnail returns the URL of the last thumbnail, which providers list
// in ascending size order.
func BestThumbnail(thumbs []Thumbnail) string {
	for i := len(thumbs) - 1; i >= 0; i-- {
		if thumbs[i].URL != "" {
			return thumbs[i].URL
		}
	}
	return ""
}

// JoinArtists joins artist names the way they are displayed to clients.
func JoinArtists(names []string) string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return strings.Join(out, ", ")
}

// ParseDuration converts "m:ss" or "h:mm:ss" into seconds. Anything else,
// including malformed parts, yields 0.
func ParseDuration(s string) int {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0
	}

	total := 0
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0
		}
		total = total*60 + n
	}
	return total
}

// FormatDuration renders d as "m:ss", or "h:mm:ss" from one hour up.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d.Round(time.Second) / time.Second)
	h, m, s := secs/3600, (secs%3600)/60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// Unavailable is a Catalog with no provider configured.
type Unavailable struct{}

func (Unavailable) Search(context.Context, string, int) ([]Track, error) {
	return nil, ErrUnavailable
}

func (Unavailable) ContinuationPlaylist(context.Context, string, bool) ([]Track, error) {
	return nil, ErrUnavailable
}

func (Unavailable) RegionalCharts(context.Context, string) (Charts, error) {
	return Charts{}, ErrUnavailable
}

var _ Catalog = Unavailable{}
