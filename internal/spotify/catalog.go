package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/zmb3/spotify/v2"

	"github.com/justestif/go-aureum/internal/catalog"
)

const (
	maxSearchLimit = 50
	radioLimit     = 50
	queueLimit     = 20
	toplistsID     = "toplists"
)

// Search finds tracks by free text.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]catalog.Track, error) {
	opts := []spotify.RequestOption{spotify.Limit(clampLimit(limit))}
	if c.market != "" {
		opts = append(opts, spotify.Market(c.market))
	}

	res, err := c.api.Search(ctx, query, spotify.SearchTypeTrack, opts...)
	if err != nil {
		return nil, classify("searching tracks", err)
	}
	if res.Tracks == nil {
		return nil, catalog.ErrEmpty
	}

	tracks := make([]catalog.Track, 0, len(res.Tracks.Tracks))
	for i := range res.Tracks.Tracks {
		tracks = append(tracks, fromFullTrack(&res.Tracks.Tracks[i]))
	}
	return nonEmpty(tracks)
}

// ContinuationPlaylist asks the recommendations endpoint for tracks seeded
// by one track. Radio asks for a longer list.
func (c *Client) ContinuationPlaylist(ctx context.Context, seedTrackID string, radio bool) ([]catalog.Track, error) {
	limit := queueLimit
	if radio {
		limit = radioLimit
	}
	seeds := spotify.Seeds{Tracks: []spotify.ID{spotify.ID(seedTrackID)}}
	opts := []spotify.RequestOption{spotify.Limit(limit)}
	if c.market != "" {
		opts = append(opts, spotify.Market(c.market))
	}

	recs, err := c.api.GetRecommendations(ctx, seeds, nil, opts...)
	if err != nil {
		return nil, classify("fetching recommendations", err)
	}

	tracks := make([]catalog.Track, 0, len(recs.Tracks))
	for i := range recs.Tracks {
		if recs.Tracks[i].ID.String() == seedTrackID {
			continue
		}
		tracks = append(tracks, fromSimpleTrack(&recs.Tracks[i]))
	}
	return nonEmpty(tracks)
}

// RegionalCharts reads the first playlist of the "toplists" browse category
// for the region, which Spotify curates as that country's Top 50.
func (c *Client) RegionalCharts(ctx context.Context, regionCode string) (catalog.Charts, error) {
	page, err := c.api.GetCategoryPlaylists(ctx, toplistsID, spotify.Country(regionCode), spotify.Limit(1))
	if err != nil {
		return catalog.Charts{}, classify("fetching toplists", err)
	}
	if len(page.Playlists) == 0 {
		return catalog.Charts{}, catalog.ErrEmpty
	}

	items, err := c.api.GetPlaylistItems(ctx, page.Playlists[0].ID, spotify.Limit(radioLimit))
	if err != nil {
		return catalog.Charts{}, classify("fetching toplist items", err)
	}

	tracks := make([]catalog.Track, 0, len(items.Items))
	for _, item := range items.Items {
		if item.Track.Track == nil || item.Track.Track.ID == "" {
			continue // episodes and local files
		}
		tracks = append(tracks, fromFullTrack(item.Track.Track))
	}
	tracks, err = nonEmpty(tracks)
	if err != nil {
		return catalog.Charts{}, err
	}
	return catalog.Charts{Region: regionCode, Tracks: tracks}, nil
}

// fromFullTrack converts a Spotify FullTrack to a catalog track.
func fromFullTrack(t *spotify.FullTrack) catalog.Track {
	tr := fromSimpleTrack(&t.SimpleTrack)
	tr.Album = t.Album.Name
	tr.Thumbnail = bestImage(t.Album.Images)
	return tr
}

// fromSimpleTrack converts a Spotify SimpleTrack to a catalog track.
func fromSimpleTrack(t *spotify.SimpleTrack) catalog.Track {
	names := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		names[i] = a.Name
	}

	d := t.TimeDuration()
	return catalog.Track{
		ID:              t.ID.String(),
		Title:           t.Name,
		Artists:         catalog.JoinArtists(names),
		Album:           t.Album.Name,
		Thumbnail:       bestImage(t.Album.Images),
		Duration:        catalog.FormatDuration(d),
		DurationSeconds: int(d.Seconds()),
	}
}

// bestImage picks the largest image. Spotify lists album art widest first.
func bestImage(images []spotify.Image) string {
	thumbs := make([]catalog.Thumbnail, len(images))
	for i, img := range images {
		// Reverse so the widest lands last, as BestThumbnail expects.
		thumbs[len(images)-1-i] = catalog.Thumbnail{URL: img.URL}
	}
	return catalog.BestThumbnail(thumbs)
}

// classify maps API failures onto the catalog sentinels.
func classify(action string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr spotify.Error
	if errors.As(err, &apiErr) && (apiErr.Status == http.StatusNotFound || apiErr.Status == http.StatusBadRequest) {
		return fmt.Errorf("%s: %w: %w", action, catalog.ErrEmpty, err)
	}
	return fmt.Errorf("%s: %w: %w", action, catalog.ErrUnavailable, err)
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 20
	case limit > maxSearchLimit:
		return maxSearchLimit
	default:
		return limit
	}
}

func nonEmpty(tracks []catalog.Track) ([]catalog.Track, error) {
	if len(tracks) == 0 {
		return nil, catalog.ErrEmpty
	}
	return tracks, nil
}

var _ catalog.Catalog = (*Client)(nil)
