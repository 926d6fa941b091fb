// Package lastfm provides a Last.fm backed music catalog: track search,
// similar-track radio and per-country charts.
package lastfm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/justestif/go-aureum/internal/catalog"
)

const (
	baseURL   = "http://ws.audioscrobbler.com/2.0/"
	userAgent = "aureum/1.0"
)

// Last.fm API error codes.
const (
	errCodeInvalidParams = 6
	errCodeInvalidAPIKey = 10
	errCodeRateLimited   = 29
)

// Sentinel errors.
var (
	// ErrRateLimited is returned when the API rate limit is exceeded after retries.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInvalidAPIKey is returned when the API key is invalid.
	ErrInvalidAPIKey = errors.New("invalid API key")

	// errNotFound marks an API answer of "no such track/artist".
	errNotFound = errors.New("not found")
)

// Config holds Last.fm API configuration.
type Config struct {
	APIKey  string
	Timeout time.Duration
}

// Client is a Last.fm API client implementing catalog.Catalog.
type Client struct {
	apiKey      string
	httpClient  *http.Client
	baseURL     string
	retryDelays []time.Duration
}

// NewClient creates a new Last.fm API client from the provided configuration.
func NewClient(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		apiKey: cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:     baseURL,
		retryDelays: []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
	}
}

// Search finds tracks by free text.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]catalog.Track, error) {
	params := url.Values{
		"method": {"track.search"},
		"track":  {query},
		"limit":  {fmt.Sprint(clampLimit(limit))},
	}

	var resp searchResponse
	if err := c.call(ctx, params, &resp); err != nil {
		return nil, fmt.Errorf("searching tracks: %w", err)
	}

	tracks := make([]catalog.Track, 0, len(resp.Results.TrackMatches.Track))
	for _, t := range resp.Results.TrackMatches.Track {
		tracks = append(tracks, t.toTrack())
	}
	return nonEmpty(tracks)
}

// ContinuationPlaylist returns tracks similar to the seed. The seed is either
// a MusicBrainz id or an id produced by this client for an unidentified
// track.
func (c *Client) ContinuationPlaylist(ctx context.Context, seedTrackID string, radio bool) ([]catalog.Track, error) {
	limit := 25
	if radio {
		limit = 50
	}
	params := url.Values{
		"method":      {"track.getSimilar"},
		"autocorrect": {"1"},
		"limit":       {fmt.Sprint(limit)},
	}
	if artist, title, ok := SplitTrackID(seedTrackID); ok {
		params.Set("artist", artist)
		params.Set("track", title)
	} else {
		params.Set("mbid", seedTrackID)
	}

	var resp similarResponse
	if err := c.call(ctx, params, &resp); err != nil {
		return nil, fmt.Errorf("fetching similar tracks: %w", err)
	}

	tracks := make([]catalog.Track, 0, len(resp.SimilarTracks.Track))
	for _, t := range resp.SimilarTracks.Track {
		if tr := t.toTrack(); tr.ID != seedTrackID {
			tracks = append(tracks, tr)
		}
	}
	return nonEmpty(tracks)
}

// RegionalCharts returns the most played tracks in a country.
func (c *Client) RegionalCharts(ctx context.Context, regionCode string) (catalog.Charts, error) {
	country, err := CountryName(regionCode)
	if err != nil {
		return catalog.Charts{}, fmt.Errorf("%w: %w", catalog.ErrEmpty, err)
	}

	params := url.Values{
		"method":  {"geo.getTopTracks"},
		"country": {country},
		"limit":   {"50"},
	}

	var resp geoTopTracksResponse
	if err := c.call(ctx, params, &resp); err != nil {
		return catalog.Charts{}, fmt.Errorf("fetching charts for %s: %w", regionCode, err)
	}

	tracks := make([]catalog.Track, 0, len(resp.Tracks.Track))
	for _, t := range resp.Tracks.Track {
		tracks = append(tracks, t.toTrack())
	}
	tracks, err = nonEmpty(tracks)
	if err != nil {
		return catalog.Charts{}, err
	}
	return catalog.Charts{Region: regionCode, Tracks: tracks}, nil
}

// call performs one API method and decodes the answer into dst, mapping
// failures onto the catalog sentinels.
func (c *Client) call(ctx context.Context, params url.Values, dst any) error {
	params.Set("format", "json")
	params.Set("api_key", c.apiKey)

	body, err := c.doRequest(ctx, params)
	switch {
	case errors.Is(err, errNotFound):
		return fmt.Errorf("%w: %w", catalog.ErrEmpty, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case err != nil:
		return fmt.Errorf("%w: %w", catalog.ErrUnavailable, err)
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: parsing response: %w", catalog.ErrUnavailable, err)
	}
	return nil
}

// doRequest performs an HTTP GET request with retry on rate limit.
// Retries once per configured delay (1s, 2s, 4s by default).
func (c *Client) doRequest(ctx context.Context, params url.Values) ([]byte, error) {
	reqURL := c.baseURL + "?" + params.Encode()

	var lastErr error
	for attempt := 0; attempt <= len(c.retryDelays); attempt++ {
		// Wait before retry (skip on first attempt)
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelays[attempt-1]):
			}
		}

		body, err := c.doSingleRequest(ctx, reqURL)
		if err == nil {
			return body, nil
		}

		if errors.Is(err, ErrRateLimited) {
			lastErr = err
			continue
		}

		// Non-retryable error
		return nil, err
	}

	return nil, lastErr
}

// doSingleRequest performs a single HTTP request.
func (c *Client) doSingleRequest(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	// Check for API error in response
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != 0 {
		switch apiErr.Error {
		case errCodeRateLimited:
			return nil, ErrRateLimited
		case errCodeInvalidAPIKey:
			return nil, ErrInvalidAPIKey
		case errCodeInvalidParams:
			return nil, fmt.Errorf("%w: %s", errNotFound, apiErr.Message)
		default:
			return nil, fmt.Errorf("API error %d: %s", apiErr.Error, apiErr.Message)
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return body, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 20
	case limit > 100:
		return 100
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
