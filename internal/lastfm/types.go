package lastfm

import (
	"bytes"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/justestif/go-aureum/internal/catalog"
)

// image is one entry of a Last.fm image list, ordered small to extralarge.
type image struct {
	URL  string `json:"#text"`
	Size string `json:"size"`
}

// artistRef is the object form of an artist used by getSimilar and geo charts.
type artistRef struct {
	Name string `json:"name"`
	MBID string `json:"mbid"`
}

// flexInt accepts both JSON numbers and numeric strings; Last.fm uses either
// depending on the method.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(string(b))
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexInt(n)
	return nil
}

// searchTrack is a track.search match. The artist is a plain string here.
type searchTrack struct {
	Name   string  `json:"name"`
	Artist string  `json:"artist"`
	MBID   string  `json:"mbid"`
	Image  []image `json:"image"`
}

func (t searchTrack) toTrack() catalog.Track {
	return buildTrack(t.MBID, t.Name, t.Artist, t.Image, 0)
}

// chartTrack is the track shape shared by track.getSimilar and geo.getTopTracks.
type chartTrack struct {
	Name     string    `json:"name"`
	MBID     string    `json:"mbid"`
	Duration flexInt   `json:"duration"`
	Artist   artistRef `json:"artist"`
	Image    []image   `json:"image"`
}

func (t chartTrack) toTrack() catalog.Track {
	return buildTrack(t.MBID, t.Name, t.Artist.Name, t.Image, int(t.Duration))
}

// searchResponse is the JSON response for track.search.
type searchResponse struct {
	Results struct {
		TrackMatches struct {
			Track []searchTrack `json:"track"`
		} `json:"trackmatches"`
	} `json:"results"`
}

// similarResponse is the JSON response for track.getSimilar.
type similarResponse struct {
	SimilarTracks struct {
		Track []chartTrack `json:"track"`
	} `json:"similartracks"`
}

// geoTopTracksResponse is the JSON response for geo.getTopTracks.
type geoTopTracksResponse struct {
	Tracks struct {
		Track []chartTrack `json:"track"`
	} `json:"tracks"`
}

// apiError represents a Last.fm API error response.
type apiError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

func buildTrack(mbid, title, artist string, images []image, seconds int) catalog.Track {
	thumbs := make([]catalog.Thumbnail, len(images))
	for i, img := range images {
		thumbs[i] = catalog.Thumbnail{URL: img.URL}
	}

	t := catalog.Track{
		ID:              TrackID(mbid, artist, title),
		Title:           title,
		Artists:         artist,
		Thumbnail:       catalog.BestThumbnail(thumbs),
		DurationSeconds: seconds,
	}
	if seconds > 0 {
		t.Duration = catalog.FormatDuration(time.Duration(seconds) * time.Second)
	}
	return t
}

// TrackID returns the MusicBrainz id when known. Otherwise it encodes artist
// and title as "artist/title" with both parts path-escaped, so the id can be
// fed back into ContinuationPlaylist.
func TrackID(mbid, artist, title string) string {
	if mbid != "" {
		return mbid
	}
	return url.PathEscape(artist) + "/" + url.PathEscape(title)
}

// SplitTrackID reverses TrackID for ids that are not MusicBrainz ids.
func SplitTrackID(id string) (artist, title string, ok bool) {
	a, t, found := strings.Cut(id, "/")
	if !found {
		return "", "", false
	}
	artist, err := url.PathUnescape(a)
	if err != nil {
		return "", "", false
	}
	title, err = url.PathUnescape(t)
	if err != nil {
		return "", "", false
	}
	if artist == "" || title == "" {
		return "", "", false
	}
	return artist, title, true
}

// CountryName maps an ISO 3166-1 alpha-2 code to the English country name
// geo.getTopTracks expects.
func CountryName(regionCode string) (string, error) {
	region, err := language.ParseRegion(strings.ToUpper(strings.TrimSpace(regionCode)))
	if err != nil {
		return "", fmt.Errorf("parsing region %q: %w", regionCode, err)
	}
	name := display.English.Regions().Name(region)
	if name == "" {
		return "", fmt.Errorf("no country name for region %q", regionCode)
	}
	return name, nil
}
