package spotify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zmb3/spotify/v2"

	"github.com/justestif/go-aureum/internal/catalog"
)

func TestFromSimpleTrack(t *testing.T) {
	tests := []struct {
		name         string
		track        spotify.SimpleTrack
		wantArtists  string
		wantDuration string
		wantSeconds  int
	}{
		{
			name: "single artist",
			track: spotify.SimpleTrack{
				ID:       "track123",
				Name:     "Test Song",
				Artists:  []spotify.SimpleArtist{{Name: "Artist One"}},
				Duration: 215000,
			},
			wantArtists:  "Artist One",
			wantDuration: "3:35",
			wantSeconds:  215,
		},
		{
			name: "multiple artists",
			track: spotify.SimpleTrack{
				ID:   "track456",
				Name: "Collab Track",
				Artists: []spotify.SimpleArtist{
					{Name: "Artist A"},
					{Name: "Artist B"},
					{Name: "Artist C"},
				},
				Duration: 3723000,
			},
			wantArtists:  "Artist A, Artist B, Artist C",
			wantDuration: "1:02:03",
			wantSeconds:  3723,
		},
		{
			name: "no artists",
			track: spotify.SimpleTrack{
				ID:   "track789",
				Name: "Orphan",
			},
			wantArtists:  "",
			wantDuration: "0:00",
			wantSeconds:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fromSimpleTrack(&tt.track)

			if got.ID != tt.track.ID.String() {
				t.Errorf("ID = %q, want %q", got.ID, tt.track.ID)
			}
			if got.Title != tt.track.Name {
				t.Errorf("Title = %q, want %q", got.Title, tt.track.Name)
			}
			if got.Artists != tt.wantArtists {
				t.Errorf("Artists = %q, want %q", got.Artists, tt.wantArtists)
			}
			if got.Duration != tt.wantDuration {
				t.Errorf("Duration = %q, want %q", got.Duration, tt.wantDuration)
			}
			if got.DurationSeconds != tt.wantSeconds {
				t.Errorf("DurationSeconds = %d, want %d", got.DurationSeconds, tt.wantSeconds)
			}
		})
	}
}

func TestBestImage(t *testing.T) {
	images := []spotify.Image{
		{URL: "https://i.scdn.co/640"},
		{URL: "https://i.scdn.co/300"},
		{URL: "https://i.scdn.co/64"},
	}
	if got := bestImage(images); got != "https://i.scdn.co/640" {
		t.Errorf("bestImage() = %q, want the 640px image", got)
	}
	if got := bestImage(nil); got != "" {
		t.Errorf("bestImage(nil) = %q, want empty", got)
	}
}

// fakeAPI serves canned Web API responses keyed by path suffix.
func fakeAPI(t *testing.T, routes map[string]string) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for suffix, body := range routes {
			if strings.HasSuffix(r.URL.Path, suffix) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(body))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": {"status": 404, "message": "Not found."}}`))
	}))
	t.Cleanup(server.Close)

	api := spotify.New(server.Client(), spotify.WithBaseURL(server.URL+"/"))
	return New(api)
}

func fullTrack(id, name string) string {
	return `{"id": "` + id + `", "name": "` + name + `", "type": "track", "duration_ms": 200000,` +
		`"artists": [{"name": "Arijit Singh"}],` +
		`"album": {"name": "Brahmastra", "images": [{"url": "https://img/large"}, {"url": "https://img/small"}]}}`
}

func TestSearch(t *testing.T) {
	client := fakeAPI(t, map[string]string{
		"/search": `{"tracks": {"items": [` + fullTrack("t1", "Kesariya") + `,` + fullTrack("t2", "Deva Deva") + `]}}`,
	})

	tracks, err := client.Search(context.Background(), "arijit", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("Search() got %d tracks, want 2", len(tracks))
	}

	got := tracks[0]
	if got.ID != "t1" || got.Title != "Kesariya" || got.Artists != "Arijit Singh" {
		t.Errorf("tracks[0] = %+v", got)
	}
	if got.Album != "Brahmastra" {
		t.Errorf("Album = %q, want Brahmastra", got.Album)
	}
	if got.Thumbnail != "https://img/large" {
		t.Errorf("Thumbnail = %q, want the largest image", got.Thumbnail)
	}
	if got.Duration != "3:20" || got.DurationSeconds != 200 {
		t.Errorf("duration = %q/%d, want 3:20/200", got.Duration, got.DurationSeconds)
	}
}

func TestSearch_Empty(t *testing.T) {
	client := fakeAPI(t, map[string]string{
		"/search": `{"tracks": {"items": []}}`,
	})

	_, err := client.Search(context.Background(), "nothing", 10)
	if !errors.Is(err, catalog.ErrEmpty) {
		t.Errorf("Search() error = %v, want ErrEmpty", err)
	}
}

func TestContinuationPlaylist(t *testing.T) {
	client := fakeAPI(t, map[string]string{
		"/recommendations": `{"tracks": [` +
			`{"id": "seed", "name": "Seed", "artists": [{"name": "A"}], "duration_ms": 1000},` +
			`{"id": "r1", "name": "Next", "artists": [{"name": "B"}], "duration_ms": 180000}` +
			`]}`,
	})

	tracks, err := client.ContinuationPlaylist(context.Background(), "seed", true)
	if err != nil {
		t.Fatalf("ContinuationPlaylist() error = %v", err)
	}
	if len(tracks) != 1 || tracks[0].ID != "r1" {
		t.Fatalf("ContinuationPlaylist() = %+v, want only r1", tracks)
	}
	if tracks[0].Duration != "3:00" {
		t.Errorf("Duration = %q, want 3:00", tracks[0].Duration)
	}
}

func TestRegionalCharts(t *testing.T) {
	client := fakeAPI(t, map[string]string{
		"/browse/categories/toplists/playlists": `{"playlists": {"items": [{"id": "pl1", "name": "Top 50 - India"}]}}`,
		"/playlists/pl1/tracks": `{"items": [` +
			`{"track": ` + fullTrack("c1", "Kesariya") + `},` +
			`{"track": ` + fullTrack("c2", "Apna Bana Le") + `}` +
			`]}`,
	})

	charts, err := client.RegionalCharts(context.Background(), "IN")
	if err != nil {
		t.Fatalf("RegionalCharts() error = %v", err)
	}
	if charts.Region != "IN" {
		t.Errorf("Region = %q, want IN", charts.Region)
	}
	if len(charts.Tracks) != 2 || charts.Tracks[1].ID != "c2" {
		t.Errorf("Tracks = %+v, want c1, c2", charts.Tracks)
	}
}

func TestRegionalCharts_NoPlaylist(t *testing.T) {
	client := fakeAPI(t, map[string]string{
		"/browse/categories/toplists/playlists": `{"playlists": {"items": []}}`,
	})

	_, err := client.RegionalCharts(context.Background(), "ZZ")
	if !errors.Is(err, catalog.ErrEmpty) {
		t.Errorf("RegionalCharts() error = %v, want ErrEmpty", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"not found", spotify.Error{Status: http.StatusNotFound, Message: "Not found."}, catalog.ErrEmpty},
		{"bad request", spotify.Error{Status: http.StatusBadRequest, Message: "invalid id"}, catalog.ErrEmpty},
		{"server error", spotify.Error{Status: http.StatusBadGateway, Message: "Bad gateway."}, catalog.ErrUnavailable},
		{"transport", errors.New("dial tcp: connection refused"), catalog.ErrUnavailable},
		{"cancelled", context.Canceled, context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify("testing", tt.err); !errors.Is(got, tt.want) {
				t.Errorf("classify() = %v, want %v", got, tt.want)
			}
		})
	}
}
