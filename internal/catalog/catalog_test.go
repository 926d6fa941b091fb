package catalog

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"3:45", 225},
		{"0:07", 7},
		{"1:02:03", 3723},
		{" 4:00 ", 240},
		{"", 0},
		{"245", 0},
		{"a:bc", 0},
		{"1:2:3:4", 0},
		{"-1:30", 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseDuration(tt.in); got != tt.want {
				t.Errorf("ParseDuration(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{225 * time.Second, "3:45"},
		{7 * time.Second, "0:07"},
		{3723 * time.Second, "1:02:03"},
		{1500 * time.Millisecond, "0:02"},
		{-time.Second, "0:00"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatDuration(tt.in); got != tt.want {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	for _, secs := range []int{0, 59, 60, 599, 3599, 3600, 7322} {
		d := time.Duration(secs) * time.Second
		if got := ParseDuration(FormatDuration(d)); got != secs {
			t.Errorf("ParseDuration(FormatDuration(%ds)) = %d", secs, got)
		}
	}
}

func TestBestThumbnail(t *testing.T) {
	tests := []struct {
		name   string
		thumbs []Thumbnail
		want   string
	}{
		{"none", nil, ""},
		{"last wins", []Thumbnail{{URL: "small"}, {URL: "medium"}, {URL: "large"}}, "large"},
		{"skips empty tail", []Thumbnail{{URL: "small"}, {URL: ""}}, "small"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BestThumbnail(tt.thumbs); got != tt.want {
				t.Errorf("BestThumbnail() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestJoinArtists(t *testing.T) {
	got := JoinArtists([]string{"Daft Punk", " ", "Pharrell Williams "})
	if want := "Daft Punk, Pharrell Williams"; got != want {
		t.Errorf("JoinArtists() = %q, want %q", got, want)
	}
}

func TestUnavailable(t *testing.T) {
	ctx := context.Background()
	var c Catalog = Unavailable{}

	if _, err := c.Search(ctx, "x", 5); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Search() error = %v, want ErrUnavailable", err)
	}
	if _, err := c.ContinuationPlaylist(ctx, "x", true); !errors.Is(err, ErrUnavailable) {
		t.Errorf("ContinuationPlaylist() error = %v, want ErrUnavailable", err)
	}
	if _, err := c.RegionalCharts(ctx, "IN"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("RegionalCharts() error = %v, want ErrUnavailable", err)
	}
}
