package db

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/justestif/go-aureum/internal/store"
)

func TestExpiryAt(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		ttl  time.Duration
		want *time.Time
	}{
		{"no ttl", 0, nil},
		{"negative ttl", -time.Second, nil},
		{"one hour", time.Hour, ptr(now.Add(time.Hour))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := expiryAt(now, tt.ttl)
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("expiryAt() = %v, want nil", *got)
			case tt.want != nil && (got == nil || !got.Equal(*tt.want)):
				t.Errorf("expiryAt() = %v, want %v", got, *tt.want)
			}
		})
	}
}

func TestUnavailable(t *testing.T) {
	cause := errors.New("connection refused")
	err := unavailable("querying value", cause)

	if !errors.Is(err, store.ErrUnavailable) {
		t.Errorf("errors.Is(err, store.ErrUnavailable) = false, want true")
	}
	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(err, cause) = false, want true")
	}
	if !strings.HasPrefix(err.Error(), "querying value: ") {
		t.Errorf("err = %q, want prefix %q", err.Error(), "querying value: ")
	}

	if got := unavailable("pushing", store.ErrWrongType); got != store.ErrWrongType {
		t.Errorf("unavailable(ErrWrongType) = %v, want it unchanged", got)
	}
}

func TestSchema(t *testing.T) {
	joined := strings.Join(schema, "\n")
	for _, table := range []string{"kv_entries", "list_heads", "list_items"} {
		if !strings.Contains(joined, "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("schema missing table %q", table)
		}
	}
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := New(context.Background(), "://not-a-url")
	if err == nil {
		t.Fatal("New() error = nil, want error")
	}
	if !strings.Contains(err.Error(), "parsing database URL") {
		t.Errorf("err = %q, want it to mention parsing", err.Error())
	}
}

func ptr(t time.Time) *time.Time { return &t }
