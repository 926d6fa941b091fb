package activity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// SchemaVersion is written into every stored record as "v".
const SchemaVersion = 1

// ErrMalformedEntry is returned when a stored record cannot be decoded or
// carries an unknown schema version.
var ErrMalformedEntry = errors.New("activity: malformed entry")

// EventType is the kind of client playback action.
type EventType string

const (
	EventPlay    EventType = "play"
	EventPause   EventType = "pause"
	EventSkip    EventType = "skip"
	EventLike    EventType = "like"
	EventDislike EventType = "dislike"
	EventOther   EventType = "other"
)

// ParseEventType normalises s. Unknown names map to EventOther.
func ParseEventType(s string) EventType {
	switch t := EventType(strings.ToLower(strings.TrimSpace(s))); t {
	case EventPlay, EventPause, EventSkip, EventLike, EventDislike:
		return t
	default:
		return EventOther
	}
}

// Entry is the compact per-user activity summary.
type Entry struct {
	Version   int       `json:"v"`
	TrackID   string    `json:"track_id"`
	EventType EventType `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Artist    string    `json:"artist,omitempty"`
	Title     string    `json:"title,omitempty"`
	Thumbnail string    `json:"thumbnail,omitempty"`
}

// Event is one record of a session's event log.
type Event struct {
	Version   int            `json:"v"`
	SessionID string         `json:"session_id"`
	EventType EventType      `json:"event_type"`
	TrackID   string         `json:"track_id,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Session is the stored session record.
type Session struct {
	Version    int            `json:"v"`
	ID         string         `json:"session_id"`
	UserID     string         `json:"user_id,omitempty"`
	DeviceInfo map[string]any `json:"device_info,omitempty"`
	Location   string         `json:"location,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// DecodeEntry parses one activity list element.
func DecodeEntry(b []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return Entry{}, fmt.Errorf("%w: %w", ErrMalformedEntry, err)
	}
	if e.Version != SchemaVersion {
		return Entry{}, fmt.Errorf("%w: schema version %d", ErrMalformedEntry, e.Version)
	}
	if e.TrackID == "" {
		return Entry{}, fmt.Errorf("%w: missing track_id", ErrMalformedEntry)
	}
	e.EventType = ParseEventType(string(e.EventType))
	return e, nil
}

// DecodeEvent parses one session event log element.
func DecodeEvent(b []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrMalformedEntry, err)
	}
	if e.Version != SchemaVersion {
		return Event{}, fmt.Errorf("%w: schema version %d", ErrMalformedEntry, e.Version)
	}
	return e, nil
}

func decodeSession(b []byte) (Session, error) {
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrMalformedEntry, err)
	}
	if s.Version != SchemaVersion || s.ID == "" {
		return Session{}, fmt.Errorf("%w: session record", ErrMalformedEntry)
	}
	return s, nil
}
