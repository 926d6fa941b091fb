// Package activity records session lifecycle and per-user listening activity
// in the volatile store.
//
// Writes are fail-open: a broken store is logged and reported through
// Ack.Persisted, never returned to the caller.
package activity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/justestif/go-aureum/internal/store"
)

const (
	// DefaultCapacity bounds each user's activity list.
	DefaultCapacity = 50
	// SessionLogLimit bounds each session's event log.
	SessionLogLimit = 200

	DefaultSessionTTL = 24 * time.Hour
	DefaultEventTTL   = 7 * 24 * time.Hour
)

// StartSessionParams describes a new client session.
type StartSessionParams struct {
	UserID     string
	DeviceInfo map[string]any
	Location   string
}

// RecordEventParams describes one client playback action.
type RecordEventParams struct {
	SessionID string
	EventType EventType
	TrackID   string
	UserID    string
	// Artist, Title and Thumbnail are optional; when empty, the string
	// "artist", "title" and "thumbnail" keys of Payload are used.
	Artist    string
	Title     string
	Thumbnail string
	Payload   map[string]any
}

// Ack is the result of RecordEvent. OK is always true.
type Ack struct {
	OK        bool `json:"ok"`
	Persisted bool `json:"persisted"`
}

// Service reads and writes sessions and activity lists.
type Service struct {
	kv         store.Store
	log        zerolog.Logger
	capacity   int
	sessionTTL time.Duration
	eventTTL   time.Duration
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithCapacity sets the per-user activity list capacity.
func WithCapacity(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithTTLs sets the session record and event log lifetimes.
func WithTTLs(session, event time.Duration) Option {
	return func(s *Service) {
		if session > 0 {
			s.sessionTTL = session
		}
		if event > 0 {
			s.eventTTL = event
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) {
		s.log = l
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Service backed by kv.
func New(kv store.Store, opts ...Option) *Service {
	s := &Service{
		kv:         kv,
		log:        zerolog.Nop(),
		capacity:   DefaultCapacity,
		sessionTTL: DefaultSessionTTL,
		eventTTL:   DefaultEventTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Capacity returns the per-user activity list capacity.
func (s *Service) Capacity() int {
	return s.capacity
}

func sessionKey(id string) string  { return "session:" + id }
func eventsKey(id string) string   { return "events:" + id }
func activityKey(id string) string { return "activity:" + id }

// StartSession creates a session and returns its id. The id is returned even
// when the record could not be stored.
func (s *Service) StartSession(ctx context.Context, p StartSessionParams) string {
	id := uuid.NewString()
	rec := Session{
		Version:    SchemaVersion,
		ID:         id,
		UserID:     strings.TrimSpace(p.UserID),
		DeviceInfo: p.DeviceInfo,
		Location:   p.Location,
		CreatedAt:  s.now().UTC(),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", id).Msg("encoding session record")
		return id
	}
	if err := s.kv.Set(ctx, sessionKey(id), data, s.sessionTTL); err != nil {
		s.log.Warn().Err(err).Str("session_id", id).Msg("session not persisted")
	}
	return id
}

// RecordEvent appends the event to its session log and, when it references
// a track and has an owner, to the owner's activity list.
func (s *Service) RecordEvent(ctx context.Context, p RecordEventParams) Ack {
	sid := strings.TrimSpace(p.SessionID)
	if sid == "" {
		s.log.Debug().Str("event_type", string(p.EventType)).Msg("dropping event without session id")
		return Ack{OK: true}
	}

	et := ParseEventType(string(p.EventType))
	userID := strings.TrimSpace(p.UserID)
	if userID == "" {
		userID = s.sessionOwner(ctx, sid)
	}
	now := s.now().UTC()

	ev := Event{
		Version:   SchemaVersion,
		SessionID: sid,
		EventType: et,
		TrackID:   p.TrackID,
		UserID:    userID,
		Timestamp: now,
		Payload:   p.Payload,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", sid).Msg("dropping unencodable event")
		return Ack{OK: true}
	}

	persisted := true
	if err := s.appendBounded(ctx, eventsKey(sid), data, SessionLogLimit); err != nil {
		s.log.Warn().Err(err).Str("session_id", sid).Msg("session event not persisted")
		persisted = false
	}

	if userID != "" && p.TrackID != "" {
		entry := Entry{
			Version:   SchemaVersion,
			TrackID:   p.TrackID,
			EventType: et,
			Timestamp: now,
			Artist:    detail(p.Artist, p.Payload, "artist"),
			Title:     detail(p.Title, p.Payload, "title"),
			Thumbnail: detail(p.Thumbnail, p.Payload, "thumbnail"),
		}
		data, err := json.Marshal(entry)
		if err == nil {
			err = s.appendBounded(ctx, activityKey(userID), data, s.capacity)
		}
		if err != nil {
			s.log.Warn().Err(err).Str("user_id", userID).Msg("activity entry not persisted")
			persisted = false
		}
	}

	return Ack{OK: true, Persisted: persisted}
}

// appendBounded pushes value, trims the list to limit and refreshes its TTL.
func (s *Service) appendBounded(ctx context.Context, key string, value []byte, limit int) error {
	if _, err := s.kv.Push(ctx, key, value); err != nil {
		return fmt.Errorf("pushing %s: %w", key, err)
	}
	if err := s.kv.Trim(ctx, key, 0, int64(limit)-1); err != nil {
		return fmt.Errorf("trimming %s: %w", key, err)
	}
	if err := s.kv.Expire(ctx, key, s.eventTTL); err != nil {
		return fmt.Errorf("expiring %s: %w", key, err)
	}
	return nil
}

func (s *Service) sessionOwner(ctx context.Context, sessionID string) string {
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return ""
	}
	return sess.UserID
}

// detail returns v, or the string under key in payload.
func detail(v string, payload map[string]any, key string) string {
	if v != "" {
		return v
	}
	if s, ok := payload[key].(string); ok {
		return s
	}
	return ""
}

// Recent returns up to n of the user's most recent entries, newest first.
// n <= 0 or above the capacity reads the whole list. Malformed entries are
// skipped. A missing list is not an error; a broken store is.
func (s *Service) Recent(ctx context.Context, userID string, n int) ([]Entry, error) {
	if userID == "" {
		return nil, nil
	}
	if n <= 0 || n > s.capacity {
		n = s.capacity
	}

	raw, err := s.kv.Range(ctx, activityKey(userID), 0, int64(n)-1)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading activity for %s: %w", userID, err)
	}

	entries := make([]Entry, 0, len(raw))
	for _, b := range raw {
		e, err := DecodeEntry(b)
		if err != nil {
			s.log.Debug().Err(err).Str("user_id", userID).Msg("skipping activity entry")
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Session reads back a session record.
func (s *Service) Session(ctx context.Context, id string) (Session, error) {
	data, err := s.kv.Get(ctx, sessionKey(id))
	if err != nil {
		return Session{}, fmt.Errorf("reading session %s: %w", id, err)
	}
	return decodeSession(data)
}

// SessionEvents returns up to n of the session's events, newest first.
// n <= 0 reads the whole log.
func (s *Service) SessionEvents(ctx context.Context, id string, n int) ([]Event, error) {
	if n <= 0 || n > SessionLogLimit {
		n = SessionLogLimit
	}
	raw, err := s.kv.Range(ctx, eventsKey(id), 0, int64(n)-1)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading events for %s: %w", id, err)
	}

	events := make([]Event, 0, len(raw))
	for _, b := range raw {
		ev, err := DecodeEvent(b)
		if err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}
