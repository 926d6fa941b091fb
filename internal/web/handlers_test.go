package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/go-aureum/internal/activity"
	"github.com/justestif/go-aureum/internal/catalog"
	"github.com/justestif/go-aureum/internal/catalog/catalogtest"
	"github.com/justestif/go-aureum/internal/manifest"
	"github.com/justestif/go-aureum/internal/recommend"
	"github.com/justestif/go-aureum/internal/store"
)

// mockActivity records the last call of each kind.
type mockActivity struct {
	mu        sync.Mutex
	session   activity.StartSessionParams
	event     activity.RecordEventParams
	persisted bool
}

func (m *mockActivity) StartSession(_ context.Context, p activity.StartSessionParams) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = p
	return "sess-1"
}

func (m *mockActivity) RecordEvent(_ context.Context, p activity.RecordEventParams) activity.Ack {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.event = p
	return activity.Ack{OK: true, Persisted: m.persisted}
}

type mockRecommender struct {
	got recommend.Request
}

func (m *mockRecommender) Recommend(_ context.Context, req recommend.Request) recommend.Result {
	m.got = req
	return recommend.Result{
		Tracks: []recommend.Track{{
			Track:  catalog.Track{ID: "t1", Title: "Kesariya", Artists: "Arijit Singh"},
			Score:  1,
			Label:  recommend.LabelTopPick,
			Source: recommend.SourceRadio,
		}},
		Context: recommend.Context{Source: recommend.SourceRadio, Intent: "neutral"},
	}
}

type mockManifests struct {
	got string
	m   manifest.Manifest
}

func (m *mockManifests) Generate(_ context.Context, userID string) manifest.Manifest {
	m.got = userID
	return m.m
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type fixture struct {
	activity  *mockActivity
	recommend *mockRecommender
	manifests *mockManifests
	handler   http.Handler
}

func newFixture(t *testing.T, mutate func(*ServerConfig, *Deps)) *fixture {
	t.Helper()
	f := &fixture{
		activity:  &mockActivity{persisted: true},
		recommend: &mockRecommender{},
		manifests: &mockManifests{},
	}
	cfg := ServerConfig{}
	deps := Deps{
		Activity:     f.activity,
		Recommender:  f.recommend,
		Manifests:    f.manifests,
		Store:        pinger{},
		CatalogState: func() string { return "closed" },
		Logger:       zerolog.Nop(),
	}
	if mutate != nil {
		mutate(&cfg, &deps)
	}
	f.handler = NewServer(cfg, deps).Handler()
	return f
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestStartSession(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"full body", `{"user_id": "u1", "device_info": {"os": "android"}, "location": "IN"}`, http.StatusCreated},
		{"empty body", "", http.StatusCreated},
		{"empty object", `{}`, http.StatusCreated},
		{"malformed json", `{"user_id":`, http.StatusBadRequest},
		{"unknown field", `{"nickname": "x"}`, http.StatusBadRequest},
		{"oversized user id", `{"user_id": "` + strings.Repeat("u", 200) + `"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			rec := f.do(http.MethodPost, "/v1/sessions", tt.body)

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			if tt.wantStatus == http.StatusCreated {
				assert.Equal(t, "sess-1", decode[startSessionResponse](t, rec).SessionID)
			}
		})
	}
}

func TestStartSession_ForwardsParams(t *testing.T) {
	f := newFixture(t, nil)
	f.do(http.MethodPost, "/v1/sessions", `{"user_id": "u1", "device_info": {"os": "android"}, "location": "IN"}`)

	assert.Equal(t, "u1", f.activity.session.UserID)
	assert.Equal(t, "IN", f.activity.session.Location)
	assert.Equal(t, "android", f.activity.session.DeviceInfo["os"])
}

func TestRecordEvent(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(http.MethodPost, "/v1/events",
		`{"session_id": "s1", "event_type": "play", "track_id": "abc123", "user_id": "u1", "payload": {"position_ms": 1200}}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, activity.Ack{OK: true, Persisted: true}, decode[activity.Ack](t, rec))
	assert.Equal(t, activity.EventPlay, f.activity.event.EventType)
	assert.Equal(t, "abc123", f.activity.event.TrackID)
	assert.Equal(t, "u1", f.activity.event.UserID)
	assert.Contains(t, f.activity.event.Payload, "position_ms")
}

func TestRecordEvent_UnknownTypeIsOther(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(http.MethodPost, "/v1/events", `{"session_id": "s1", "event_type": "seek"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, activity.EventOther, f.activity.event.EventType)
}

func TestRecordEvent_StoreDownStillOK(t *testing.T) {
	f := newFixture(t, nil)
	f.activity.persisted = false

	rec := f.do(http.MethodPost, "/v1/events", `{"session_id": "s1", "event_type": "skip", "track_id": "t1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	ack := decode[activity.Ack](t, rec)
	assert.True(t, ack.OK)
	assert.False(t, ack.Persisted)
}

func TestRecordEvent_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"missing session", `{"event_type": "play"}`, "session_id is required"},
		{"missing type", `{"session_id": "s1"}`, "event_type is required"},
		{"long track id", `{"session_id": "s1", "event_type": "play", "track_id": "` + strings.Repeat("x", 300) + `"}`, "track_id must be at most 256 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			rec := f.do(http.MethodPost, "/v1/events", tt.body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			body := decode[errorBody](t, rec)
			assert.Equal(t, "invalid_request", body.Error.Code)
			assert.Contains(t, body.Error.Message, tt.wantMsg)
		})
	}
}

func TestRecommendations(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(http.MethodGet, "/v1/recommendations?current_track_id=X&current_artist=Pritam&user_id=u1&session_id=s1&limit=5", "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, recommend.Request{
		CurrentTrackID: "X",
		CurrentArtist:  "Pritam",
		UserID:         "u1",
		SessionID:      "s1",
		Limit:          5,
	}, f.recommend.got)

	var body struct {
		Tracks []struct {
			ID     string  `json:"id"`
			Score  float64 `json:"score"`
			Label  string  `json:"label"`
			Source string  `json:"source"`
		} `json:"tracks"`
		Context struct {
			Source string `json:"source"`
			Intent string `json:"intent"`
		} `json:"context"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Tracks, 1)
	assert.Equal(t, "t1", body.Tracks[0].ID)
	assert.Equal(t, "Top Pick", body.Tracks[0].Label)
	assert.Equal(t, "radio", body.Tracks[0].Source)
	assert.Equal(t, "radio", body.Context.Source)
}

func TestRecommendations_BadLimit(t *testing.T) {
	for _, limit := range []string{"ten", "-1", "1.5"} {
		t.Run(limit, func(t *testing.T) {
			f := newFixture(t, nil)
			rec := f.do(http.MethodGet, "/v1/recommendations?limit="+limit, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCacheManifest(t *testing.T) {
	expires := time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)
	f := newFixture(t, nil)
	f.manifests.m = manifest.Manifest{
		MustCache:   []catalog.Track{{ID: "abc123"}},
		LikelyNext:  []catalog.Track{},
		ExpiresAt:   expires,
		GeneratedAt: expires.Add(-24 * time.Hour),
	}

	rec := f.do(http.MethodGet, "/v1/cache/manifest?user_id=u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", f.manifests.got)

	var body struct {
		MustCache  []catalog.Track `json:"must_cache"`
		LikelyNext []catalog.Track `json:"likely_next"`
		ExpiresAt  int64           `json:"expires_at"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, expires.Unix(), body.ExpiresAt)
	assert.Equal(t, "abc123", body.MustCache[0].ID)
	assert.NotNil(t, body.LikelyNext)
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		store      Pinger
		catalog    func() string
		wantStatus string
	}{
		{"all ok", pinger{}, func() string { return "closed" }, "ok"},
		{"store down", pinger{err: store.ErrUnavailable}, func() string { return "closed" }, "degraded"},
		{"breaker open", pinger{}, func() string { return "open" }, "degraded"},
		{"nothing wired", nil, nil, "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, func(_ *ServerConfig, d *Deps) {
				d.Store = tt.store
				d.CatalogState = tt.catalog
			})
			rec := f.do(http.MethodGet, "/healthz", "")

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantStatus, decode[healthResponse](t, rec).Status)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	f.do(http.MethodGet, "/healthz", "")

	rec := f.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "aureum_http_requests_total")
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, func(c *ServerConfig, _ *Deps) {
		c.RateLimit = 2
		c.RateWindow = time.Minute
	})

	var codes []int
	for range 3 {
		codes = append(codes, f.do(http.MethodGet, "/healthz", "").Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestNotFound(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/v1/nope", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(http.MethodGet, "/v1/events", "").Code)
}

// TestEndToEnd wires the real services over an in-memory store.
func TestEndToEnd(t *testing.T) {
	stub := catalogtest.New()
	stub.SearchResults["popular music"] = catalogtest.Tracks("pop", "P", 5)
	stub.Continuations["abc123"] = catalogtest.Tracks("next", "A", 10)

	svc := activity.New(store.NewMemory())
	engine := recommend.New(stub, svc)
	gen := manifest.New(stub, svc, engine)

	f := newFixture(t, func(_ *ServerConfig, d *Deps) {
		d.Activity = svc
		d.Recommender = engine
		d.Manifests = gen
	})

	rec := f.do(http.MethodPost, "/v1/sessions", `{"user_id": "u1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	sid := decode[startSessionResponse](t, rec).SessionID
	require.NotEmpty(t, sid)

	rec = f.do(http.MethodPost, "/v1/events", `{"session_id": "`+sid+`", "event_type": "play", "track_id": "abc123"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[activity.Ack](t, rec).Persisted)

	rec = f.do(http.MethodGet, "/v1/recommendations?user_id=u1&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[recommend.Result](t, rec)
	assert.Equal(t, recommend.SourceHistory, res.Context.Source)
	assert.Len(t, res.Tracks, 5)

	rec = f.do(http.MethodGet, "/v1/cache/manifest?user_id=u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var m manifestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	require.NotEmpty(t, m.MustCache)
	assert.Equal(t, "abc123", m.MustCache[0].ID)
	assert.Greater(t, m.ExpiresAt, time.Now().Unix())
}

func TestEndToEnd_EverythingDown(t *testing.T) {
	svc := activity.New(store.Unavailable{})
	engine := recommend.New(catalog.Unavailable{}, svc)
	gen := manifest.New(catalog.Unavailable{}, svc, engine)

	f := newFixture(t, func(_ *ServerConfig, d *Deps) {
		d.Activity = svc
		d.Recommender = engine
		d.Manifests = gen
		d.Store = store.Unavailable{}
		d.CatalogState = func() string { return "open" }
	})

	rec := f.do(http.MethodPost, "/v1/sessions", `{}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(http.MethodPost, "/v1/events", `{"session_id": "s1", "event_type": "play", "track_id": "t1", "user_id": "u1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, activity.Ack{OK: true}, decode[activity.Ack](t, rec))

	rec = f.do(http.MethodGet, "/v1/recommendations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, recommend.SourceError, decode[recommend.Result](t, rec).Context.Source)

	rec = f.do(http.MethodGet, "/v1/cache/manifest", "")
	require.Equal(t, http.StatusOK, rec.Code)
	m := decode[manifestResponse](t, rec)
	assert.Empty(t, m.MustCache)
	assert.LessOrEqual(t, m.ExpiresAt, time.Now().Add(time.Hour+time.Minute).Unix())

	rec = f.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, "degraded", decode[healthResponse](t, rec).Status)
}
