package web

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/justestif/go-aureum/internal/activity"
	"github.com/justestif/go-aureum/internal/catalog"
	"github.com/justestif/go-aureum/internal/manifest"
	"github.com/justestif/go-aureum/internal/recommend"
)

// ActivityService records sessions and events.
type ActivityService interface {
	StartSession(ctx context.Context, p activity.StartSessionParams) string
	RecordEvent(ctx context.Context, p activity.RecordEventParams) activity.Ack
}

// Recommender produces ranked recommendations.
type Recommender interface {
	Recommend(ctx context.Context, req recommend.Request) recommend.Result
}

// ManifestGenerator produces cache manifests.
type ManifestGenerator interface {
	Generate(ctx context.Context, userID string) manifest.Manifest
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers contains HTTP handlers for the API.
type Handlers struct {
	activity     ActivityService
	recommender  Recommender
	manifests    ManifestGenerator
	store        Pinger
	catalogState func() string
	log          zerolog.Logger
}

// NewHandlers creates a new Handlers instance from deps.
func NewHandlers(deps Deps) *Handlers {
	return &Handlers{
		activity:     deps.Activity,
		recommender:  deps.Recommender,
		manifests:    deps.Manifests,
		store:        deps.Store,
		catalogState: deps.CatalogState,
		log:          deps.Logger,
	}
}

type startSessionRequest struct {
	UserID     string         `json:"user_id" validate:"max=128"`
	DeviceInfo map[string]any `json:"device_info"`
	Location   string         `json:"location" validate:"max=64"`
}

type startSessionResponse struct {
	SessionID string `json:"session_id"`
}

// StartSession handles POST /v1/sessions.
func (h *Handlers) StartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	id := h.activity.StartSession(r.Context(), activity.StartSessionParams{
		UserID:     req.UserID,
		DeviceInfo: req.DeviceInfo,
		Location:   req.Location,
	})
	writeJSON(w, http.StatusCreated, startSessionResponse{SessionID: id})
}

type recordEventRequest struct {
	SessionID string         `json:"session_id" validate:"required,max=128"`
	EventType string         `json:"event_type" validate:"required,max=32"`
	TrackID   string         `json:"track_id" validate:"max=256"`
	UserID    string         `json:"user_id" validate:"max=128"`
	Artist    string         `json:"artist" validate:"max=256"`
	Title     string         `json:"title" validate:"max=512"`
	Thumbnail string         `json:"thumbnail" validate:"max=2048"`
	Payload   map[string]any `json:"payload"`
}

// RecordEvent handles POST /v1/events. Unknown event types are recorded
// as "other".
func (h *Handlers) RecordEvent(w http.ResponseWriter, r *http.Request) {
	var req recordEventRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	ack := h.activity.RecordEvent(r.Context(), activity.RecordEventParams{
		SessionID: req.SessionID,
		EventType: activity.ParseEventType(req.EventType),
		TrackID:   req.TrackID,
		UserID:    req.UserID,
		Artist:    req.Artist,
		Title:     req.Title,
		Thumbnail: req.Thumbnail,
		Payload:   req.Payload,
	})
	writeJSON(w, http.StatusOK, ack)
}

type recommendationsQuery struct {
	CurrentTrackID string `json:"current_track_id" validate:"max=256"`
	CurrentArtist  string `json:"current_artist" validate:"max=256"`
	UserID         string `json:"user_id" validate:"max=128"`
	SessionID      string `json:"session_id" validate:"max=128"`
	Limit          int    `json:"limit" validate:"min=0"`
}

// Recommendations handles GET /v1/recommendations.
func (h *Handlers) Recommendations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := recommendationsQuery{
		CurrentTrackID: q.Get("current_track_id"),
		CurrentArtist:  q.Get("current_artist"),
		UserID:         q.Get("user_id"),
		SessionID:      q.Get("session_id"),
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be an integer")
			return
		}
		req.Limit = n
	}
	if err := validateStruct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	res := h.recommender.Recommend(r.Context(), recommend.Request{
		CurrentTrackID: req.CurrentTrackID,
		CurrentArtist:  req.CurrentArtist,
		UserID:         req.UserID,
		SessionID:      req.SessionID,
		Limit:          req.Limit,
	})
	writeJSON(w, http.StatusOK, res)
}

// manifestResponse carries expires_at as unix seconds, which is what
// prefetching clients compare against.
type manifestResponse struct {
	MustCache   []catalog.Track `json:"must_cache"`
	LikelyNext  []catalog.Track `json:"likely_next"`
	ExpiresAt   int64           `json:"expires_at"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// CacheManifest handles GET /v1/cache/manifest.
func (h *Handlers) CacheManifest(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if len(userID) > 128 {
		writeError(w, http.StatusBadRequest, "invalid_request", "user_id must be at most 128 characters")
		return
	}

	m := h.manifests.Generate(r.Context(), userID)
	writeJSON(w, http.StatusOK, manifestResponse{
		MustCache:   m.MustCache,
		LikelyNext:  m.LikelyNext,
		ExpiresAt:   m.ExpiresAt.Unix(),
		GeneratedAt: m.GeneratedAt,
	})
}

type healthResponse struct {
	Status  string `json:"status"`
	Store   string `json:"store"`
	Catalog string `json:"catalog"`
}

// Health handles GET /healthz. The service keeps serving generic results
// when a dependency is down, so a degraded status still answers 200.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Store: "ok", Catalog: "unknown"}
	if h.store != nil {
		if err := h.store.Ping(ctx); err != nil {
			h.log.Warn().Err(err).Msg("store health check failed")
			resp.Store = "unavailable"
			resp.Status = "degraded"
		}
	}
	if h.catalogState != nil {
		resp.Catalog = h.catalogState()
		if resp.Catalog != "closed" {
			resp.Status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
