package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/onnwee/currents/internal/middleware"
	"github.com/onnwee/currents/internal/mood"
	"github.com/onnwee/currents/internal/personal"
)

// Feed size limits.
const (
	DefaultFeedLimit = 8
	MaxFeedLimit     = 50
)

// FeedHandler serves the personal ranked list.
type FeedHandler struct {
	overlay *personal.Overlay
}

// NewFeedHandler creates a personal feed handler.
func NewFeedHandler(overlay *personal.Overlay) *FeedHandler {
	return &FeedHandler{overlay: overlay}
}

// FeedItem is one personal feed entry on the wire.
type FeedItem struct {
	RankedItem
	PersonalScore float64 `json:"personal_score"`
}

// FeedResponse is the personal feed wire shape.
type FeedResponse struct {
	UserID      string     `json:"user_id"`
	Mood        string     `json:"mood"`
	Blend       float64    `json:"blend"`
	GeneratedAt time.Time  `json:"generated_at"`
	Items       []FeedItem `json:"items"`
}

// GetFeed handles GET /v1/users/{userID}/feed. Query parameters: mood,
// blend (0..1), limit, interests (comma-separated), exclude
// (comma-separated article ids already shown).
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := r.PathValue("userID")
	if userID == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "User id is required")
		return
	}

	q := r.URL.Query()
	req := personal.Request{
		UserID:    userID,
		Mood:      mood.Parse(q.Get("mood")),
		Blend:     mood.DefaultBlend,
		Interests: splitList(q.Get("interests")),
		Limit:     DefaultFeedLimit,
	}

	if raw := q.Get("blend"); raw != "" {
		blend, err := strconv.ParseFloat(raw, 64)
		if err != nil || blend < 0 || blend > 1 {
			ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Blend must be a number in [0, 1]")
			return
		}
		req.Blend = blend
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > MaxFeedLimit {
			ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Limit must be in [1, 50]")
			return
		}
		req.Limit = limit
	}
	if excluded := splitList(q.Get("exclude")); len(excluded) > 0 {
		req.Exclude = make(map[string]bool, len(excluded))
		for _, id := range excluded {
			req.Exclude[id] = true
		}
	}

	feed, err := h.overlay.BuildFeed(ctx, req)
	if err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to build personal feed")
		return
	}

	resp := FeedResponse{
		UserID:      userID,
		Mood:        string(req.Mood),
		Blend:       req.Blend,
		GeneratedAt: time.Now().UTC(),
		Items:       make([]FeedItem, 0, len(feed)),
	}
	for _, s := range feed {
		resp.Items = append(resp.Items, FeedItem{
			RankedItem:    toRankedItem(s.Item, s.Reasons),
			PersonalScore: s.Score,
		})
	}
	writeJSON(w, ctx, http.StatusOK, resp)
}

// splitList splits a comma-separated query value, dropping empties.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
