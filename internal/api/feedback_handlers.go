package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/onnwee/currents/internal/learn"
	"github.com/onnwee/currents/internal/middleware"
	"github.com/onnwee/currents/internal/mood"
)

// feedbackTimeout bounds the detached recording work.
const feedbackTimeout = 10 * time.Second

// FeedbackHandler accepts explicit feedback events.
type FeedbackHandler struct {
	recorder *learn.Recorder
	logger   *slog.Logger

	// record is the detached-recording hook; tests replace it to run
	// synchronously.
	record func(userID string, req feedbackRequest)
}

// NewFeedbackHandler creates a feedback handler.
func NewFeedbackHandler(recorder *learn.Recorder, logger *slog.Logger) *FeedbackHandler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &FeedbackHandler{recorder: recorder, logger: logger}
	h.record = h.recordDetached
	return h
}

type feedbackRequest struct {
	ArticleID string   `json:"article_id"`
	Mood      string   `json:"mood"`
	Action    string   `json:"action"`
	Interests []string `json:"interests,omitempty"`
}

// PostFeedback handles POST /v1/users/{userID}/feedback. The request is
// validated synchronously; the learning updates run detached from the
// request, so a slow store never blocks the client. Returns 202.
func (h *FeedbackHandler) PostFeedback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := r.PathValue("userID")
	if userID == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "User id is required")
		return
	}

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}
	if req.ArticleID == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "article_id is required")
		return
	}
	if !learn.ValidAction(learn.Action(req.Action)) {
		ctx = middleware.SetErrorCode(ctx, ErrCodeUnknownAction)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeUnknownAction, "Unknown feedback action")
		return
	}

	h.record(userID, req)
	writeJSON(w, ctx, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// recordDetached applies the feedback with its own context so the work
// survives the request ending.
func (h *FeedbackHandler) recordDetached(userID string, req feedbackRequest) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), feedbackTimeout)
		defer cancel()

		err := h.recorder.Record(ctx, userID, req.ArticleID, mood.Parse(req.Mood), learn.Action(req.Action), req.Interests)
		if err != nil {
			level := slog.LevelWarn
			if errors.Is(err, learn.ErrArticleNotFound) {
				level = slog.LevelInfo
			}
			h.logger.Log(ctx, level, "feedback recording failed",
				"user_id", userID,
				"article_id", req.ArticleID,
				"error", err)
		}
	}()
}
