package api

import (
	"errors"
	"net/http"

	"github.com/onnwee/currents/internal/engine"
	"github.com/onnwee/currents/internal/middleware"
	"github.com/onnwee/currents/internal/snapshot"
)

// TrendingHandler serves the global ranked list.
type TrendingHandler struct {
	engine *engine.Engine
}

// NewTrendingHandler creates a trending handler.
func NewTrendingHandler(e *engine.Engine) *TrendingHandler {
	return &TrendingHandler{engine: e}
}

// GetTrending handles GET /v1/trending?date=YYYY-MM-DD. An omitted date
// means today; today's reads may fall back to a prior hour or generate on
// demand.
func (h *TrendingHandler) GetTrending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	date := r.URL.Query().Get("date")

	snap, err := h.engine.GetGlobal(ctx, date)
	if err != nil {
		if errors.Is(err, snapshot.ErrInvalidDate) {
			ctx = middleware.SetErrorCode(ctx, ErrCodeInvalidDate)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidDate, "Date must be YYYY-MM-DD")
			return
		}
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load trending list")
		return
	}
	if snap == nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "No trending list available yet")
		return
	}

	writeJSON(w, ctx, http.StatusOK, toListResponse(snap))
}
