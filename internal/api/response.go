package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/onnwee/currents/internal/ranking"
	"github.com/onnwee/currents/internal/snapshot"
)

// RankedItem is the wire shape of one list entry. Embeddings stay
// server-side; everything else mirrors the stored snapshot item.
type RankedItem struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	SourceID    string        `json:"source_id"`
	PublishedAt time.Time     `json:"published_at"`
	Summary     string        `json:"summary,omitempty"`
	ImageURL    string        `json:"image_url,omitempty"`
	Topics      []string      `json:"topics,omitempty"`
	Bucket      string        `json:"bucket"`
	Heat        float64       `json:"heat"`
	Trend       ranking.Trend `json:"trend"`
	Reasons     []string      `json:"reasons,omitempty"`
	ClusterSize int           `json:"cluster_size"`
}

// ListResponse is the wire shape of a ranked list.
type ListResponse struct {
	Date        string       `json:"date"`
	Hour        int          `json:"hour"`
	GeneratedAt time.Time    `json:"generated_at"`
	Items       []RankedItem `json:"items"`
}

// toRankedItem converts a stored item to its wire shape, optionally
// overriding the reasons (the personal path merges its own).
func toRankedItem(item snapshot.Item, reasons []string) RankedItem {
	if reasons == nil {
		reasons = item.Reasons
	}
	return RankedItem{
		ID:          item.ID,
		Title:       item.Title,
		SourceID:    item.SourceID,
		PublishedAt: item.PublishedAt,
		Summary:     item.Summary,
		ImageURL:    item.ImageURL,
		Topics:      item.Topics,
		Bucket:      item.Bucket,
		Heat:        item.Heat,
		Trend:       item.Trend,
		Reasons:     reasons,
		ClusterSize: item.ClusterSize,
	}
}

// toListResponse converts a snapshot to its wire shape. Items is always a
// JSON array, never null.
func toListResponse(snap *snapshot.Snapshot) ListResponse {
	resp := ListResponse{
		Date:        snap.Date,
		Hour:        snap.Hour,
		GeneratedAt: snap.GeneratedAt,
		Items:       make([]RankedItem, 0, len(snap.Items)),
	}
	for _, item := range snap.Items {
		resp.Items = append(resp.Items, toRankedItem(item, nil))
	}
	return resp
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, ctx context.Context, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal response", "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to encode response")
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write response", "error", err)
	}
}
