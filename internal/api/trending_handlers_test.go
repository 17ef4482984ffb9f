package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/onnwee/currents/internal/article"
	"github.com/onnwee/currents/internal/engine"
	"github.com/onnwee/currents/internal/ranking"
	"github.com/onnwee/currents/internal/snapshot"
)

var apiNow = time.Date(2026, 8, 23, 14, 30, 0, 0, time.UTC)

func rankedSnapshot(at time.Time, ids ...string) *snapshot.Snapshot {
	date, hour := snapshot.KeyFor(at)
	snap := &snapshot.Snapshot{Date: date, Hour: hour, GeneratedAt: at}
	for i, id := range ids {
		snap.Items = append(snap.Items, snapshot.Item{
			ID:          id,
			Title:       "Story " + id,
			SourceID:    "reuters",
			Bucket:      "world",
			Heat:        1 - float64(i)*0.1,
			Trend:       ranking.TrendNew,
			PublishedAt: at.Add(-2 * time.Hour),
		})
	}
	return snap
}

// newTrendingHandler builds a handler over in-memory stores with a frozen
// clock and the given pre-committed snapshots.
func newTrendingHandler(t *testing.T, now time.Time, snaps ...*snapshot.Snapshot) *TrendingHandler {
	t.Helper()
	store := snapshot.NewInMemoryStore()
	for _, s := range snaps {
		if err := store.Set(context.Background(), s); err != nil {
			t.Fatalf("seed snapshot: %v", err)
		}
	}
	pool := article.NewPoolBuilder(article.NewInMemoryStore(), nil)
	scorer := ranking.NewScorer(nil).WithNow(func() time.Time { return now })
	e := engine.New(engine.Config{}, pool, scorer, nil, store, nil).WithNow(func() time.Time { return now })
	return NewTrendingHandler(e)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

func TestGetTrendingCurrentHour(t *testing.T) {
	h := newTrendingHandler(t, apiNow, rankedSnapshot(apiNow, "a", "b", "c"))

	req := httptest.NewRequest(http.MethodGet, "/v1/trending", nil)
	rec := httptest.NewRecorder()
	h.GetTrending(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("content type = %q", ct)
	}

	var resp ListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Date != "2026-08-23" || resp.Hour != 14 {
		t.Errorf("key = (%s, %d), want (2026-08-23, 14)", resp.Date, resp.Hour)
	}
	if len(resp.Items) != 3 {
		t.Fatalf("got %d items, want 3", len(resp.Items))
	}
	if resp.Items[0].ID != "a" || resp.Items[0].Heat != 1 {
		t.Errorf("top item = %+v", resp.Items[0])
	}
}

func TestGetTrendingHistoricalDate(t *testing.T) {
	morning := time.Date(2026, 8, 22, 9, 0, 0, 0, time.UTC)
	h := newTrendingHandler(t, apiNow, rankedSnapshot(morning, "old-a", "old-b"))

	req := httptest.NewRequest(http.MethodGet, "/v1/trending?date=2026-08-22", nil)
	rec := httptest.NewRecorder()
	h.GetTrending(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp ListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Date != "2026-08-22" || resp.Hour != 9 {
		t.Errorf("key = (%s, %d), want (2026-08-22, 9)", resp.Date, resp.Hour)
	}
	if len(resp.Items) != 2 || resp.Items[0].ID != "old-a" {
		t.Errorf("items = %+v", resp.Items)
	}
}

func TestGetTrendingInvalidDate(t *testing.T) {
	h := newTrendingHandler(t, apiNow)

	req := httptest.NewRequest(http.MethodGet, "/v1/trending?date=23-08-2026", nil)
	rec := httptest.NewRecorder()
	h.GetTrending(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error.Code != ErrCodeInvalidDate {
		t.Errorf("error code = %q, want %q", resp.Error.Code, ErrCodeInvalidDate)
	}
}

func TestGetTrendingNotFound(t *testing.T) {
	// Between the warmup and on-demand windows with nothing stored there
	// is no list yet and on-demand generation has not kicked in.
	early := time.Date(2026, 8, 23, 14, 10, 0, 0, time.UTC)
	h := newTrendingHandler(t, early)

	req := httptest.NewRequest(http.MethodGet, "/v1/trending", nil)
	rec := httptest.NewRecorder()
	h.GetTrending(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error.Code != ErrCodeNotFound {
		t.Errorf("error code = %q, want %q", resp.Error.Code, ErrCodeNotFound)
	}
}
