// Package snapshot provides the hour-bucketed ranked-list snapshots produced
// by the generation cycle and read by the trending and personalization paths.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/onnwee/currents/internal/ranking"
)

// DateLayout is the snapshot date key format.
const DateLayout = "2006-01-02"

// Validation errors for snapshot keys.
var (
	ErrInvalidDate = errors.New("invalid snapshot date: must be YYYY-MM-DD")
	ErrInvalidHour = errors.New("invalid snapshot hour: must be in [0, 23]")
)

// Item is one ranked article inside a snapshot. Items are immutable once
// the snapshot is written; the next hour's snapshot supersedes them.
type Item struct {
	ID          string        `json:"id" cbor:"1,keyasint"`
	ClusterKey  string        `json:"cluster_key" cbor:"2,keyasint"`
	ClusterSize int           `json:"cluster_size" cbor:"3,keyasint"`
	RawScore    float64       `json:"raw_score" cbor:"4,keyasint"`
	Heat        float64       `json:"heat" cbor:"5,keyasint"` // Normalized importance in [0,1]
	Trend       ranking.Trend `json:"trend" cbor:"6,keyasint"`
	Reasons     []string      `json:"reasons,omitempty" cbor:"7,keyasint,omitempty"`
	Topics      []string      `json:"topics,omitempty" cbor:"8,keyasint,omitempty"`
	Bucket      string        `json:"bucket" cbor:"9,keyasint"`

	// Denormalized display fields.
	Title       string    `json:"title" cbor:"10,keyasint"`
	SourceID    string    `json:"source_id" cbor:"11,keyasint"`
	PublishedAt time.Time `json:"published_at" cbor:"12,keyasint"`
	Summary     string    `json:"summary,omitempty" cbor:"13,keyasint,omitempty"`
	ImageURL    string    `json:"image_url,omitempty" cbor:"14,keyasint,omitempty"`

	// Embedding is carried for the personalization vector boost.
	Embedding []float32 `json:"embedding,omitempty" cbor:"15,keyasint,omitempty"`

	// Signal fields consumed by the personalization overlay.
	Arousal       float64 `json:"arousal" cbor:"16,keyasint"`
	Sentiment     float64 `json:"sentiment" cbor:"17,keyasint"`
	Depth         float64 `json:"depth" cbor:"18,keyasint"`
	Explainer     float64 `json:"explainer" cbor:"19,keyasint"`
	Wholesome     float64 `json:"wholesome" cbor:"20,keyasint"`
	Novelty       float64 `json:"novelty" cbor:"21,keyasint"`
	HumanInterest float64 `json:"human_interest" cbor:"22,keyasint"`
	Hype          float64 `json:"hype" cbor:"23,keyasint"`
}

// Snapshot is the ordered ranked list for one (date, hour) bucket.
// Writes are full-replace: each hour is one document, written atomically.
type Snapshot struct {
	Date        string    `json:"date" cbor:"1,keyasint"`
	Hour        int       `json:"hour" cbor:"2,keyasint"`
	Items       []Item    `json:"items" cbor:"3,keyasint"`
	GeneratedAt time.Time `json:"generated_at" cbor:"4,keyasint"`
}

// ValidateKey checks a (date, hour) snapshot key.
func ValidateKey(date string, hour int) error {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	if hour < 0 || hour > 23 {
		return fmt.Errorf("%w: %d", ErrInvalidHour, hour)
	}
	return nil
}

// KeyFor returns the (date, hour) bucket for a point in time, in UTC.
func KeyFor(t time.Time) (string, int) {
	t = t.UTC()
	return t.Format(DateLayout), t.Hour()
}

// Ranks returns the 1-indexed rank of each item id in the snapshot.
func (s *Snapshot) Ranks() map[string]int {
	ranks := make(map[string]int, len(s.Items))
	for i, item := range s.Items {
		ranks[item.ID] = i + 1
	}
	return ranks
}

// HourEntry pairs an hour with its snapshot for ListHours results.
type HourEntry struct {
	Hour     int
	Snapshot *Snapshot
}

// Store is the snapshot persistence contract.
type Store interface {
	// Get returns the snapshot for (date, hour), or nil if absent.
	Get(ctx context.Context, date string, hour int) (*Snapshot, error)
	// Set stores a snapshot, replacing any existing document for its key.
	Set(ctx context.Context, snap *Snapshot) error
	// ListHours returns all stored snapshots for a date, ascending by hour.
	ListHours(ctx context.Context, date string) ([]HourEntry, error)
	// Exists reports whether a snapshot exists for (date, hour).
	Exists(ctx context.Context, date string, hour int) (bool, error)
}
