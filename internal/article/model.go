// Package article provides the candidate article model, canonical-URL
// deduplication, and the cluster pool builder that feeds the ranking engine.
package article

import (
	"errors"
	"time"
)

// Validation errors for candidate articles.
var (
	ErrMissingID    = errors.New("article id is required")
	ErrMissingURL   = errors.New("article url is required")
	ErrMissingTitle = errors.New("article title is required")
)

// Signals holds the precomputed numeric mood features for an article.
// Values are supplied by the upstream text-feature extractor and are
// expected to be in [0, 1] unless noted otherwise.
type Signals struct {
	Arousal       float64 `json:"arousal"`
	Sentiment     float64 `json:"sentiment"`
	Depth         float64 `json:"depth"`
	Conflict      float64 `json:"conflict"`
	Practicality  float64 `json:"practicality"`
	Optimism      float64 `json:"optimism"`
	Novelty       float64 `json:"novelty"`
	HumanInterest float64 `json:"human_interest"`
	Hype          float64 `json:"hype"`
	Explainer     float64 `json:"explainer"`
	Analysis      float64 `json:"analysis"`
	Wholesome     float64 `json:"wholesome"`
	ReadMinutes   float64 `json:"read_minutes"` // Estimated reading time in minutes
	Genre         string  `json:"genre"`
	EventStage    string  `json:"event_stage"`
	Format        string  `json:"format"`
}

// Candidate is an article eligible for ranking. Candidates are immutable
// once fetched; the engine never writes back to the article store.
type Candidate struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	SourceID    string    `json:"source_id"`
	PublishedAt time.Time `json:"published_at"`
	CreatedAt   time.Time `json:"created_at"`
	Summary     string    `json:"summary"`
	ImageURL    string    `json:"image_url,omitempty"`
	Topics      []string  `json:"topics,omitempty"`
	Signals     Signals   `json:"signals"`

	// Embedding is the fixed-length vector for the article text.
	// Empty when the embedding provider had nothing for this article;
	// the engine treats that as "no vector boost available".
	Embedding []float32 `json:"embedding,omitempty"`
}

// Validate checks that the candidate carries the fields the engine requires.
func (c *Candidate) Validate() error {
	if c.ID == "" {
		return ErrMissingID
	}
	if c.URL == "" {
		return ErrMissingURL
	}
	if c.Title == "" {
		return ErrMissingTitle
	}
	return nil
}

// Cluster is a group of candidates sharing one canonical URL, with the
// deterministically selected representative.
type Cluster struct {
	Key            string    // Canonical URL used as the dedup key
	Representative Candidate // Latest published-at, ties broken by latest created-at
	Size           int       // Number of articles in the cluster
}
