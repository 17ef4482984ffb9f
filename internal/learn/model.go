// Package learn implements the online learning subsystem: an append-only
// feedback log, per-(user, mood, feature) affinity scores, and per-(user,
// mood) semantic centroids. All state here is written only by this package;
// the ranking paths read it and never mutate it.
package learn

import (
	"context"
	"errors"
	"time"

	"github.com/onnwee/currents/internal/mood"
)

// Action is an explicit feedback action from a user.
type Action string

// Feedback actions. MoreLikeThis, GreatExplainer, and MoreLaunches are
// positive; everything else counts as negative.
const (
	ActionMoreLikeThis   Action = "more_like_this"
	ActionGreatExplainer Action = "great_explainer"
	ActionMoreLaunches   Action = "more_launches"
	ActionLessLikeThis   Action = "less_like_this"
	ActionTooIntense     Action = "too_intense"
	ActionNotForMe       Action = "not_for_me"
)

// knownActions is the accepted action vocabulary.
var knownActions = map[Action]bool{
	ActionMoreLikeThis:   true,
	ActionGreatExplainer: true,
	ActionMoreLaunches:   true,
	ActionLessLikeThis:   true,
	ActionTooIntense:     true,
	ActionNotForMe:       true,
}

// ErrUnknownAction is returned for actions outside the vocabulary.
var ErrUnknownAction = errors.New("unknown feedback action")

// ValidAction reports whether a is in the accepted vocabulary.
func ValidAction(a Action) bool {
	return knownActions[a]
}

// IsPositive classifies an action. Unknown actions never reach here in the
// normal path because RecordFeedback validates first.
func IsPositive(a Action) bool {
	switch a {
	case ActionMoreLikeThis, ActionGreatExplainer, ActionMoreLaunches:
		return true
	default:
		return false
	}
}

// Signal returns the ±1 learning signal for an action.
func Signal(a Action) float64 {
	if IsPositive(a) {
		return 1
	}
	return -1
}

// FeatureType categorizes a learned feature.
type FeatureType string

// Feature types extracted from an article on feedback.
const (
	FeatureSource     FeatureType = "source"
	FeatureInterest   FeatureType = "interest"
	FeatureTag        FeatureType = "tag"
	FeatureTitleToken FeatureType = "title_token"
)

// Feature is one (type, key) pair extracted from an article.
type Feature struct {
	Type FeatureType
	Key  string
}

// FeedbackEvent is one immutable row in the feedback log.
type FeedbackEvent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ArticleID string    `json:"article_id"`
	Mood      mood.Mood `json:"mood"`
	Action    Action    `json:"action"`
	CreatedAt time.Time `json:"created_at"`
}

// FeatureAffinity is the learned EMA score for one (user, mood, feature)
// key. Scores live in [-1, 1]. Rows are never deleted; stale keys simply
// stop being looked up.
type FeatureAffinity struct {
	UserID       string      `json:"user_id"`
	Mood         mood.Mood   `json:"mood"`
	FeatureType  FeatureType `json:"feature_type"`
	FeatureKey   string      `json:"feature_key"`
	Score        float64     `json:"score"`
	Observations int         `json:"observations"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// GlobalUserID keys the shared per-mood centroid that aggregates positive
// feedback across all users.
const GlobalUserID = "global"

// MoodCentroid is a unit-norm running-average embedding for a (user, mood)
// pair, or (GlobalUserID, mood) for the shared centroid.
type MoodCentroid struct {
	UserID       string    `json:"user_id"`
	Mood         mood.Mood `json:"mood"`
	Vector       []float32 `json:"vector"`
	Observations int       `json:"observations"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Store is the persistence contract for learning state. Affinity and
// centroid updates are read-modify-write with last-writer-wins semantics;
// the EMA self-corrects, so concurrent feedback for the same key is an
// accepted race.
type Store interface {
	// AppendEvent appends one row to the immutable feedback log.
	AppendEvent(ctx context.Context, event *FeedbackEvent) error
	// GetAffinity returns the affinity row for a key, or nil if absent.
	GetAffinity(ctx context.Context, userID string, m mood.Mood, ft FeatureType, key string) (*FeatureAffinity, error)
	// UpsertAffinity writes an affinity row, replacing any existing one.
	UpsertAffinity(ctx context.Context, aff *FeatureAffinity) error
	// ListAffinities returns all affinity rows for a (user, mood) pair.
	ListAffinities(ctx context.Context, userID string, m mood.Mood) ([]FeatureAffinity, error)
	// GetCentroid returns the centroid for (user, mood), or nil if absent.
	GetCentroid(ctx context.Context, userID string, m mood.Mood) (*MoodCentroid, error)
	// UpsertCentroid writes a centroid, replacing any existing one.
	UpsertCentroid(ctx context.Context, c *MoodCentroid) error
}
