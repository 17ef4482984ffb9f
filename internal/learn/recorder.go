package learn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/currents/internal/article"
	"github.com/onnwee/currents/internal/embed"
	"github.com/onnwee/currents/internal/mood"
)

// ErrArticleNotFound is returned when feedback references an unknown
// article id.
var ErrArticleNotFound = errors.New("article not found")

// Recorder applies feedback events: append to the log, update feature
// affinities, and step the mood centroids.
type Recorder struct {
	store    Store
	articles article.Store
	embedder embed.Provider
	logger   *slog.Logger
	metrics  *Metrics
	now      func() time.Time
}

// NewRecorder creates a feedback recorder.
func NewRecorder(store Store, articles article.Store, logger *slog.Logger, metrics *Metrics) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:    store,
		articles: articles,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (r *Recorder) WithNow(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// WithEmbedder attaches an embedding provider used to backfill a vector for
// articles stored without one, so centroid learning still happens.
func (r *Recorder) WithEmbedder(p embed.Provider) *Recorder {
	r.embedder = p
	return r
}

// Record processes one feedback event. interests is the user's interest
// list at feedback time and scopes which interest features are credited.
// The affinity and centroid writes are read-modify-write with last-writer-
// wins semantics; concurrent events for the same key are an accepted race
// because the EMA self-corrects.
func (r *Recorder) Record(ctx context.Context, userID, articleID string, m mood.Mood, action Action, interests []string) error {
	if !ValidAction(action) {
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	if !mood.Known(m) {
		m = mood.DefaultMood
	}

	cand, err := r.articles.GetByID(ctx, articleID)
	if err != nil {
		return fmt.Errorf("failed to load article for feedback: %w", err)
	}
	if cand == nil {
		return fmt.Errorf("%w: %s", ErrArticleNotFound, articleID)
	}

	now := r.now()
	event := &FeedbackEvent{
		ID:        uuid.NewString(),
		UserID:    userID,
		ArticleID: articleID,
		Mood:      m,
		Action:    action,
		CreatedAt: now,
	}
	if err := r.store.AppendEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to append feedback event: %w", err)
	}

	signal := Signal(action)
	positive := IsPositive(action)
	if r.metrics != nil {
		r.metrics.RecordEvent(action, positive)
	}

	features := ExtractFeatures(cand, interests)
	for _, f := range features {
		if err := r.updateAffinity(ctx, userID, m, f, signal, now); err != nil {
			// Affinity rows are independent; keep going so one bad row does
			// not drop the rest of the event.
			r.logger.Warn("affinity update failed",
				"user_id", userID,
				"feature_type", f.Type,
				"feature_key", f.Key,
				"error", err)
		}
	}

	embedding := cand.Embedding
	if len(embedding) == 0 && r.embedder != nil {
		vec, embedErr := r.embedder.Embed(ctx, cand.Title)
		if embedErr != nil {
			// Embeddings are a boost, never a dependency.
			r.logger.Debug("embedding backfill failed", "article_id", articleID, "error", embedErr)
		} else {
			embedding = vec
		}
	}
	if len(embedding) > 0 {
		if err := r.updateCentroids(ctx, userID, m, embedding, positive, now); err != nil {
			r.logger.Warn("centroid update failed",
				"user_id", userID,
				"mood", m,
				"error", err)
		}
	}

	r.logger.Debug("feedback recorded",
		"user_id", userID,
		"article_id", articleID,
		"mood", m,
		"action", action,
		"features", len(features))
	return nil
}

func (r *Recorder) updateAffinity(ctx context.Context, userID string, m mood.Mood, f Feature, signal float64, now time.Time) error {
	existing, err := r.store.GetAffinity(ctx, userID, m, f.Type, f.Key)
	if err != nil {
		return err
	}

	aff := &FeatureAffinity{
		UserID:      userID,
		Mood:        m,
		FeatureType: f.Type,
		FeatureKey:  f.Key,
	}
	if existing != nil {
		aff.Score = existing.Score
		aff.Observations = existing.Observations
	}
	aff.Score = UpdateAffinity(aff.Score, signal)
	aff.Observations++
	aff.UpdatedAt = now

	return r.store.UpsertAffinity(ctx, aff)
}

func (r *Recorder) updateCentroids(ctx context.Context, userID string, m mood.Mood, embedding []float32, positive bool, now time.Time) error {
	alpha := CentroidAwayAlpha
	if positive {
		alpha = CentroidTowardAlpha
	}
	if err := r.stepCentroid(ctx, userID, m, embedding, alpha, positive, now); err != nil {
		return err
	}
	// The shared centroid only learns what people like, never what one user
	// dislikes.
	if positive {
		return r.stepCentroid(ctx, GlobalUserID, m, embedding, GlobalCentroidAlpha, true, now)
	}
	return nil
}

func (r *Recorder) stepCentroid(ctx context.Context, userID string, m mood.Mood, embedding []float32, alpha float64, toward bool, now time.Time) error {
	existing, err := r.store.GetCentroid(ctx, userID, m)
	if err != nil {
		return err
	}

	centroid := &MoodCentroid{UserID: userID, Mood: m}
	if existing != nil {
		centroid.Vector = existing.Vector
		centroid.Observations = existing.Observations
	}
	centroid.Vector = UpdateCentroid(centroid.Vector, embedding, alpha, toward)
	if len(centroid.Vector) == 0 {
		return nil
	}
	centroid.Observations++
	centroid.UpdatedAt = now

	return r.store.UpsertCentroid(ctx, centroid)
}
