package learn

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/onnwee/currents/internal/mood"
)

// PostgresStore is the database-backed learning store.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a Postgres-backed learning store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// AppendEvent appends one row to the immutable feedback log.
func (s *PostgresStore) AppendEvent(ctx context.Context, event *FeedbackEvent) error {
	const query = `
		INSERT INTO feedback_events (id, user_id, article_id, mood, action, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.ExecContext(ctx, query,
		event.ID, event.UserID, event.ArticleID, string(event.Mood), string(event.Action), event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert feedback event: %w", err)
	}
	return nil
}

// GetAffinity returns the affinity row for a key, or nil if absent.
func (s *PostgresStore) GetAffinity(ctx context.Context, userID string, m mood.Mood, ft FeatureType, key string) (*FeatureAffinity, error) {
	const query = `
		SELECT user_id, mood, feature_type, feature_key, score, observations, updated_at
		FROM feature_affinities
		WHERE user_id = $1 AND mood = $2 AND feature_type = $3 AND feature_key = $4`

	var aff FeatureAffinity
	err := s.db.QueryRowContext(ctx, query, userID, string(m), string(ft), key).Scan(
		&aff.UserID, &aff.Mood, &aff.FeatureType, &aff.FeatureKey,
		&aff.Score, &aff.Observations, &aff.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feature affinity: %w", err)
	}
	return &aff, nil
}

// UpsertAffinity writes an affinity row, replacing any existing one.
// Last writer wins on concurrent updates for the same key.
func (s *PostgresStore) UpsertAffinity(ctx context.Context, aff *FeatureAffinity) error {
	const query = `
		INSERT INTO feature_affinities (user_id, mood, feature_type, feature_key, score, observations, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, mood, feature_type, feature_key)
		DO UPDATE SET score = EXCLUDED.score,
			observations = EXCLUDED.observations,
			updated_at = EXCLUDED.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		aff.UserID, string(aff.Mood), string(aff.FeatureType), aff.FeatureKey,
		aff.Score, aff.Observations, aff.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert feature affinity: %w", err)
	}
	return nil
}

// ListAffinities returns all affinity rows for a (user, mood) pair.
func (s *PostgresStore) ListAffinities(ctx context.Context, userID string, m mood.Mood) ([]FeatureAffinity, error) {
	const query = `
		SELECT user_id, mood, feature_type, feature_key, score, observations, updated_at
		FROM feature_affinities
		WHERE user_id = $1 AND mood = $2`

	rows, err := s.db.QueryContext(ctx, query, userID, string(m))
	if err != nil {
		return nil, fmt.Errorf("failed to list feature affinities: %w", err)
	}
	defer rows.Close()

	var out []FeatureAffinity
	for rows.Next() {
		var aff FeatureAffinity
		if err := rows.Scan(&aff.UserID, &aff.Mood, &aff.FeatureType, &aff.FeatureKey,
			&aff.Score, &aff.Observations, &aff.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feature affinity: %w", err)
		}
		out = append(out, aff)
	}
	return out, rows.Err()
}

// GetCentroid returns the centroid for (user, mood), or nil if absent.
func (s *PostgresStore) GetCentroid(ctx context.Context, userID string, m mood.Mood) (*MoodCentroid, error) {
	const query = `
		SELECT user_id, mood, vector, observations, updated_at
		FROM mood_centroids
		WHERE user_id = $1 AND mood = $2`

	var (
		c         MoodCentroid
		vectorRaw []byte
	)
	err := s.db.QueryRowContext(ctx, query, userID, string(m)).Scan(
		&c.UserID, &c.Mood, &vectorRaw, &c.Observations, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mood centroid: %w", err)
	}
	if len(vectorRaw) > 0 {
		if err := json.Unmarshal(vectorRaw, &c.Vector); err != nil {
			return nil, fmt.Errorf("failed to decode centroid vector: %w", err)
		}
	}
	return &c, nil
}

// UpsertCentroid writes a centroid, replacing any existing one.
func (s *PostgresStore) UpsertCentroid(ctx context.Context, c *MoodCentroid) error {
	vectorRaw, err := json.Marshal(c.Vector)
	if err != nil {
		return fmt.Errorf("failed to encode centroid vector: %w", err)
	}

	const query = `
		INSERT INTO mood_centroids (user_id, mood, vector, observations, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, mood)
		DO UPDATE SET vector = EXCLUDED.vector,
			observations = EXCLUDED.observations,
			updated_at = EXCLUDED.updated_at`

	_, err = s.db.ExecContext(ctx, query,
		c.UserID, string(c.Mood), vectorRaw, c.Observations, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert mood centroid: %w", err)
	}
	return nil
}
