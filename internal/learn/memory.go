package learn

import (
	"context"
	"sync"

	"github.com/onnwee/currents/internal/mood"
)

type affinityKey struct {
	userID string
	mood   mood.Mood
	ftype  FeatureType
	key    string
}

type centroidKey struct {
	userID string
	mood   mood.Mood
}

// InMemoryStore is an in-memory implementation of Store for testing.
type InMemoryStore struct {
	mu         sync.RWMutex
	events     []FeedbackEvent
	affinities map[affinityKey]FeatureAffinity
	centroids  map[centroidKey]MoodCentroid
}

// NewInMemoryStore creates a new in-memory learning store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		affinities: make(map[affinityKey]FeatureAffinity),
		centroids:  make(map[centroidKey]MoodCentroid),
	}
}

// AppendEvent appends one row to the feedback log.
func (s *InMemoryStore) AppendEvent(ctx context.Context, event *FeedbackEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *event)
	return nil
}

// Events returns a copy of the feedback log, for assertions.
func (s *InMemoryStore) Events() []FeedbackEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]FeedbackEvent, len(s.events))
	copy(out, s.events)
	return out
}

// GetAffinity returns the affinity row for a key, or nil if absent.
func (s *InMemoryStore) GetAffinity(ctx context.Context, userID string, m mood.Mood, ft FeatureType, key string) (*FeatureAffinity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	aff, ok := s.affinities[affinityKey{userID, m, ft, key}]
	if !ok {
		return nil, nil
	}
	out := aff
	return &out, nil
}

// UpsertAffinity writes an affinity row, replacing any existing one.
func (s *InMemoryStore) UpsertAffinity(ctx context.Context, aff *FeatureAffinity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.affinities[affinityKey{aff.UserID, aff.Mood, aff.FeatureType, aff.FeatureKey}] = *aff
	return nil
}

// ListAffinities returns all affinity rows for a (user, mood) pair.
func (s *InMemoryStore) ListAffinities(ctx context.Context, userID string, m mood.Mood) ([]FeatureAffinity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []FeatureAffinity
	for k, aff := range s.affinities {
		if k.userID == userID && k.mood == m {
			out = append(out, aff)
		}
	}
	return out, nil
}

// GetCentroid returns the centroid for (user, mood), or nil if absent.
func (s *InMemoryStore) GetCentroid(ctx context.Context, userID string, m mood.Mood) (*MoodCentroid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.centroids[centroidKey{userID, m}]
	if !ok {
		return nil, nil
	}
	out := c
	out.Vector = append([]float32(nil), c.Vector...)
	return &out, nil
}

// UpsertCentroid writes a centroid, replacing any existing one.
func (s *InMemoryStore) UpsertCentroid(ctx context.Context, c *MoodCentroid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *c
	stored.Vector = append([]float32(nil), c.Vector...)
	s.centroids[centroidKey{c.UserID, c.Mood}] = stored
	return nil
}
