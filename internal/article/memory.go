package article

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is an in-memory implementation of Store for testing.
type InMemoryStore struct {
	mu       sync.RWMutex
	articles map[string]Candidate
}

// NewInMemoryStore creates a new in-memory article store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		articles: make(map[string]Candidate),
	}
}

// Add inserts or replaces a candidate.
func (s *InMemoryStore) Add(c Candidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.articles[c.ID] = c
}

// QueryByTimeWindow returns candidates published in [start, end).
func (s *InMemoryStore) QueryByTimeWindow(ctx context.Context, start, end time.Time) ([]Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Candidate
	for _, c := range s.articles {
		if !c.PublishedAt.Before(start) && c.PublishedAt.Before(end) {
			out = append(out, c)
		}
	}
	return out, nil
}

// GetByID returns a candidate by id, or nil if absent.
func (s *InMemoryStore) GetByID(ctx context.Context, id string) (*Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.articles[id]
	if !ok {
		return nil, nil
	}
	// Return a copy to avoid external modification
	return &c, nil
}

// GetByIDs returns the candidates whose ids exist in the store.
func (s *InMemoryStore) GetByIDs(ctx context.Context, ids []string) ([]Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Candidate, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.articles[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// Len returns the number of stored candidates.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.articles)
}
