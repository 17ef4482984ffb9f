package snapshot

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// InMemoryStore is an in-memory implementation of Store for testing.
type InMemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]*Snapshot // "date/hour" -> snapshot
}

// NewInMemoryStore creates a new in-memory snapshot store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		snapshots: make(map[string]*Snapshot),
	}
}

func memKey(date string, hour int) string {
	return fmt.Sprintf("%s/%02d", date, hour)
}

// Get returns the snapshot for (date, hour), or nil if absent.
func (s *InMemoryStore) Get(ctx context.Context, date string, hour int) (*Snapshot, error) {
	if err := ValidateKey(date, hour); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[memKey(date, hour)]
	if !ok {
		return nil, nil
	}
	// Return a shallow copy to avoid external modification of the map entry.
	out := *snap
	return &out, nil
}

// Set stores a snapshot, replacing any existing document for its key.
func (s *InMemoryStore) Set(ctx context.Context, snap *Snapshot) error {
	if err := ValidateKey(snap.Date, snap.Hour); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *snap
	s.snapshots[memKey(snap.Date, snap.Hour)] = &stored
	return nil
}

// ListHours returns all stored snapshots for a date, ascending by hour.
func (s *InMemoryStore) ListHours(ctx context.Context, date string) ([]HourEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []HourEntry
	for _, snap := range s.snapshots {
		if snap.Date == date {
			copied := *snap
			entries = append(entries, HourEntry{Hour: snap.Hour, Snapshot: &copied})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Hour < entries[j].Hour })
	return entries, nil
}

// Exists reports whether a snapshot exists for (date, hour).
func (s *InMemoryStore) Exists(ctx context.Context, date string, hour int) (bool, error) {
	if err := ValidateKey(date, hour); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.snapshots[memKey(date, hour)]
	return ok, nil
}
