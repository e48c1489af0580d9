package memory

import (
	"context"
	"sort"
	"sync"

	"event-feature-lab/internal/domain"
	"event-feature-lab/internal/storage"
)

// FeatureStore is an in-memory implementation of storage.FeatureStore.
type FeatureStore struct {
	mu     sync.RWMutex
	data   map[string]*domain.FeatureRecord // keyed by event_id
	writes int
}

// NewFeatureStore creates a new in-memory feature store.
func NewFeatureStore() *FeatureStore {
	return &FeatureStore{
		data: make(map[string]*domain.FeatureRecord),
	}
}

// Upsert writes rec. When overwrite is false and a record exists, nothing is written.
func (s *FeatureStore) Upsert(_ context.Context, rec *domain.FeatureRecord, overwrite bool) (bool, error) {
	if rec == nil || rec.EventID == "" {
		return false, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[rec.EventID]; exists && !overwrite {
		return false, nil
	}
	s.data[rec.EventID] = rec.Clone()
	s.writes++
	return true, nil
}

// Exists reports whether a record for eventID is stored.
func (s *FeatureStore) Exists(_ context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[eventID]
	return ok, nil
}

// Get retrieves a record. Returns ErrNotFound if not exists.
func (s *FeatureStore) Get(_ context.Context, eventID string) (*domain.FeatureRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[eventID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return rec.Clone(), nil
}

// List returns records ordered by (event_timestamp, event_id).
func (s *FeatureStore) List(_ context.Context, ticker string) ([]*domain.FeatureRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FeatureRecord
	for _, rec := range s.data {
		if ticker != "" && rec.Ticker != ticker {
			continue
		}
		result = append(result, rec.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].EventTimestamp.Equal(result[j].EventTimestamp) {
			return result[i].EventTimestamp.Before(result[j].EventTimestamp)
		}
		return result[i].EventID < result[j].EventID
	})
	return result, nil
}

// Writes returns the number of successful writes since creation.
func (s *FeatureStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

var _ storage.FeatureStore = (*FeatureStore)(nil)
