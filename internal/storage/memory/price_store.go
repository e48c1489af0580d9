package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"event-feature-lab/internal/domain"
	"event-feature-lab/internal/storage"
)

// PriceStore is an in-memory implementation of storage.PriceStore.
type PriceStore struct {
	mu   sync.RWMutex
	data map[domain.PriceKey]*domain.PriceObservation
}

// NewPriceStore creates a new in-memory price store.
func NewPriceStore() *PriceStore {
	return &PriceStore{
		data: make(map[domain.PriceKey]*domain.PriceObservation),
	}
}

// Upsert writes observations. Existing keys are replaced only when overwrite is true.
// The whole batch is validated before anything is written.
func (s *PriceStore) Upsert(_ context.Context, obs []*domain.PriceObservation, overwrite bool) (int, error) {
	for _, o := range obs {
		if o == nil || o.Ticker == "" || o.Timestamp.IsZero() || o.Timeframe == "" || o.Source == "" {
			return 0, storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	written := 0
	for _, o := range obs {
		c := *o
		c.Ticker = strings.ToUpper(c.Ticker)
		c.Timestamp = c.Timestamp.UTC()
		key := c.Key()
		if _, exists := s.data[key]; exists && !overwrite {
			continue
		}
		s.data[key] = &c
		written++
	}
	return written, nil
}

// Query returns observations for ticker in [start, end), ordered by timestamp ASC.
func (s *PriceStore) Query(ctx context.Context, ticker string, start, end time.Time) ([]*domain.PriceObservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ticker = strings.ToUpper(ticker)
	var result []*domain.PriceObservation
	for _, o := range s.data {
		if o.Ticker == ticker && !o.Timestamp.Before(start) && o.Timestamp.Before(end) {
			c := *o
			result = append(result, &c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].Timestamp.Before(result[j].Timestamp)
		}
		return result[i].Source < result[j].Source
	})

	return result, nil
}

// CountInRange returns the number of observations for ticker in [start, end).
func (s *PriceStore) CountInRange(ctx context.Context, ticker string, start, end time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ticker = strings.ToUpper(ticker)
	n := 0
	for _, o := range s.data {
		if o.Ticker == ticker && !o.Timestamp.Before(start) && o.Timestamp.Before(end) {
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored observations.
func (s *PriceStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

var (
	_ storage.PriceStore   = (*PriceStore)(nil)
	_ storage.PriceCounter = (*PriceStore)(nil)
)
