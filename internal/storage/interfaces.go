package storage

import (
	"context"
	"time"

	"event-feature-lab/internal/domain"
)

// PriceStore provides access to the archival price_observations store.
type PriceStore interface {
	// Query returns observations for ticker with timestamp in [start, end),
	// ordered by timestamp ASC. An empty result is not an error.
	Query(ctx context.Context, ticker string, start, end time.Time) ([]*domain.PriceObservation, error)

	// Upsert writes observations keyed by (ticker, timestamp, timeframe, source).
	// Existing keys are replaced only when overwrite is true.
	// Returns the number of observations written.
	Upsert(ctx context.Context, obs []*domain.PriceObservation, overwrite bool) (int, error)
}

// PriceCounter is an optional PriceStore capability that counts
// observations without loading them.
type PriceCounter interface {
	// CountInRange returns the number of observations for ticker in [start, end).
	CountInRange(ctx context.Context, ticker string, start, end time.Time) (int, error)
}

// EventFilter narrows the events returned by EventStore.FetchPending.
// Zero values disable the corresponding filter.
type EventFilter struct {
	Ticker string
	Start  time.Time // inclusive
	End    time.Time // exclusive
	Offset int
}

// EventStore provides read access to the events table.
type EventStore interface {
	// FetchPending returns events matching filter ordered by (timestamp, event_id).
	// limit <= 0 means no limit.
	FetchPending(ctx context.Context, filter EventFilter, limit int) ([]*domain.Event, error)

	// GetByID retrieves an event. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, eventID string) (*domain.Event, error)
}

// EventWriter is implemented by event stores that accept new events.
type EventWriter interface {
	// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
	Insert(ctx context.Context, e *domain.Event) error
}

// FeatureStore provides access to feature_records storage.
type FeatureStore interface {
	// Upsert writes a record keyed by event_id. When overwrite is false and
	// a record exists, nothing is written and false is returned.
	Upsert(ctx context.Context, rec *domain.FeatureRecord, overwrite bool) (bool, error)

	// Exists reports whether a record for eventID is stored.
	Exists(ctx context.Context, eventID string) (bool, error)

	// Get retrieves a record. Returns ErrNotFound if not exists.
	Get(ctx context.Context, eventID string) (*domain.FeatureRecord, error)

	// List returns records ordered by (event_timestamp, event_id).
	// An empty ticker returns all records.
	List(ctx context.Context, ticker string) ([]*domain.FeatureRecord, error)
}
