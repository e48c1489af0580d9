package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"event-feature-lab/internal/domain"
	"event-feature-lab/internal/storage"
)

// FeatureStore implements storage.FeatureStore using PostgreSQL.
// The full record is kept as JSONB; status, completeness and missing
// windows are also stored as columns for querying.
type FeatureStore struct {
	pool *Pool
}

// NewFeatureStore creates a new FeatureStore.
func NewFeatureStore(pool *Pool) *FeatureStore {
	return &FeatureStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FeatureStore = (*FeatureStore)(nil)

// Upsert writes rec. When overwrite is false and a record exists, nothing is written.
func (s *FeatureStore) Upsert(ctx context.Context, rec *domain.FeatureRecord, overwrite bool) (bool, error) {
	if rec == nil || rec.EventID == "" {
		return false, storage.ErrInvalidInput
	}

	body, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("marshal record %s: %w", rec.EventID, err)
	}

	conflict := `ON CONFLICT (event_id) DO NOTHING`
	if overwrite {
		conflict = `ON CONFLICT (event_id) DO UPDATE SET
			ticker = EXCLUDED.ticker,
			event_ts = EXCLUDED.event_ts,
			status = EXCLUDED.status,
			completeness = EXCLUDED.completeness,
			missing_windows = EXCLUDED.missing_windows,
			error = EXCLUDED.error,
			record = EXCLUDED.record,
			updated_at = now()`
	}

	query := `
		INSERT INTO feature_records (
			event_id, ticker, event_ts, status, completeness, missing_windows, error, record
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		` + conflict

	missing := rec.MissingWindows
	if missing == nil {
		missing = []string{}
	}

	tag, err := s.pool.Exec(ctx, query,
		rec.EventID,
		rec.Ticker,
		rec.EventTimestamp.UTC(),
		string(rec.Status),
		rec.Completeness,
		missing,
		rec.Error,
		body,
	)
	if err != nil {
		return false, fmt.Errorf("upsert feature record: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Exists reports whether a record for eventID is stored.
func (s *FeatureStore) Exists(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	started := time.Now()
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM feature_records WHERE event_id = $1)`, eventID,
	).Scan(&exists)
	observe("exists_record", started, err)
	if err != nil {
		return false, fmt.Errorf("check feature record: %w", err)
	}
	return exists, nil
}

// Get retrieves a record. Returns ErrNotFound if not exists.
func (s *FeatureStore) Get(ctx context.Context, eventID string) (*domain.FeatureRecord, error) {
	var body []byte
	started := time.Now()
	err := s.pool.QueryRow(ctx,
		`SELECT record FROM feature_records WHERE event_id = $1`, eventID,
	).Scan(&body)
	observe("get_record", started, err)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get feature record: %w", err)
	}
	return decodeRecord(body)
}

// List returns records ordered by (event_ts, event_id).
func (s *FeatureStore) List(ctx context.Context, ticker string) ([]*domain.FeatureRecord, error) {
	query := `
		SELECT record FROM feature_records
		WHERE ($1 = '' OR ticker = $1)
		ORDER BY event_ts ASC, event_id ASC
	`

	rows, err := s.pool.Query(ctx, query, ticker)
	if err != nil {
		return nil, fmt.Errorf("list feature records: %w", err)
	}
	defer rows.Close()

	var records []*domain.FeatureRecord
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan feature record row: %w", err)
		}
		rec, err := decodeRecord(body)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feature record rows: %w", err)
	}
	return records, nil
}

func decodeRecord(body []byte) (*domain.FeatureRecord, error) {
	var rec domain.FeatureRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("decode feature record: %w", err)
	}
	return &rec, nil
}
